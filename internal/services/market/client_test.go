package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"
)

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/stocks", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

// channelLogger returns a logger whose events are delivered in batches on the
// returned channel.
func channelLogger() (arbor.ILogger, chan []arbormodels.LogEvent) {
	logChannel := make(chan []arbormodels.LogEvent, 10)
	logger := arbor.NewLogger()
	logger.SetChannel("context", logChannel)
	return logger, logChannel
}

// waitForLog returns the first event with the given message.
func waitForLog(t *testing.T, logChannel chan []arbormodels.LogEvent, message string) arbormodels.LogEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case batch := <-logChannel:
			for _, event := range batch {
				if event.Message == message {
					return event
				}
			}
		case <-timeout:
			t.Fatalf("timeout waiting for log %q", message)
			return arbormodels.LogEvent{}
		}
	}
}

func TestNewClient_Endpoint(t *testing.T) {
	assert.Equal(t, "http://market:3000/stocks", NewClient("http://market:3000/").Endpoint())
	assert.Equal(t, "http://market:3000/api/stocks", NewClient("http://market:3000", WithPath("api/stocks")).Endpoint())
}

func TestFetch_Success(t *testing.T) {
	body := `[{"price":135.0000,"sector":"TECH","symbol":"NVDA","volume":123456789012345678901234567890},{"price":101.5,"sector":"ENERGY","symbol":"XOM"}]`
	server, hits := newTestServer(t, http.StatusOK, body)

	client := NewClient(server.URL, WithLogger(arbor.NewLogger()))
	snapshot := client.Fetch(context.Background())

	assert.Equal(t, 1, *hits)
	assert.False(t, snapshot.IsEmpty())

	encoded, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.Equal(t, body, string(encoded))
	assert.Equal(t, []string{"ENERGY", "TECH"}, snapshot.Sectors())
}

func TestFetch_ServerError(t *testing.T) {
	server, hits := newTestServer(t, http.StatusInternalServerError, `{"error":"boom"}`)
	logger, logChannel := channelLogger()
	client := NewClient(server.URL, WithLogger(logger))

	snapshot := client.Fetch(context.Background())
	assert.Equal(t, 1, *hits, "fetch must not retry")
	assert.True(t, snapshot.IsEmpty())

	event := waitForLog(t, logChannel, "Error fetching market data")
	assert.Contains(t, strings.ToLower(event.Level.String()), "warn")
	assert.Contains(t, fmt.Sprintf("%v", event), "status 500")

	encoded, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(encoded))

	_, err = client.FetchSnapshot(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, server.URL+"/stocks", apiErr.Endpoint)
}

func TestFetch_MalformedBody(t *testing.T) {
	for _, body := range []string{"<html>oops</html>", `{"stocks": [`, `{} trailing`, ""} {
		t.Run(body, func(t *testing.T) {
			server, _ := newTestServer(t, http.StatusOK, body)
			logger, logChannel := channelLogger()
			client := NewClient(server.URL, WithLogger(logger))

			assert.True(t, client.Fetch(context.Background()).IsEmpty())

			event := waitForLog(t, logChannel, "Error fetching market data")
			assert.Contains(t, strings.ToLower(event.Level.String()), "warn")
			assert.Contains(t, fmt.Sprintf("%v", event), "failed to decode market snapshot")

			_, err := client.FetchSnapshot(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestFetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	logger, logChannel := channelLogger()
	client := NewClient(url, WithTimeout(time.Second), WithLogger(logger))
	snapshot := client.Fetch(context.Background())
	assert.True(t, snapshot.IsEmpty())

	event := waitForLog(t, logChannel, "Error fetching market data")
	assert.Contains(t, fmt.Sprintf("%v", event), "failed to execute request")
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, WithTimeout(50*time.Millisecond))
	start := time.Now()
	snapshot := client.Fetch(context.Background())

	assert.True(t, snapshot.IsEmpty())
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeout_LeavesSharedClientUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	shared := &http.Client{Timeout: time.Minute}
	client := NewClient(server.URL, WithHTTPClient(shared), WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := client.FetchSnapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, time.Minute, shared.Timeout)
}

func TestFetch_EmptyDocument(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, `{}`)
	client := NewClient(server.URL)

	snapshot, err := client.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.IsEmpty())
}
