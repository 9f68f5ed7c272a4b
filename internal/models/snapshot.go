package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// MarketSnapshot is the opaque JSON document returned by the market-data
// service. It is never interpreted beyond sector discovery; numbers are kept
// as json.Number so re-encoding reproduces them exactly.
type MarketSnapshot struct {
	value interface{}
}

// EmptySnapshot returns the "no data" sentinel, an empty JSON object
func EmptySnapshot() MarketSnapshot {
	return MarketSnapshot{value: map[string]interface{}{}}
}

// ParseSnapshot decodes a single JSON document. Trailing content after the
// document is treated as malformed input.
func ParseSnapshot(data []byte) (MarketSnapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return EmptySnapshot(), fmt.Errorf("failed to decode market snapshot: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return EmptySnapshot(), fmt.Errorf("failed to decode market snapshot: unexpected data after JSON document")
	}

	return MarketSnapshot{value: v}, nil
}

// Value returns the decoded document (maps, slices, json.Number, string, bool, nil)
func (s MarketSnapshot) Value() interface{} {
	return s.value
}

// IsEmpty reports whether the snapshot carries no data: null, {} or []
func (s MarketSnapshot) IsEmpty() bool {
	switch v := s.value.(type) {
	case nil:
		return true
	case map[string]interface{}:
		return len(v) == 0
	case []interface{}:
		return len(v) == 0
	default:
		return false
	}
}

// MarshalJSON encodes the snapshot without HTML escaping. A null document
// encodes as null; only EmptySnapshot produces {}.
func (s MarketSnapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON decodes with the same number handling as ParseSnapshot
func (s *MarketSnapshot) UnmarshalJSON(data []byte) error {
	parsed, err := ParseSnapshot(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// String returns the JSON text of the snapshot
func (s MarketSnapshot) String() string {
	data, err := s.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Sectors returns the uppercased, sorted set of sector identifiers found in
// "sector" and "sector_applied" fields and "sectors" string arrays anywhere
// in the document.
func (s MarketSnapshot) Sectors() []string {
	seen := make(map[string]struct{})
	collectSectors(s.value, seen)

	sectors := make([]string, 0, len(seen))
	for sector := range seen {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)
	return sectors
}

// HasSector reports whether sector appears in Sectors(), ignoring case
func (s MarketSnapshot) HasSector(sector string) bool {
	want := strings.ToUpper(strings.TrimSpace(sector))
	for _, candidate := range s.Sectors() {
		if candidate == want {
			return true
		}
	}
	return false
}

func collectSectors(v interface{}, seen map[string]struct{}) {
	switch node := v.(type) {
	case map[string]interface{}:
		for key, child := range node {
			switch strings.ToLower(key) {
			case "sector", "sector_applied":
				if name, ok := child.(string); ok {
					addSector(name, seen)
				}
			case "sectors":
				if items, ok := child.([]interface{}); ok {
					for _, item := range items {
						if name, ok := item.(string); ok {
							addSector(name, seen)
						}
					}
				}
			}
			collectSectors(child, seen)
		}
	case []interface{}:
		for _, child := range node {
			collectSectors(child, seen)
		}
	}
}

func addSector(name string, seen map[string]struct{}) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name != "" {
		seen[name] = struct{}{}
	}
}
