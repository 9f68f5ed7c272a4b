package models

import "encoding/json"

// NewsEventPayload is the body accepted by the market simulator's event
// endpoint. Sector and sentiment are uppercase on the wire.
type NewsEventPayload struct {
	Headline      string  `json:"headline"`
	Summary       string  `json:"summary"`
	SectorApplied string  `json:"sector_applied"`
	Magnitude     float64 `json:"magnitude"`
	Duration      int     `json:"duration"`
	Sentiment     string  `json:"sentiment"`
}

// NewsEventResult is the simulator's reply to a created event.
// EventID is left raw since the simulator may issue numeric or string IDs.
type NewsEventResult struct {
	Message        string          `json:"message"`
	EventID        json.RawMessage `json:"event_id"`
	StocksAffected int             `json:"stocks_affected"`
}
