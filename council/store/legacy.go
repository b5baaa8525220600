package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dshills/council-go/council"
)

// Early deployments persisted one single-turn document per conversation:
// the query and stage outputs inline at the document root, no turns array,
// and plain strings where the current shape carries structured results.
// DecodeRecord normalizes both shapes at the read boundary so stores never
// need a migration pass over existing data.

// legacyRecord is the v1 single-turn document shape.
type legacyRecord struct {
	Query              string            `json:"query"`
	Stage1Responses    map[string]string `json:"stage1_responses"`
	Stage2Reviews      map[string]string `json:"stage2_reviews"`
	Stage3Final        string            `json:"stage3_final_response"`
	Stage3MostValuable string            `json:"stage3_most_valuable_models"`
	DurationSeconds    float64           `json:"duration_seconds"`
	Timestamp          string            `json:"timestamp"`
}

// DecodeRecord decodes a persisted conversation document, accepting both
// the current multi-turn shape and the v1 single-turn shape. The id
// parameter overrides whatever id the document carries, since storage keys
// are authoritative.
func DecodeRecord(data []byte, id string) (council.ConversationRecord, error) {
	var rec council.ConversationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return council.ConversationRecord{}, fmt.Errorf("failed to decode conversation record: %w", err)
	}
	if rec.Turns != nil {
		rec.ID = id
		return rec, nil
	}

	// No turns array: try the v1 shape before giving up.
	var legacy legacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return council.ConversationRecord{}, fmt.Errorf("failed to decode conversation record: %w", err)
	}
	if legacy.Query == "" && legacy.Stage3Final == "" {
		// Neither shape; treat as an empty record rather than inventing a
		// turn out of a blank document.
		return council.ConversationRecord{ID: id, CreatedAt: rec.CreatedAt}, nil
	}

	turn := normalizeLegacyTurn(legacy)
	return council.ConversationRecord{
		ID:        id,
		CreatedAt: turn.CreatedAt,
		Turns:     []council.Turn{turn},
	}, nil
}

// normalizeLegacyTurn lifts a v1 document into the current turn shape.
// Per-model metadata the v1 shape never recorded (usage, latency, errors)
// is left zero; every persisted response is treated as a success.
func normalizeLegacyTurn(legacy legacyRecord) council.Turn {
	turn := council.Turn{
		Query:           legacy.Query,
		CreatedAt:       parseLegacyTimestamp(legacy.Timestamp),
		Stage1:          make(map[string]council.ModelResult, len(legacy.Stage1Responses)),
		Stage2:          make(map[string]council.ReviewResult, len(legacy.Stage2Reviews)),
		DurationSeconds: legacy.DurationSeconds,
		Stage3: council.Synthesis{
			FinalText:    legacy.Stage3Final,
			MostValuable: legacy.Stage3MostValuable,
		},
	}
	for member, content := range legacy.Stage1Responses {
		turn.Stage1[member] = council.ModelResult{Content: content}
	}
	for member, review := range legacy.Stage2Reviews {
		turn.Stage2[member] = council.ReviewResult{RawText: review}
	}
	return turn
}

// parseLegacyTimestamp handles the v1 timestamp formats: RFC 3339 and the
// zone-less ISO 8601 the original writer produced. Unparseable timestamps
// yield the zero time rather than an error; the turn data matters more.
func parseLegacyTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
