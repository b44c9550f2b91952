package repository

import (
	"encoding/json"
	"errors"
	"fmt"
)

// schemaVersion is bumped whenever a persisted record shape changes
// incompatibly.
const schemaVersion = 1

// Record kinds.
const (
	kindJob             = "job"
	kindSkip            = "skip"
	kindControlState    = "control_state"
	kindCharacteristics = "characteristics"
)

var errSchemaMismatch = errors.New("record schema mismatch")

type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Kind          string          `json:"kind"`
	Data          json.RawMessage `json:"data"`
}

// encodeRecord wraps v in a versioned envelope, indented for humans.
func encodeRecord(kind string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	b, err := json.MarshalIndent(envelope{SchemaVersion: schemaVersion, Kind: kind, Data: data}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	return append(b, '\n'), nil
}

// decodeRecord unwraps an envelope and rejects foreign kinds or versions.
func decodeRecord(kind string, b []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	if env.Kind != kind || env.SchemaVersion != schemaVersion {
		return fmt.Errorf("%w: want %s/v%d, got %s/v%d", errSchemaMismatch, kind, schemaVersion, env.Kind, env.SchemaVersion)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", kind, err)
	}
	return nil
}
