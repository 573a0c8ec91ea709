package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/treesync/internal/model"
)

// encMode and decMode are the CBOR modes for payload columns.
// Core Deterministic Encoding keeps equal payloads byte-identical.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeCBOR(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

func decodeCBOR(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// encodeIDs stores an id set as a sorted JSON array.
func encodeIDs(ids []model.ID) (string, error) {
	sorted := make([]string, 0, len(ids))
	for _, id := range ids {
		sorted = append(sorted, string(id))
	}
	sort.Strings(sorted)
	data, err := json.Marshal(sorted)
	if err != nil {
		return "", fmt.Errorf("encode ids: %w", err)
	}
	return string(data), nil
}

func decodeIDs(data string) ([]model.ID, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var raw []string
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("decode ids: %w", err)
	}
	ids := make([]model.ID, len(raw))
	for i, id := range raw {
		ids[i] = model.ID(id)
	}
	return ids, nil
}

// encodeIDMap stores an element map as a JSON object (keys sorted by encoding/json).
func encodeIDMap(m map[model.ID]model.ID) (string, error) {
	raw := make(map[string]string, len(m))
	for k, v := range m {
		raw[string(k)] = string(v)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("encode element map: %w", err)
	}
	return string(data), nil
}

func decodeIDMap(data string) (map[model.ID]model.ID, error) {
	out := make(map[model.ID]model.ID)
	if data == "" || data == "{}" {
		return out, nil
	}
	var raw map[string]string
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("decode element map: %w", err)
	}
	for k, v := range raw {
		out[model.ID(k)] = model.ID(v)
	}
	return out, nil
}

// nullTime converts an optional publish time to a nullable nanosecond column.
func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timeFromNull(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}

func unixNano(t time.Time) int64 { return t.UnixNano() }

func fromUnixNano(n int64) time.Time { return time.Unix(0, n).UTC() }
