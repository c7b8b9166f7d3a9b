package tablecrm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

type envelopeKind int

const (
	envelopeUnknown envelopeKind = iota
	envelopeArray
	envelopeResult
	envelopeResults
)

// DecodeEnvelope extracts the entity list from a list response. The API
// answers with a bare array, {"result": [...]} or {"results": [...]};
// every other shape yields an empty list. Only invalid JSON is an error;
// items that do not decode into T are dropped.
func DecodeEnvelope[T any](body []byte) ([]T, error) {
	kind, raw, err := classifyEnvelope(body)
	if err != nil {
		return nil, err
	}

	switch kind {
	case envelopeArray, envelopeResult, envelopeResults:
		return decodeItems[T](raw)
	default:
		return []T{}, nil
	}
}

// decodeItems decodes each element on its own. Elements that do not fit T
// are logged and skipped so one odd record does not hide the whole list.
func decodeItems[T any](raw json.RawMessage) ([]T, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("tablecrm: decode list items: %w: %w", ErrTransport, err)
	}

	items := make([]T, 0, len(elems))
	for i, elem := range elems {
		var item T
		if err := json.Unmarshal(elem, &item); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("tablecrm: skipping undecodable list item")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func classifyEnvelope(body []byte) (envelopeKind, json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return envelopeUnknown, nil, fmt.Errorf("tablecrm: malformed response body: %w", ErrTransport)
	}

	switch body[0] {
	case '[':
		return envelopeArray, body, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return envelopeUnknown, nil, fmt.Errorf("tablecrm: decode envelope: %w: %w", ErrTransport, err)
		}
		// "result" wins over "results" when both are present.
		if raw, ok := obj["result"]; ok {
			if isArray(raw) {
				return envelopeResult, raw, nil
			}
			return envelopeUnknown, nil, nil
		}
		if raw, ok := obj["results"]; ok && isArray(raw) {
			return envelopeResults, raw, nil
		}
	}
	return envelopeUnknown, nil, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
