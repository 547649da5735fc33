package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// UnwrapPayload decodes an envelope payload into T.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

func EventHeaders(eventType string, version int) []kafka.Header {
	return []kafka.Header{
		{Key: HeaderEventType, Value: []byte(eventType)},
		{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(version))},
	}
}

func Header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
