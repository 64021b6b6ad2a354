// internal/game/utils.go
package game

import (
	"encoding/json"
	"time"
)

// EncodeEvent marshals an Event. On failure it returns a minimal event of the same type
// so that one bad payload cannot break a connection's stream.
func EncodeEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		fallback, _ := json.Marshal(Event{Type: ev.Type})
		return fallback, err
	}
	return data, nil
}

// unixMs returns t in epoch milliseconds, or 0 for the zero time.
func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
