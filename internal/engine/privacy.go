package engine

import (
	"strings"

	"github.com/roomsync/roomsync/internal/wire"
)

// privateMarker prefixes field names that must never cross the network.
// The convention applies to top-level field names only; markers nested
// deeper inside a value are not interpreted.
const privateMarker = "_"

// isPrivateField reports whether a top-level field name is private.
func isPrivateField(name string) bool {
	return strings.HasPrefix(name, privateMarker)
}

// stripPrivate returns a copy of rec without private fields. Applied on
// the way out before serialization and again on the way in, so a
// misbehaving sender still cannot plant private fields in another peer's
// view.
func stripPrivate(rec wire.Record) wire.Record {
	out := make(wire.Record, len(rec))
	for name, val := range rec {
		if isPrivateField(name) {
			continue
		}
		out[name] = val
	}
	return out
}

// cloneRecord returns a shallow copy of rec. Field values are shared;
// records hold JSON-compatible values the engine never mutates in place.
func cloneRecord(rec wire.Record) wire.Record {
	out := make(wire.Record, len(rec))
	for name, val := range rec {
		out[name] = val
	}
	return out
}

// asNumber coerces the numeric representations a Record can carry after
// JSON decoding or direct application writes.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
