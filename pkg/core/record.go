package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is a raw, arbitrarily shaped object returned by a backend list or
// search endpoint. Field names and types vary per module and per endpoint.
type Record map[string]any

// IDFields are the keys probed, in order, for a record identifier.
var IDFields = []string{
	"id", "_id", "listingId", "publicId", "uuid", "rentalId", "serviceId",
	"adId", "eventId", "travelId", "swapId", "homeSwapId", "home_swap_id", "slug",
}

// Records keeps the object items of a decoded JSON list. Scalars and nested
// arrays are not searchable records and are skipped.
func Records(items []any) []Record {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			records = append(records, Record(v))
		case Record:
			records = append(records, v)
		}
	}
	return records
}

// First returns the first present value among keys. A value is present when
// it is non-nil and, for strings, not blank.
func (r Record) First(keys ...string) (any, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// FirstString is First followed by Stringify.
func (r Record) FirstString(keys ...string) (string, bool) {
	v, ok := r.First(keys...)
	if !ok {
		return "", false
	}
	s := Stringify(v)
	if s == "" {
		return "", false
	}
	return s, true
}

// String returns the value under key rendered as a string, or "".
func (r Record) String(key string) string {
	return Stringify(r[key])
}

// Has reports whether key is set to a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// ID returns the first present identifier field.
func (r Record) ID() (string, bool) {
	return r.FirstString(IDFields...)
}

// Module returns the module tag carried by the record, if valid.
func (r Record) Module() Module {
	m := Module(strings.ToLower(r.String(ModuleTag)))
	if m.Valid() {
		return m
	}
	return NoModule
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Stringify renders scalar JSON values the way a user would expect to read
// them: integral numbers without a fractional part, strings verbatim.
// Objects and arrays render as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any, Record:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}
