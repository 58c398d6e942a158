// Package codec serializes the records the core writes into the shared
// store. Encodings must be deterministic: the pending queue is a set keyed
// by the encoded (name, params) tuple, so two encodings of equal values
// must produce equal bytes for deduplication and removal to work.
package codec

// Codec defines the serialization contract for stored records.
type Codec interface {
	// Marshal serializes v.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes data into v.
	Unmarshal(data []byte, v any) error

	// Name returns the codec identifier.
	Name() string
}

// Codec name constants used in configuration.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
)

// Get returns a codec by name. Defaults to JSON.
func Get(name string) Codec {
	switch name {
	case NameMsgpack:
		return Msgpack{}
	default:
		return JSON{}
	}
}
