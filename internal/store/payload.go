package store

import (
	"encoding/json"
	"fmt"
)

type payloadKind int

const (
	kindEmpty payloadKind = iota
	kindBytes
	kindText
	kindValue
)

// Payload is the data written to a node. Use Bytes, Text, Value or Empty
// to build one; the zero Payload is Empty.
type Payload struct {
	kind  payloadKind
	raw   []byte
	value any
}

// Bytes writes b unchanged.
func Bytes(b []byte) Payload {
	return Payload{kind: kindBytes, raw: b}
}

// Text writes s as UTF-8 bytes.
func Text(s string) Payload {
	return Payload{kind: kindText, raw: []byte(s)}
}

// Value writes v encoded as JSON text. A nil v writes no data.
func Value(v any) Payload {
	if v == nil {
		return Payload{}
	}
	return Payload{kind: kindValue, value: v}
}

// Empty writes a node without data.
func Empty() Payload {
	return Payload{}
}

// IsEmpty reports whether p carries no data.
func (p Payload) IsEmpty() bool {
	return p.kind == kindEmpty
}

// Encode returns the bytes stored in the node.
func (p Payload) Encode() ([]byte, error) {
	switch p.kind {
	case kindBytes, kindText:
		return p.raw, nil
	case kindValue:
		data, err := json.Marshal(p.value)
		if err != nil {
			return nil, fmt.Errorf("store: encode payload: %w", err)
		}
		return data, nil
	default:
		return []byte{}, nil
	}
}

// DecodeJSON decodes node data written with Value into v. GetData never
// decodes on its own; callers that stored values opt in here.
func DecodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode payload: %w", err)
	}
	return nil
}
