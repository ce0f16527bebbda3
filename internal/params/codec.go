package params

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
)

// maxDepth bounds tuple nesting accepted by Decode.
const maxDepth = 32

// Encode renders l as its WireForm: base64 over the JSON array of
// {"type","value"} objects.
//
// Output is deterministic. HTML characters are not escaped and no trailing
// newline is written, so the bytes match other implementations of the
// same format.
func Encode(l List) (string, error) {
	raw, err := marshalList(l)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// MustEncode is like Encode but panics on error.
// Lists produced by Builder always encode.
func MustEncode(l List) string {
	s, err := Encode(l)
	if err != nil {
		panic(err)
	}
	return s
}

// MarshalJSON renders the list as its (unwrapped) JSON array.
func (l List) MarshalJSON() ([]byte, error) {
	return marshalList(l)
}

func marshalList(l List) ([]byte, error) {
	vals := make([]Value, len(l.values))
	for i, v := range l.values {
		leaves := v.Leaves
		if leaves == nil {
			leaves = []string{}
		}
		vals[i] = Value{Type: v.Type, Leaves: leaves}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(vals); err != nil {
		return nil, newEncodingError("", "marshal list", err)
	}

	// json.Encoder adds trailing newline, remove it
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

// Decode parses a WireForm back into a List.
//
// Every tag must be recognised and every leaf count must match the tag's
// shape. Tuple leaves are decoded recursively and tuple[] elements must
// share a tag sequence. Any failure, at any depth, is an *EncodingError.
func Decode(wire string) (List, error) {
	return decode(wire, 0)
}

// DecodeJSON parses the unwrapped JSON array form of a list.
// Nested tuple leaves are still WireForms.
func DecodeJSON(data []byte) (List, error) {
	return decodeJSON(data, 0)
}

func decode(wire string, depth int) (List, error) {
	raw, err := base64.StdEncoding.DecodeString(wire)
	if err != nil {
		return List{}, newEncodingError("", "invalid base64", err)
	}
	return decodeJSON(raw, depth)
}

func decodeJSON(data []byte, depth int) (List, error) {
	if depth > maxDepth {
		return List{}, newEncodingError(TagTuple, fmt.Sprintf("nesting deeper than %d", maxDepth), nil)
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	var elems []json.RawMessage
	if err := dec.Decode(&elems); err != nil {
		return List{}, newEncodingError("", "invalid JSON", err)
	}
	if dec.More() {
		return List{}, newEncodingError("", "trailing data after list", nil)
	}
	if elems == nil {
		return List{}, newEncodingError("", "list must be a JSON array", nil)
	}

	vals := make([]Value, len(elems))
	for i, raw := range elems {
		v, err := decodeValue(raw)
		if err == nil {
			err = validateValue(v, depth)
		}
		if err != nil {
			return List{}, err.atIndex(i)
		}
		vals[i] = v
	}
	return List{values: vals}, nil
}

// decodeValue reads one {"type","value"} object. Keys must match exactly
// and appear at most once.
func decodeValue(raw json.RawMessage) (Value, *shapeError) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return Value{}, &shapeError{reason: "element must be a JSON object", err: err}
	}

	var v Value
	seen := make(map[string]bool, 2)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, &shapeError{reason: "invalid JSON", err: err}
		}
		key, _ := tok.(string)
		if seen[key] {
			return Value{}, &shapeError{reason: fmt.Sprintf("duplicate field %q", key)}
		}
		seen[key] = true

		switch key {
		case "type":
			err = dec.Decode(&v.Type)
		case "value":
			err = dec.Decode(&v.Leaves)
		default:
			return Value{}, &shapeError{reason: fmt.Sprintf("unknown field %q", key)}
		}
		if err != nil {
			return Value{}, &shapeError{tag: v.Type, reason: fmt.Sprintf("invalid %q field", key), err: err}
		}
	}
	return v, nil
}

// shapeError is a validation failure not yet tied to a list position.
type shapeError struct {
	tag    TypeTag
	reason string
	err    error
}

func (e *shapeError) atIndex(i int) *EncodingError {
	return &EncodingError{Tag: e.tag, Index: i, Reason: e.reason, Err: e.err}
}

func validateValue(v Value, depth int) *shapeError {
	if !v.Type.Valid() {
		return &shapeError{tag: v.Type, reason: "unsupported type tag"}
	}
	if v.Leaves == nil {
		return &shapeError{tag: v.Type, reason: "missing value leaves"}
	}

	switch v.Type.Shape() {
	case ShapeScalar:
		if len(v.Leaves) != 1 {
			return &shapeError{tag: v.Type, reason: fmt.Sprintf("expected 1 leaf, got %d", len(v.Leaves))}
		}

	case ShapeArray:
		// any count

	case ShapeTuple:
		if len(v.Leaves) != 1 {
			return &shapeError{tag: v.Type, reason: fmt.Sprintf("expected 1 leaf, got %d", len(v.Leaves))}
		}
		if _, err := decode(v.Leaves[0], depth+1); err != nil {
			return &shapeError{tag: v.Type, reason: "invalid nested list", err: err}
		}

	case ShapeTupleArray:
		var first []TypeTag
		for i, leaf := range v.Leaves {
			nested, err := decode(leaf, depth+1)
			if err != nil {
				return &shapeError{tag: v.Type, reason: fmt.Sprintf("invalid nested list at element %d", i), err: err}
			}
			seq := nested.TagSequence()
			if i == 0 {
				first = seq
				continue
			}
			if !slices.Equal(first, seq) {
				return &shapeError{tag: v.Type, reason: fmt.Sprintf("element %d tag sequence %v differs from %v", i, seq, first)}
			}
		}
	}
	return nil
}

// DecodeBytes32 reverses EncodeBytes32. It does not check the length;
// callers that need exactly 32 bytes must do so.
func DecodeBytes32(leaf string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(leaf)
	if err != nil {
		return nil, newEncodingError(TagBytes32, "invalid base64", err)
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, newEncodingError(TagBytes32, "invalid byte array JSON", err)
	}
	out := make([]byte, len(ints))
	for i, n := range ints {
		if n < 0 || n > 255 {
			return nil, newEncodingError(TagBytes32, fmt.Sprintf("element %d out of byte range: %d", i, n), nil)
		}
		out[i] = byte(n)
	}
	return out, nil
}
