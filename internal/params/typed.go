package params

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// FromTyped builds a List from its readable form: a slice of
// {"type": tag, "value": v} maps as produced by a JSON or YAML decoder.
//
//	- {type: address, value: "0.0.1"}
//	- {type: bytes32, value: "0x0001...1f"}
//	- {type: uint64[], value: [1, 2, 3]}
//	- {type: tuple, value: [{type: int64, value: 5}]}
//	- {type: tuple[], value: [[{type: int64, value: 5}], [{type: int64, value: 6}]]}
//
// Numbers may be given as strings or as JSON/YAML numbers. bytes32 values
// are 0x-prefixed hex.
func FromTyped(items []any) (List, error) {
	return fromTyped(items, 0)
}

func fromTyped(items []any, depth int) (List, error) {
	if depth > maxDepth {
		return List{}, newEncodingError(TagTuple, fmt.Sprintf("nesting deeper than %d", maxDepth), nil)
	}

	b := NewBuilder()
	for i, item := range items {
		tag, value, err := typedEntry(item)
		if err != nil {
			return List{}, &EncodingError{Tag: tag, Index: i, Reason: "invalid typed value", Err: err}
		}
		if err := addTyped(b, tag, value, depth); err != nil {
			return List{}, &EncodingError{Tag: tag, Index: i, Reason: "invalid typed value", Err: err}
		}
		if err := b.Err(); err != nil {
			return List{}, err
		}
	}
	return b.Build()
}

func typedEntry(item any) (TypeTag, any, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("want {type, value} object, got %T", item)
	}
	for k := range m {
		if k != "type" && k != "value" {
			return "", nil, fmt.Errorf("unknown field %q", k)
		}
	}
	name, ok := m["type"].(string)
	if !ok {
		return "", nil, fmt.Errorf("type must be a string")
	}
	tag := TypeTag(name)
	if !tag.Valid() {
		return tag, nil, fmt.Errorf("unsupported type tag %q", name)
	}
	value, ok := m["value"]
	if !ok {
		return tag, nil, fmt.Errorf("missing value")
	}
	return tag, value, nil
}

func addTyped(b *Builder, tag TypeTag, value any, depth int) error {
	switch tag {
	case TagAddress, TagString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", value)
		}
		if tag == TagAddress {
			b.Address(s)
		} else {
			b.String(s)
		}

	case TagAddressArray, TagStringArray:
		ss, err := stringList(value)
		if err != nil {
			return err
		}
		if tag == TagAddressArray {
			b.AddressArray(ss)
		} else {
			b.StringArray(ss)
		}

	case TagBytes32:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("want 0x hex string, got %T", value)
		}
		raw, err := hexutil.Decode(s)
		if err != nil {
			return err
		}
		b.Bytes32Slice(raw)

	case TagUInt8:
		s, err := numberText(value)
		if err != nil {
			return err
		}
		n, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return err
		}
		b.UInt8(uint8(n))

	case TagUInt64:
		s, err := numberText(value)
		if err != nil {
			return err
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		b.UInt64(n)

	case TagInt64:
		s, err := numberText(value)
		if err != nil {
			return err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		b.Int64(n)

	case TagUInt256:
		s, err := numberText(value)
		if err != nil {
			return err
		}
		b.UInt256Decimal(s)

	case TagUInt64Array:
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("want list, got %T", value)
		}
		ns := make([]uint64, len(items))
		for i, item := range items {
			s, err := numberText(item)
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			if ns[i], err = strconv.ParseUint(s, 10, 64); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		b.UInt64Array(ns)

	case TagUInt256Array:
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("want list, got %T", value)
		}
		ns := make([]*uint256.Int, len(items))
		for i, item := range items {
			s, err := numberText(item)
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			if ns[i], err = uint256.FromDecimal(s); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		b.UInt256Array(ns)

	case TagTuple:
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("want list of typed values, got %T", value)
		}
		nested, err := fromTyped(items, depth+1)
		if err != nil {
			return err
		}
		b.Tuple(nested)

	case TagTupleArray:
		elems, ok := value.([]any)
		if !ok {
			return fmt.Errorf("want list of tuples, got %T", value)
		}
		lists := make([]List, len(elems))
		for i, elem := range elems {
			items, ok := elem.([]any)
			if !ok {
				return fmt.Errorf("element %d: want list of typed values, got %T", i, elem)
			}
			nested, err := fromTyped(items, depth+1)
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			lists[i] = nested
		}
		b.TupleArray(lists...)
	}
	return nil
}

func stringList(value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("want list of strings, got %T", value)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("element %d: want string, got %T", i, item)
		}
		out[i] = s
	}
	return out, nil
}

// numberText renders an integer given as text or as a decoded number.
func numberText(v any) (string, error) {
	switch n := v.(type) {
	case string:
		return n, nil
	case json.Number:
		return n.String(), nil
	case int:
		return strconv.Itoa(n), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case uint64:
		return strconv.FormatUint(n, 10), nil
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return "", fmt.Errorf("%v is not an exact integer; quote large values", n)
		}
		return strconv.FormatFloat(n, 'f', 0, 64), nil
	default:
		return "", fmt.Errorf("want integer, got %T", v)
	}
}

// ToTyped is the inverse of FromTyped. Nested tuples are expanded
// recursively and bytes32 values are rendered as 0x hex.
func ToTyped(l List) ([]any, error) {
	out := make([]any, l.Len())
	for i, v := range l.values {
		value, err := typedValue(v)
		if err != nil {
			return nil, wrapIndex(v.Type, i, err)
		}
		out[i] = map[string]any{"type": string(v.Type), "value": value}
	}
	return out, nil
}

func typedValue(v Value) (any, error) {
	switch v.Type.Shape() {
	case ShapeScalar:
		if v.Type == TagBytes32 {
			raw, err := DecodeBytes32(v.Leaves[0])
			if err != nil {
				return nil, err
			}
			return hexutil.Encode(raw), nil
		}
		return v.Leaves[0], nil

	case ShapeArray:
		items := make([]any, len(v.Leaves))
		for i, leaf := range v.Leaves {
			items[i] = leaf
		}
		return items, nil

	case ShapeTuple:
		nested, err := v.Tuple()
		if err != nil {
			return nil, err
		}
		return ToTyped(nested)

	case ShapeTupleArray:
		lists, err := v.TupleArray()
		if err != nil {
			return nil, err
		}
		items := make([]any, len(lists))
		for i, l := range lists {
			if items[i], err = ToTyped(l); err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return items, nil
	}
	return nil, fmt.Errorf("unsupported type tag %q", v.Type)
}
