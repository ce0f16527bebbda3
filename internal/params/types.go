package params

import (
	"slices"
)

// TypeTag identifies the kind of a contract argument.
// The set is closed; Decode rejects anything else.
type TypeTag string

const (
	TagAddress      TypeTag = "address"
	TagAddressArray TypeTag = "address[]"
	TagBytes32      TypeTag = "bytes32"
	TagUInt8        TypeTag = "uint8"
	TagUInt64       TypeTag = "uint64"
	TagUInt64Array  TypeTag = "uint64[]"
	TagInt64        TypeTag = "int64"
	TagUInt256      TypeTag = "uint256"
	TagUInt256Array TypeTag = "uint256[]"
	TagTuple        TypeTag = "tuple"
	TagTupleArray   TypeTag = "tuple[]"
	TagString       TypeTag = "string"
	TagStringArray  TypeTag = "string[]"
)

// Shape describes how many leaves a tag carries and what they hold.
type Shape int

const (
	// ShapeScalar is exactly one leaf.
	ShapeScalar Shape = iota + 1
	// ShapeArray is N independent leaves.
	ShapeArray
	// ShapeTuple is exactly one nested WireForm leaf.
	ShapeTuple
	// ShapeTupleArray is N nested WireForm leaves with a common tag sequence.
	ShapeTupleArray
)

var shapes = map[TypeTag]Shape{
	TagAddress:      ShapeScalar,
	TagAddressArray: ShapeArray,
	TagBytes32:      ShapeScalar,
	TagUInt8:        ShapeScalar,
	TagUInt64:       ShapeScalar,
	TagUInt64Array:  ShapeArray,
	TagInt64:        ShapeScalar,
	TagUInt256:      ShapeScalar,
	TagUInt256Array: ShapeArray,
	TagTuple:        ShapeTuple,
	TagTupleArray:   ShapeTupleArray,
	TagString:       ShapeScalar,
	TagStringArray:  ShapeArray,
}

// Tags returns every recognised tag in declaration order.
func Tags() []TypeTag {
	return []TypeTag{
		TagAddress, TagAddressArray, TagBytes32, TagUInt8, TagUInt64,
		TagUInt64Array, TagInt64, TagUInt256, TagUInt256Array, TagTuple,
		TagTupleArray, TagString, TagStringArray,
	}
}

// Valid reports whether t belongs to the closed tag set.
func (t TypeTag) Valid() bool {
	_, ok := shapes[t]
	return ok
}

// Shape returns the leaf shape of t, or 0 for an unknown tag.
func (t TypeTag) Shape() Shape {
	return shapes[t]
}

// Value is one tagged contract argument.
// Field order fixes the JSON key order: "type" before "value".
type Value struct {
	Type   TypeTag  `json:"type"`
	Leaves []string `json:"value"`
}

// Tuple decodes the nested list of a tuple value.
func (v Value) Tuple() (List, error) {
	if v.Type != TagTuple {
		return List{}, newEncodingError(v.Type, "not a tuple value", nil)
	}
	if len(v.Leaves) != 1 {
		return List{}, newEncodingError(v.Type, "tuple must carry exactly one leaf", nil)
	}
	return Decode(v.Leaves[0])
}

// TupleArray decodes every nested list of a tuple[] value.
func (v Value) TupleArray() ([]List, error) {
	if v.Type != TagTupleArray {
		return nil, newEncodingError(v.Type, "not a tuple[] value", nil)
	}
	out := make([]List, len(v.Leaves))
	for i, leaf := range v.Leaves {
		l, err := Decode(leaf)
		if err != nil {
			return nil, wrapIndex(v.Type, i, err)
		}
		out[i] = l
	}
	return out, nil
}

func (v Value) equal(o Value) bool {
	return v.Type == o.Type && slices.Equal(v.Leaves, o.Leaves)
}

// List is an ordered, immutable sequence of tagged values.
// Order is significant: values map to positional contract arguments.
type List struct {
	values []Value
}

// Len returns the number of values.
func (l List) Len() int {
	return len(l.values)
}

// At returns a copy of the i-th value.
func (l List) At(i int) Value {
	v := l.values[i]
	return Value{Type: v.Type, Leaves: slices.Clone(v.Leaves)}
}

// Values returns a deep copy of the values.
func (l List) Values() []Value {
	out := make([]Value, len(l.values))
	for i := range l.values {
		out[i] = l.At(i)
	}
	return out
}

// TagSequence returns the top-level tags in order.
// Two lists are structurally compatible when their tag sequences are equal.
func (l List) TagSequence() []TypeTag {
	out := make([]TypeTag, len(l.values))
	for i, v := range l.values {
		out[i] = v.Type
	}
	return out
}

// Equal reports tag-for-tag, leaf-for-leaf equality.
func (l List) Equal(o List) bool {
	return slices.EqualFunc(l.values, o.values, Value.equal)
}
