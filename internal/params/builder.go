package params

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/holiman/uint256"
)

// Builder assembles a List through an append-only, chainable API.
//
// Each method validates and normalises its input before appending. The
// first invalid input is remembered and returned by Build; later calls
// are ignored so a chain never panics halfway through.
//
//	list, err := params.NewBuilder().
//		String("Hello, Backend").
//		Address("0.0.48850466").
//		UInt64(56784645645).
//		Build()
type Builder struct {
	values []Value
	err    error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build returns the assembled list or the first recorded error.
func (b *Builder) Build() (List, error) {
	if b.err != nil {
		return List{}, b.err
	}
	return List{values: slices.Clone(b.values)}, nil
}

// MustBuild is like Build but panics on error. Intended for literals in tests.
func (b *Builder) MustBuild() List {
	l, err := b.Build()
	if err != nil {
		panic(err)
	}
	return l
}

// Err returns the first recorded error, if any.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) add(tag TypeTag, leaves ...string) *Builder {
	if b.err != nil {
		return b
	}
	if leaves == nil {
		leaves = []string{}
	}
	b.values = append(b.values, Value{Type: tag, Leaves: leaves})
	return b
}

func (b *Builder) fail(tag TypeTag, reason string, err error) *Builder {
	if b.err == nil {
		b.err = &EncodingError{Tag: tag, Index: len(b.values), Reason: reason, Err: err}
	}
	return b
}

// Address appends an account id (shard.realm.num) or 0x EVM address.
func (b *Builder) Address(addr string) *Builder {
	if err := validateAddress(addr); err != nil {
		return b.fail(TagAddress, "invalid address", err)
	}
	return b.add(TagAddress, addr)
}

// AddressArray appends a list of addresses.
func (b *Builder) AddressArray(addrs []string) *Builder {
	for i, a := range addrs {
		if err := validateAddress(a); err != nil {
			return b.fail(TagAddressArray, fmt.Sprintf("invalid address at element %d", i), err)
		}
	}
	return b.add(TagAddressArray, slices.Clone(addrs)...)
}

// Bytes32 appends a fixed 32-byte value.
func (b *Builder) Bytes32(v [32]byte) *Builder {
	return b.add(TagBytes32, EncodeBytes32(v[:]))
}

// Bytes32Slice appends a 32-byte value given as a slice; any other length fails.
func (b *Builder) Bytes32Slice(v []byte) *Builder {
	if len(v) != 32 {
		return b.fail(TagBytes32, fmt.Sprintf("want 32 bytes, got %d", len(v)), nil)
	}
	return b.add(TagBytes32, EncodeBytes32(v))
}

// UInt8 appends an unsigned 8-bit integer.
func (b *Builder) UInt8(v uint8) *Builder {
	return b.add(TagUInt8, strconv.FormatUint(uint64(v), 10))
}

// UInt64 appends an unsigned 64-bit integer.
func (b *Builder) UInt64(v uint64) *Builder {
	return b.add(TagUInt64, strconv.FormatUint(v, 10))
}

// UInt64Array appends a list of unsigned 64-bit integers.
func (b *Builder) UInt64Array(vs []uint64) *Builder {
	leaves := make([]string, len(vs))
	for i, v := range vs {
		leaves[i] = strconv.FormatUint(v, 10)
	}
	return b.add(TagUInt64Array, leaves...)
}

// Int64 appends a signed 64-bit integer.
func (b *Builder) Int64(v int64) *Builder {
	return b.add(TagInt64, strconv.FormatInt(v, 10))
}

// UInt256 appends a 256-bit unsigned integer.
func (b *Builder) UInt256(v *uint256.Int) *Builder {
	if v == nil {
		return b.fail(TagUInt256, "nil value", nil)
	}
	return b.add(TagUInt256, v.ToBig().String())
}

// UInt256Decimal appends a 256-bit unsigned integer given in decimal.
// The value is normalised, so "007" is stored as "7".
func (b *Builder) UInt256Decimal(s string) *Builder {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return b.fail(TagUInt256, fmt.Sprintf("invalid decimal %q", s), err)
	}
	return b.UInt256(v)
}

// UInt256Array appends a list of 256-bit unsigned integers.
func (b *Builder) UInt256Array(vs []*uint256.Int) *Builder {
	leaves := make([]string, len(vs))
	for i, v := range vs {
		if v == nil {
			return b.fail(TagUInt256Array, fmt.Sprintf("nil value at element %d", i), nil)
		}
		leaves[i] = v.ToBig().String()
	}
	return b.add(TagUInt256Array, leaves...)
}

// Tuple appends a nested list, embedded as its full WireForm.
func (b *Builder) Tuple(l List) *Builder {
	wire, err := Encode(l)
	if err != nil {
		return b.fail(TagTuple, "encode nested list", err)
	}
	return b.add(TagTuple, wire)
}

// TupleArray appends nested lists, one WireForm leaf each.
// All elements must share the first element's tag sequence, and the array
// must not be empty since its element type comes from the first element.
func (b *Builder) TupleArray(ls ...List) *Builder {
	if len(ls) == 0 {
		return b.fail(TagTupleArray, "tuple array needs at least one element", nil)
	}
	first := ls[0].TagSequence()
	leaves := make([]string, len(ls))
	for i, l := range ls {
		if seq := l.TagSequence(); !slices.Equal(first, seq) {
			return b.fail(TagTupleArray, fmt.Sprintf("element %d tag sequence %v differs from %v", i, seq, first), nil)
		}
		wire, err := Encode(l)
		if err != nil {
			return b.fail(TagTupleArray, fmt.Sprintf("encode element %d", i), err)
		}
		leaves[i] = wire
	}
	return b.add(TagTupleArray, leaves...)
}

// String appends a UTF-8 string.
func (b *Builder) String(s string) *Builder {
	if !utf8.ValidString(s) {
		return b.fail(TagString, "invalid UTF-8", nil)
	}
	return b.add(TagString, s)
}

// StringArray appends a list of UTF-8 strings.
func (b *Builder) StringArray(ss []string) *Builder {
	for i, s := range ss {
		if !utf8.ValidString(s) {
			return b.fail(TagStringArray, fmt.Sprintf("invalid UTF-8 at element %d", i), nil)
		}
	}
	return b.add(TagStringArray, slices.Clone(ss)...)
}

// EncodeBytes32 renders bytes as the bytes32 leaf format:
// base64 over a JSON array of integers, e.g. "[0,1,2]".
func EncodeBytes32(v []byte) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, c := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(c)))
	}
	sb.WriteByte(']')
	return base64.StdEncoding.EncodeToString([]byte(sb.String()))
}
