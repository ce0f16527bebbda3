// Package abi projects a params.List into the (types, values) pair an ABI
// encoder consumes.
//
// Projection is the read side of the wire format. Account ids become
// long-zero EVM addresses, bytes32 leaves become fixed 32-byte values and
// nested tuples are flattened into their canonical type strings such as
// "tuple(int64,tuple[](int64,int64))". Function selectors and the binary
// ABI encoding itself are left to the caller.
package abi

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/ledgerbridge/internal/params"
)

// Projection is the projected form of a parameter list.
// Types and values are positional and always the same length.
type Projection struct {
	types  []string
	values []any
}

// Types returns the ABI type string of every position.
func (p Projection) Types() []string {
	return append([]string(nil), p.types...)
}

// Values returns the projected value of every position.
//
// Values are common.Address for addresses, common.Hash for bytes32, decimal
// strings for integers, []any for tuples and []any of []any for tuple
// arrays.
func (p Projection) Values() []any {
	return append([]any(nil), p.values...)
}

// Len returns the number of projected positions.
func (p Projection) Len() int {
	return len(p.types)
}

// Signature joins the type strings with commas, as used inside a function
// selector or a tuple type.
func (p Projection) Signature() string {
	return strings.Join(p.types, ",")
}

// MarshalJSON renders {"types":[...],"values":[...]}.
func (p Projection) MarshalJSON() ([]byte, error) {
	types := p.types
	if types == nil {
		types = []string{}
	}
	values := p.values
	if values == nil {
		values = []any{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(struct {
		Types  []string `json:"types"`
		Values []any    `json:"values"`
	}{types, values}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ProjectWire decodes a WireForm and projects it.
func ProjectWire(wire string) (Projection, error) {
	l, err := params.Decode(wire)
	if err != nil {
		return Projection{}, err
	}
	return Project(l)
}

// Project converts every tagged value of l into its ABI type and value.
// Any failure, at any depth, is reported as a *params.EncodingError.
func Project(l params.List) (Projection, error) {
	p := Projection{
		types:  make([]string, 0, l.Len()),
		values: make([]any, 0, l.Len()),
	}
	for i := 0; i < l.Len(); i++ {
		v := l.At(i)
		typ, val, err := projectValue(v)
		if err != nil {
			return Projection{}, params.WrapIndex(v.Type, i, err)
		}
		p.types = append(p.types, typ)
		p.values = append(p.values, val)
	}
	return p, nil
}

func projectValue(v params.Value) (string, any, error) {
	switch v.Type {
	case params.TagAddress:
		addr, err := ToAddress(v.Leaves[0])
		if err != nil {
			return "", nil, err
		}
		return string(v.Type), addr, nil

	case params.TagAddressArray:
		addrs := make([]common.Address, len(v.Leaves))
		for i, leaf := range v.Leaves {
			addr, err := ToAddress(leaf)
			if err != nil {
				return "", nil, fmt.Errorf("element %d: %w", i, err)
			}
			addrs[i] = addr
		}
		return string(v.Type), addrs, nil

	case params.TagBytes32:
		raw, err := params.DecodeBytes32(v.Leaves[0])
		if err != nil {
			return "", nil, err
		}
		if len(raw) != common.HashLength {
			return "", nil, params.NewEncodingError(v.Type, fmt.Sprintf("want %d bytes, got %d", common.HashLength, len(raw)), nil)
		}
		return string(v.Type), common.BytesToHash(raw), nil

	case params.TagUInt8, params.TagInt64, params.TagUInt64, params.TagUInt256, params.TagString:
		return string(v.Type), v.Leaves[0], nil

	case params.TagUInt64Array, params.TagUInt256Array, params.TagStringArray:
		return string(v.Type), append([]string{}, v.Leaves...), nil

	case params.TagTuple:
		nested, err := v.Tuple()
		if err != nil {
			return "", nil, err
		}
		inner, err := Project(nested)
		if err != nil {
			return "", nil, err
		}
		return "tuple(" + inner.Signature() + ")", inner.values, nil

	case params.TagTupleArray:
		return projectTupleArray(v)
	}

	return "", nil, params.NewEncodingError(v.Type, "unsupported type tag", nil)
}

// projectTupleArray takes its element signature from the first element.
// Every other element must project to the same signature.
func projectTupleArray(v params.Value) (string, any, error) {
	elems, err := v.TupleArray()
	if err != nil {
		return "", nil, err
	}
	if len(elems) == 0 {
		return "", nil, params.NewEncodingError(v.Type, "empty tuple array has no element type", nil)
	}

	var sig string
	values := make([]any, len(elems))
	for i, elem := range elems {
		inner, err := Project(elem)
		if err != nil {
			return "", nil, fmt.Errorf("element %d: %w", i, err)
		}
		if i == 0 {
			sig = inner.Signature()
		} else if got := inner.Signature(); got != sig {
			return "", nil, params.NewEncodingError(v.Type, fmt.Sprintf("element %d signature (%s) differs from (%s)", i, got, sig), nil)
		}
		values[i] = inner.values
	}
	return "tuple[](" + sig + ")", values, nil
}

// ToAddress converts an account id or 0x EVM address into a 20-byte
// address. Account ids use the long-zero layout: 4-byte shard, 8-byte realm
// and 8-byte entity number, all big-endian.
func ToAddress(s string) (common.Address, error) {
	if params.IsEVMAddress(s) {
		return common.HexToAddress(s), nil
	}
	id, err := params.ParseAccountID(s)
	if err != nil {
		return common.Address{}, params.NewEncodingError(params.TagAddress, "invalid address", err)
	}
	return AccountAddress(id), nil
}

// AccountAddress returns the long-zero address of id.
func AccountAddress(id params.AccountID) common.Address {
	var a common.Address
	binary.BigEndian.PutUint32(a[0:4], id.Shard)
	binary.BigEndian.PutUint64(a[4:12], id.Realm)
	binary.BigEndian.PutUint64(a[12:20], id.Num)
	return a
}
