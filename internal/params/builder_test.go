package params

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_NumericLeavesAreDecimal(t *testing.T) {
	l := NewBuilder().
		UInt8(123).
		UInt64(18446744073709551615).
		Int64(-9223372036854775808).
		UInt256(new(uint256.Int).Lsh(uint256.NewInt(1), 200)).
		UInt256Decimal("007").
		UInt64Array([]uint64{1, 2, 3}).
		MustBuild()

	vals := l.Values()
	require.Len(t, vals, 6)
	assert.Equal(t, []string{"123"}, vals[0].Leaves)
	assert.Equal(t, []string{"18446744073709551615"}, vals[1].Leaves)
	assert.Equal(t, []string{"-9223372036854775808"}, vals[2].Leaves)
	assert.Equal(t, []string{"1606938044258990275541962092341162602522202993782792835301376"}, vals[3].Leaves)
	assert.Equal(t, []string{"7"}, vals[4].Leaves)
	assert.Equal(t, []string{"1", "2", "3"}, vals[5].Leaves)
}

func TestBuilder_Rejects(t *testing.T) {
	a := NewBuilder().Int64(1).MustBuild()
	b := NewBuilder().String("x").MustBuild()

	tests := []struct {
		name  string
		build func() *Builder
		tag   TypeTag
	}{
		{"bad account id", func() *Builder { return NewBuilder().Address("0.0") }, TagAddress},
		{"bad evm address", func() *Builder { return NewBuilder().Address("0x1234") }, TagAddress},
		{"bad address element", func() *Builder { return NewBuilder().AddressArray([]string{"0.0.1", "nope"}) }, TagAddressArray},
		{"short bytes32", func() *Builder { return NewBuilder().Bytes32Slice(make([]byte, 31)) }, TagBytes32},
		{"long bytes32", func() *Builder { return NewBuilder().Bytes32Slice(make([]byte, 33)) }, TagBytes32},
		{"nil uint256", func() *Builder { return NewBuilder().UInt256(nil) }, TagUInt256},
		{"negative uint256", func() *Builder { return NewBuilder().UInt256Decimal("-1") }, TagUInt256},
		{"uint256 overflow", func() *Builder {
			return NewBuilder().UInt256Decimal("115792089237316195423570985008687907853269984665640564039457584007913129639936")
		}, TagUInt256},
		{"nil uint256 element", func() *Builder { return NewBuilder().UInt256Array([]*uint256.Int{nil}) }, TagUInt256Array},
		{"empty tuple array", func() *Builder { return NewBuilder().TupleArray() }, TagTupleArray},
		{"mismatched tuple array", func() *Builder { return NewBuilder().TupleArray(a, b) }, TagTupleArray},
		{"invalid utf8", func() *Builder { return NewBuilder().String("\xff") }, TagString},
		{"invalid utf8 element", func() *Builder { return NewBuilder().StringArray([]string{"ok", "\xfe"}) }, TagStringArray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Build()
			require.Error(t, err)

			var ee *EncodingError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.tag, ee.Tag)
		})
	}
}

func TestBuilder_FirstErrorSticks(t *testing.T) {
	b := NewBuilder().
		String("ok").
		Address("bogus").
		Bytes32Slice(nil).
		String("ignored")

	_, err := b.Build()
	require.Error(t, err)

	var ee *EncodingError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, TagAddress, ee.Tag)
	assert.Equal(t, 1, ee.Index)
}

func TestBuilder_ListIsImmutable(t *testing.T) {
	addrs := []string{"0.0.1", "0.0.2"}
	b := NewBuilder().AddressArray(addrs)
	l := b.MustBuild()

	addrs[0] = "0.0.99"
	b.String("later")

	assert.Equal(t, 1, l.Len())
	assert.Equal(t, []string{"0.0.1", "0.0.2"}, l.At(0).Leaves)

	v := l.At(0)
	v.Leaves[1] = "mutated"
	assert.Equal(t, "0.0.2", l.At(0).Leaves[1])
}

func TestBuilder_EVMAddressAccepted(t *testing.T) {
	l, err := NewBuilder().Address("0x65f17cac69fb3df1328a5c239761d32e8b346da0").Build()
	require.NoError(t, err)
	assert.Equal(t, []TypeTag{TagAddress}, l.TagSequence())
}

func TestParseAccountID(t *testing.T) {
	id, err := ParseAccountID("1.2.48850466")
	require.NoError(t, err)
	assert.Equal(t, AccountID{Shard: 1, Realm: 2, Num: 48850466}, id)
	assert.Equal(t, "1.2.48850466", id.String())

	for _, bad := range []string{"", "0.0", "0.0.x", "-1.0.1", "0.0.1.2", "4294967296.0.1"} {
		_, err := ParseAccountID(bad)
		assert.Error(t, err, bad)
	}
}

func TestTypeTag_Shapes(t *testing.T) {
	for _, tag := range Tags() {
		assert.True(t, tag.Valid(), tag)
	}
	assert.False(t, TypeTag("bool").Valid())
	assert.Equal(t, ShapeScalar, TagBytes32.Shape())
	assert.Equal(t, ShapeArray, TagStringArray.Shape())
	assert.Equal(t, ShapeTuple, TagTuple.Shape())
	assert.Equal(t, ShapeTupleArray, TagTupleArray.Shape())
	assert.Equal(t, Shape(0), TypeTag("bool").Shape())
}
