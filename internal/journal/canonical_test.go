package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"sorted keys", `{"b":1,"a":2}`, `{"a":2,"b":1}`},
		{"whitespace", "{ \"a\" : [ 1 , 2 ] }", `{"a":[1,2]}`},
		{"numbers verbatim", `{"hbars":1.50,"big":12345678901234567890123}`, `{"big":12345678901234567890123,"hbars":1.50}`},
		{"null kept", `{"accountId":null}`, `{"accountId":null}`},
		{"no html escaping", `{"m":"<a&b>"}`, `{"m":"<a&b>"}`},
		{"nfc", "\"e\u0301\"", "\"\u00e9\""},
		{"line separator raw", "\"a\u2028b\"", "\"a\u2028b\""},
		{"nested", `[{"z":{"y":true,"x":false}}]`, `[{"z":{"x":false,"y":true}}]`},
		// U+1F600 sorts after U+FF61 by UTF-8 bytes but before it by UTF-16 units.
		{"utf16 order", "{\"\uff61\":2,\"\U0001F600\":1}", "{\"\U0001F600\":1,\"\uff61\":2}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestCanonicalize_Rejects(t *testing.T) {
	for _, in := range []string{``, `{`, `{} {}`, `[1,]`} {
		_, err := Canonicalize([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestPayloadHash_StableAcrossKeyOrder(t *testing.T) {
	a, err := Canonicalize([]byte(`{"hbars":1,"tokens":[]}`))
	require.NoError(t, err)
	b, err := Canonicalize([]byte(`{"tokens":[], "hbars":1}`))
	require.NoError(t, err)

	assert.Equal(t, PayloadHash(a), PayloadHash(b))
	assert.Len(t, PayloadHash(a), 64)
	assert.NotEqual(t, PayloadHash(a), PayloadHash([]byte(`{}`)))
}
