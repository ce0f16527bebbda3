package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type balance struct {
	HBars  string `json:"hbars"`
	Tokens []struct {
		TokenID string `json:"tokenId"`
		Balance string `json:"balance"`
	} `json:"tokens"`
}

func TestRoute_ResolvesTypedPayload(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)

	var got balance
	var failed error
	id := b.Dispatch(Call{Function: "bladeSdk.getBalance", Args: []any{"0.0.1"}},
		Expect(func(v balance) { got = v }, func(err error) { failed = err }))

	err := b.Route(`{"completionKey":"` + id + `","data":{"hbars":"10","tokens":[{"tokenId":"0.0.9","balance":"3"}]}}`)
	require.NoError(t, err)
	require.NoError(t, failed)
	assert.Equal(t, "10", got.HBars)
	require.Len(t, got.Tokens, 1)
	assert.Equal(t, "0.0.9", got.Tokens[0].TokenID)
}

func TestRoute_RemoteError(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)

	sink := &captureSink{}
	id := b.Dispatch(Call{Function: "bladeSdk.transferHbars"}, sink)

	err := b.Route(`{"completionKey":"` + id + `","data":null,"error":{"name":"StatusError","reason":"INSUFFICIENT_PAYER_BALANCE"}}`)
	require.NoError(t, err)

	require.Len(t, sink.failed, 1)
	assert.Empty(t, sink.resolved)
	assert.True(t, IsRemoteError(sink.failed[0]))

	var be *Error
	require.ErrorAs(t, sink.failed[0], &be)
	assert.Equal(t, "StatusError", be.Name)
	assert.Equal(t, "INSUFFICIENT_PAYER_BALANCE", be.Reason)
	assert.Equal(t, id, be.CorrelationID)
}

func TestRoute_NullDataIsAbsent(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)

	sink := &captureSink{}
	id := b.Dispatch(Call{Function: "f"}, sink)

	require.NoError(t, b.Route(`{"completionKey":"`+id+`","data":null}`))
	assert.Equal(t, []string{""}, sink.resolved)
}

func TestRoute_DecodeError(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)

	var failed error
	id := b.Dispatch(Call{Function: "f"}, Expect(func(balance) { t.Fatal("unexpected success") }, func(err error) { failed = err }))

	require.NoError(t, b.Route(`{"completionKey":"`+id+`","data":[1,2,3]}`))
	assert.True(t, IsDecodeError(failed))
}

func TestRoute_ProtocolErrors(t *testing.T) {
	tr := newFakeTransport()
	obs := &recordingObserver{}
	b := New(tr, WithObserver(obs))

	sink := &captureSink{}
	id := b.Dispatch(Call{Function: "f"}, sink)

	tests := []struct {
		name string
		raw  string
		kind string
	}{
		{"not json", `{"completionKey":`, ProtocolMalformed},
		{"not an object", `[1]`, ProtocolMalformed},
		{"missing key", `{"data":{}}`, ProtocolMissingKey},
		{"unknown id", `{"completionKey":"f-999","data":{}}`, ProtocolUnknownID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Route(tt.raw)
			require.Error(t, err)
			assert.True(t, IsProtocolDesync(err))
		})
	}

	assert.Equal(t, []string{ProtocolMalformed, ProtocolMalformed, ProtocolMissingKey, ProtocolUnknownID}, obs.protocol)
	assert.Equal(t, 1, b.Pending(), "protocol errors must not disturb pending calls")
	assert.Equal(t, 0, sink.Calls())

	b.HandleMessage(`{"completionKey":"` + id + `"}`)
	assert.Equal(t, 1, sink.Calls())
}

func TestRoute_DuplicateReply(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)

	sink := &captureSink{}
	id := b.Dispatch(Call{Function: "f"}, sink)

	reply := `{"completionKey":"` + id + `","data":1}`
	require.NoError(t, b.Route(reply))

	err := b.Route(reply)
	assert.True(t, IsProtocolDesync(err))
	assert.Equal(t, 1, sink.Calls())
}

func TestHandleReset_DrainsOrphans(t *testing.T) {
	tr := newFakeTransport()
	obs := &recordingObserver{}
	b := New(tr, WithObserver(obs))

	sinks := []*captureSink{{}, {}, {}}
	ids := make([]string, len(sinks))
	for i, s := range sinks {
		ids[i] = b.Dispatch(Call{Function: "f"}, s)
	}

	b.HandleReset()
	assert.Equal(t, 0, b.Pending())
	for _, s := range sinks {
		require.Len(t, s.failed, 1)
		assert.True(t, IsTransportReset(s.failed[0]))
	}
	assert.Len(t, obs.outcomes, 3)

	// Replies from the dead environment are protocol errors now.
	assert.True(t, IsProtocolDesync(b.Route(`{"completionKey":"`+ids[0]+`","data":{}}`)))
}

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope(`{"completionKey":"k-1","data":{"a":1},"error":null}`)
	require.NoError(t, err)
	assert.Equal(t, "k-1", env.CompletionKey)
	assert.JSONEq(t, `{"a":1}`, string(env.Data))
	assert.Nil(t, env.Error)

	env, err = ParseEnvelope(`{"completionKey":"k-2","data": null}`)
	require.NoError(t, err)
	assert.Nil(t, env.Data)
}
