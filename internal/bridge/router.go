package bridge

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

// Envelope is one message posted back by the script side.
type Envelope struct {
	CompletionKey string          `json:"completionKey"`
	Data          json.RawMessage `json:"data,omitempty"`
	Error         *RemoteFault    `json:"error,omitempty"`
}

// RemoteFault is the error half of an Envelope.
type RemoteFault struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Protocol error kinds reported to observers.
const (
	ProtocolMalformed  = "malformed"
	ProtocolMissingKey = "missing_key"
	ProtocolUnknownID  = "unknown_id"
)

var jsonNull = []byte("null")

// ParseEnvelope decodes raw into an Envelope. A "data": null is treated as
// absent.
func ParseEnvelope(raw string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{}, err
	}
	if bytes.Equal(bytes.TrimSpace(env.Data), jsonNull) {
		env.Data = nil
	}
	return env, nil
}

// Route delivers one inbound envelope to the call it belongs to.
//
// A message that cannot be parsed, has no completionKey, or names an id
// that is not pending returns a PROTOCOL_DESYNC error and changes nothing.
// Otherwise the entry is taken and its sink fired: with a REMOTE_ERROR
// when the envelope carries "error", else with the payload.
func (b *Bridge) Route(raw string) error {
	env, err := ParseEnvelope(raw)
	if err != nil {
		perr := desyncError("", "unparseable envelope", err)
		b.observeProtocolError(ProtocolMalformed, perr)
		return perr
	}
	if env.CompletionKey == "" {
		perr := desyncError("", "envelope has no completionKey", nil)
		b.observeProtocolError(ProtocolMissingKey, perr)
		return perr
	}

	p, ok := b.registry.Take(env.CompletionKey)
	if !ok {
		perr := desyncError(env.CompletionKey, "no pending call for id", nil)
		b.observeProtocolError(ProtocolUnknownID, perr)
		return perr
	}

	if env.Error != nil {
		p.fail(&Error{
			Code:          ErrCodeRemote,
			CorrelationID: env.CompletionKey,
			Name:          env.Error.Name,
			Reason:        env.Error.Reason,
		})
		return nil
	}
	p.resolve(env.Data)
	return nil
}

// HandleMessage implements Inbound. Protocol errors are logged and dropped.
func (b *Bridge) HandleMessage(raw string) {
	if err := b.Route(raw); err != nil {
		slog.Warn("dropping inbound message", "error", err, "size", len(raw))
	}
}

// HandleReset implements Inbound. Every pending call fails with
// TRANSPORT_RESET; their replies can no longer arrive.
func (b *Bridge) HandleReset() {
	n := b.registry.DrainAll(NewResetError("script environment was reset"))
	if n > 0 {
		slog.Info("drained pending calls after reset", "count", n)
	}
}
