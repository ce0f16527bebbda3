package bridge

import (
	"strconv"
	"strings"
)

// IDGenerator allocates correlation ids.
// Implemented by SequentialIDs (production) and testutil.FixedIDs (tests).
type IDGenerator interface {
	Next(tag string) string
}

// SequentialIDs builds ids of the form "<tag>-<n>" from a Clock.
//
// The separator keeps ids collision-free even when tags end in digits:
// "a1" with counter 2 is "a1-2", never "a12".
type SequentialIDs struct {
	clock *Clock
}

// NewSequentialIDs returns a generator over a fresh clock.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{clock: NewClock()}
}

// NewSequentialIDsFrom returns a generator over an existing clock.
func NewSequentialIDsFrom(clock *Clock) *SequentialIDs {
	return &SequentialIDs{clock: clock}
}

// Next returns "<tag>-<n>". Safe for concurrent use.
func (g *SequentialIDs) Next(tag string) string {
	return tag + "-" + strconv.FormatInt(g.clock.Next(), 10)
}

// DefaultTag derives an id tag from a function path: the last segment of
// "bladeSdk.getBalance" is "getBalance".
func DefaultTag(function string) string {
	if i := strings.LastIndexByte(function, '.'); i >= 0 {
		return function[i+1:]
	}
	return function
}
