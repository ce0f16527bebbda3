package harness

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestdata(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return s
}

func TestRun_WalletFlowGolden(t *testing.T) {
	s := loadTestdata(t, "wallet_flow")

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Calls(), 4)
}

func TestRun_Failures(t *testing.T) {
	s := loadTestdata(t, "failures")

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 6)
	timeout := result.Trace[1]
	assert.Equal(t, "TIMEOUT", timeout.Outcome)
	assert.Equal(t, "hang-1", timeout.ID)

	encoding := result.Trace[3]
	assert.Equal(t, "ENCODING_ERROR", encoding.Outcome)
	assert.Empty(t, encoding.ID)
	assert.Empty(t, result.Trace[2].Script)

	assert.Equal(t, "getC14url-2", result.Trace[5].ID)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	s := loadTestdata(t, "wallet_flow")
	s.Flow[0].Expect.Data = map[string]any{"hbars": 99}
	s.Assertions = append(s.Assertions, Assertion{Type: AssertTraceCount, Function: "bladeSdk.getInfo", Count: 2})

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "flow[0] bladeSdk.getBalance")
	assert.Contains(t, result.Errors[1], "Assertion failed: trace_count")
}

func TestRun_SetupFailureIsError(t *testing.T) {
	s := loadTestdata(t, "wallet_flow")
	s.Setup = []Step{{Call: "bladeSdk.getInfo"}}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0] bladeSdk.getInfo failed")
}

func TestRun_BootFailure(t *testing.T) {
	path := writeScenario(t, `
name: broken
description: "bootstrap throws"
script: sdk.js
flow:
  - call: bladeSdk.getInfo
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Script, []byte(`throw new Error("boom");`), 0644))

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
