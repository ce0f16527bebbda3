package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario next to a placeholder script and returns
// its path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sdk.js"), []byte("var bladeSdk = {};"), 0644))
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
script: sdk.js
flow:
  - call: bladeSdk.getBalance
    args: ["0.0.1"]
    timeout: 1s
    expect:
      outcome: ok
      data: {hbars: 1}
  - reset: true
assertions:
  - type: trace_contains
    function: bladeSdk.getBalance
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "sdk.js"), scenario.Script)
	require.Len(t, scenario.Flow, 2)
	assert.Equal(t, "bladeSdk.getBalance", scenario.Flow[0].Call)
	assert.Equal(t, []any{"0.0.1"}, scenario.Flow[0].Args)
	assert.Equal(t, OutcomeOK, scenario.Flow[0].Expect.Outcome)
	assert.True(t, scenario.Flow[1].Reset)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "assertion instead of assertions"
script: sdk.js
flow:
  - call: bladeSdk.getInfo
assertion: []
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	header := "name: x\ndescription: y\nscript: sdk.js\n"

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing name", "description: y\nscript: sdk.js\nflow: [{call: a.b}]\n", "name is required"},
		{"missing description", "name: x\nscript: sdk.js\nflow: [{call: a.b}]\n", "description is required"},
		{"missing script", "name: x\ndescription: y\nflow: [{call: a.b}]\n", "script is required"},
		{"script not found", "name: x\ndescription: y\nscript: gone.js\nflow: [{call: a.b}]\n", "script not found"},
		{"empty flow", header + "flow: []\n", "flow list is required"},
		{"call and reset", header + "flow: [{call: a.b, reset: true}]\n", "either a call or a reset"},
		{"empty step", header + "flow: [{}]\n", "call is required"},
		{"reset with args", header + "flow: [{reset: true, args: [1]}]\n", "reset takes no args"},
		{"reset in setup", header + "setup: [{reset: true}]\nflow: [{call: a.b}]\n", "only calls are allowed"},
		{"bad timeout", header + "flow: [{call: a.b, timeout: soon}]\n", "timeout"},
		{"expect without outcome", header + "flow: [{call: a.b, expect: {data: 1}}]\n", "outcome is required"},
		{"unknown outcome", header + "flow: [{call: a.b, expect: {outcome: BOOM}}]\n", "unknown outcome"},
		{"assertion without type", header + "flow: [{call: a.b}]\nassertions: [{function: a.b}]\n", "type is required"},
		{"unknown assertion", header + "flow: [{call: a.b}]\nassertions: [{type: final_state}]\n", "unknown assertion type"},
		{"trace_order without functions", header + "flow: [{call: a.b}]\nassertions: [{type: trace_order}]\n", "functions list is required"},
		{"trace_count without function", header + "flow: [{call: a.b}]\nassertions: [{type: trace_count}]\n", "function is required"},
		{"journal_status bad status", header + "flow: [{call: a.b}]\nassertions: [{type: journal_status, status: done}]\n", "status must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		_, err := LoadScenario(p)
		assert.NoError(t, err, p)
	}
}
