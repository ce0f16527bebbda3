package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	helloWire   = "W3sidHlwZSI6InN0cmluZyIsInZhbHVlIjpbImhpIl19XQ=="
	addressWire = "W3sidHlwZSI6ImFkZHJlc3MiLCJ2YWx1ZSI6WyIwLjAuMSJdfV0="
)

func executeRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestEncodeCommand_Stdin(t *testing.T) {
	out, err := executeRoot(t, `[{"type":"string","value":"hi"}]`, "encode")
	require.NoError(t, err)
	assert.Equal(t, helloWire+"\n", out)
}

func TestEncodeCommand_YAMLFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- {type: string, value: hi}\n"), 0644))

	out, err := executeRoot(t, "", "--format", "json", "encode", path)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   EncodeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, helloWire, resp.Data.Wire)
	require.Len(t, resp.Data.Types, 1)
	assert.Equal(t, "string", string(resp.Data.Types[0]))
}

func TestEncodeCommand_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  string
	}{
		{"empty", "", ErrCodeBadInput},
		{"not a list", "type: string", ErrCodeBadInput},
		{"unknown tag", "[{type: float, value: 1}]", ErrCodeEncoding},
		{"bad address", "[{type: address, value: nope}]", ErrCodeEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeRoot(t, tt.input, "--format", "json", "encode")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestDecodeCommand(t *testing.T) {
	out, err := executeRoot(t, "", "--format", "json", "decode", helloWire)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":[{"type":"string","value":"hi"}]}`, out)

	out, err = executeRoot(t, helloWire+"\n", "decode", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"value": "hi"`)
}

func TestDecodeCommand_InvalidWire(t *testing.T) {
	out, err := executeRoot(t, "", "decode", "not base64!!")
	require.Error(t, err)
	assert.Contains(t, out, "Error ["+ErrCodeEncoding+"]")
}

func TestProjectCommand(t *testing.T) {
	out, err := executeRoot(t, "", "--format", "json", "project", addressWire)
	require.NoError(t, err)

	var resp struct {
		Data ProjectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "address", resp.Data.Signature)
	assert.Equal(t, []string{"address"}, resp.Data.Types)
	assert.Equal(t, []any{"0x0000000000000000000000000000000000000001"}, resp.Data.Values)
}

func TestProjectCommand_Text(t *testing.T) {
	out, err := executeRoot(t, "", "project", addressWire)
	require.NoError(t, err)
	assert.Contains(t, out, `"signature": "address"`)
}

func TestParseTyped(t *testing.T) {
	items, err := parseTyped([]byte(`[{"type":"uint64","value":7}]`))
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = parseTyped([]byte("  \n"))
	assert.Error(t, err)

	_, err = parseTyped([]byte("[unclosed"))
	assert.Error(t, err)
}
