package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := root.Execute()
	return out.String(), err
}

func TestSignCommand(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "test-key")
	t.Setenv("BYBIT_API_SECRET", "test-secret")

	out, err := runCLI(t, "sign", "--method", "get", "--timestamp", "1700000000000", "--payload", "accountType=UNIFIED")
	require.NoError(t, err)
	assert.Contains(t, out, "X-BAPI-API-KEY: test-key\n")
	assert.Contains(t, out, "X-BAPI-RECV-WINDOW: 5000\n")
	assert.Contains(t, out, "X-BAPI-SIGN: 3f10586267639c9f3f4f5e32e491a6ef80d157db06f51eb79e4988e24f97adba\n")
}

func TestSignCommand_RejectsMethod(t *testing.T) {
	_, err := runCLI(t, "sign", "--method", "DELETE")
	assert.Error(t, err)
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	t.Setenv("MAX_RISK_PER_TRADE", "500")
	_, err := runCLI(t, "sign")
	assert.Error(t, err)
}

func TestFlattenCommand_RequiresSymbol(t *testing.T) {
	_, err := runCLI(t, "flatten")
	assert.Error(t, err)
}
