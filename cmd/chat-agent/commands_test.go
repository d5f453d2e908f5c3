package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-agent/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIndexCommand(t *testing.T) {
	tmp := t.TempDir()
	docs := filepath.Join(tmp, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "france.txt"), []byte("Paris is the capital of France."), 0o644))

	out, err := execute(t, "index",
		"--config", filepath.Join(tmp, "missing.yaml"),
		"--docs", docs,
		"--log-file", filepath.Join(tmp, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 1 documents into 1 chunks")
	assert.Contains(t, out, "Summary: Paris is the capital of France.")
}

func TestIndexCommand_EmptyCorpus(t *testing.T) {
	tmp := t.TempDir()
	_, err := execute(t, "index",
		"--config", filepath.Join(tmp, "missing.yaml"),
		"--docs", tmp,
		"--log-file", filepath.Join(tmp, "test.log"))
	assert.ErrorContains(t, err, "no .txt documents found")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = execute(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")
}

func TestAskCommand_RequiresAPIKey(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	cfg := config.Default()
	cfg.LLM.APIKeyEnv = "CHAT_AGENT_CMD_TEST_KEY"
	require.NoError(t, config.Save(cfgPath, cfg))
	t.Setenv("CHAT_AGENT_CMD_TEST_KEY", "")

	_, err := execute(t, "ask", "hello", "--config", cfgPath, "--log-file", filepath.Join(tmp, "test.log"))
	assert.ErrorContains(t, err, "missing API key")
}
