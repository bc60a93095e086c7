package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeyEnv(t *testing.T) {
	for _, names := range apiKeyEnv {
		for _, n := range names {
			t.Setenv(n, "")
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	clearKeyEnv(t)

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", s.AI.Provider)
	assert.Equal(t, 60*time.Second, s.AI.Timeout)
	assert.Equal(t, 20, s.AI.RequestsPerMin)
	assert.True(t, s.AI.Fallback)
	assert.Equal(t, ":8080", s.Server.Addr)
	assert.Equal(t, "sqlite", s.Database.Driver)
	assert.Equal(t, int64(1), s.Etherscan.ChainID)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	clearKeyEnv(t)
	path := filepath.Join(dir, "nullshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ai:
  provider: deepseek
  timeout: 15s
  deepseek:
    api_key: from-file
    model: deepseek-coder
server:
  addr: ":9000"
`), 0o644))

	t.Setenv("NULLSHOT_SERVER_ADDR", ":9100")
	t.Setenv("NULLSHOT_AI_FALLBACK", "false")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "deepseek", s.AI.Provider)
	assert.Equal(t, 15*time.Second, s.AI.Timeout)
	assert.Equal(t, ":9100", s.Server.Addr)
	assert.False(t, s.AI.Fallback)

	cc, err := s.AI.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cc.APIKey)
	assert.Equal(t, "deepseek-coder", cc.Model)
	assert.Equal(t, 15*time.Second, cc.Timeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAPIKeyEnvFallback(t *testing.T) {
	t.Chdir(t.TempDir())
	clearKeyEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "google-key", s.AI.Gemini.APIKey)
	assert.Equal(t, "openai-key", s.AI.OpenAI.APIKey)

	s.AI.Provider = "openai"
	s.AI.Model = "gpt-4o"
	cc, err := s.AI.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "openai-key", cc.APIKey)
	assert.Equal(t, "gpt-4o", cc.Model)
}

func TestClientConfigErrors(t *testing.T) {
	a := AISettings{Provider: "deepseek"}
	_, err := a.ClientConfig()
	assert.ErrorContains(t, err, "DEEPSEEK_API_KEY")

	a.Provider = "ollama"
	cc, err := a.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cc.Timeout)

	a.Provider = "mystery"
	_, err = a.ClientConfig()
	assert.Error(t, err)

	assert.False(t, (&AISettings{Provider: "Heuristic"}).UsesRemote())
}

func TestDriverName(t *testing.T) {
	for in, want := range map[string]string{"": "sqlite", "sqlite3": "sqlite", "MySQL": "mysql", "postgres": "pgx"} {
		got, err := DriverName(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := DriverName("oracle")
	assert.Error(t, err)
}
