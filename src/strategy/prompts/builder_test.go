package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Equal(t, []string{Audit, Fix, FixAll, Generate}, c.Names())
}

func TestBuildAuditPrompt(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	out, err := c.Build(Audit, Data{Code: "contract Vault {}"})
	require.NoError(t, err)
	assert.Contains(t, out, "contract Vault {}")
	assert.Contains(t, out, `"vulnerabilities"`)
	assert.Contains(t, out, `"id": "",`)
}

func TestBuildFixAllPrompt(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	out, err := c.Build(FixAll, Data{
		Code: "contract A {}",
		Vulnerabilities: []internal.Vulnerability{
			{Title: "Reentrancy Vulnerability", Severity: internal.SeverityHigh, Description: "d1"},
			{Title: "Potential Integer Overflow", Severity: internal.SeverityMedium, Description: "d2"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "1. [High] Reentrancy Vulnerability: d1")
	assert.Contains(t, out, "2. [Medium] Potential Integer Overflow: d2")
}

func TestBuildUnknownPrompt(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	_, err = c.Build("nope", Data{})
	assert.Error(t, err)

	_, err = BuildPrompt("{{.Missing}}", Data{})
	assert.Error(t, err)
}

func TestLoadCatalogOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generate:\n  template: \"Write: {{.Prompt}}\"\n"), 0644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	out, err := c.Build(Generate, Data{Prompt: "an ERC20"})
	require.NoError(t, err)
	assert.Equal(t, "Write: an ERC20", out)

	_, ok := c[Audit]
	assert.True(t, ok, "entries missing from the override keep the built-in version")

	require.NoError(t, os.WriteFile(path, []byte("audit:\n  template: \"\"\n"), 0644))
	_, err = LoadCatalog(path)
	assert.Error(t, err)
}
