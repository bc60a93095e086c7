package report

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

func intp(n int) *int { return &n }

func sampleReport() *Report {
	r := NewReport("Batch Audit", "gemini")
	r.GeneratedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	r.AddEntry(Entry{
		Subject: "Bank.sol",
		Verdict: internal.VerdictReject,
		Report: &internal.AuditReport{
			ID:      "audit-1",
			Score:   35,
			Summary: "two issues",
			Source:  internal.SourceHeuristic,
			Vulnerabilities: []internal.Vulnerability{
				{ID: "vuln-1", Title: "Reentrancy Vulnerability", Description: "external call", Severity: internal.SeverityHigh, LineStart: intp(13), LineEnd: intp(13)},
				{ID: "vuln-3", Title: "Potential Integer Overflow", Description: "old pragma", Severity: internal.SeverityMedium, LineStart: intp(1), LineEnd: intp(2)},
			},
		},
		Fix: &internal.FixSuggestion{VulnerabilityID: internal.FixAllID, FixedCode: "contract Bank {}\n", Explanation: "fixed"},
	})
	r.AddEntry(Entry{Subject: "Broken.sol", Err: errors.New("remote call timed out")})
	r.AddEntry(Entry{
		Subject: "Token.sol",
		Verdict: internal.VerdictApprove,
		Report:  &internal.AuditReport{ID: "audit-2", Score: 100, Vulnerabilities: []internal.Vulnerability{}},
	})
	return r
}

func TestStats(t *testing.T) {
	verdicts, severities, failed := sampleReport().Stats()
	assert.Equal(t, 1, verdicts[internal.VerdictReject])
	assert.Equal(t, 1, verdicts[internal.VerdictApprove])
	assert.Equal(t, 1, severities[internal.SeverityHigh])
	assert.Equal(t, 1, severities[internal.SeverityMedium])
	assert.Equal(t, 1, failed)
}

func TestMarkdownGenerate(t *testing.T) {
	out, err := NewMarkdownGenerator().Generate(sampleReport())
	require.NoError(t, err)

	for _, want := range []string{
		"# Batch Audit",
		"**模型提供商**: gemini",
		"- **REJECT**: 1",
		"- **失败**: 1",
		"🔴 **High**: 1",
		"## Bank.sol",
		"**结论**: ❌ REJECT",
		"1. 🔴 **[High]** Reentrancy Vulnerability `vuln-1`",
		"**位置**: 第 13 行",
		"**位置**: 第 1-2 行",
		"### 🔧 修复: 全部漏洞",
		"```solidity\ncontract Bank {}\n```",
		"❌ 审计失败: remote call timed out",
		"✅ 未发现漏洞",
	} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 2, strings.Count(out, "---\n\n"))
}

func TestGenerateAndSave(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport()
	path, err := NewReporter(NewMarkdownGenerator(), NewFileStorage(dir)).GenerateAndSave(r)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "audit_report_batch_audit_"+strconv.FormatInt(r.GeneratedAt.Unix(), 10)+".md"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Batch Audit"))
}
