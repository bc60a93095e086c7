package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

// 模型返回的原始结构，指针字段用于区分缺失与零值
type rawVulnerability struct {
	ID          *string `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Severity    *string `json:"severity"`
	Kind        *string `json:"kind"`
	LineStart   *int    `json:"lineStart"`
	LineEnd     *int    `json:"lineEnd"`
	Suggestion  *string `json:"suggestion"`
}

type rawReport struct {
	ID              *string             `json:"id"`
	Timestamp       json.RawMessage     `json:"timestamp"`
	Vulnerabilities *[]rawVulnerability `json:"vulnerabilities"`
	Score           *int                `json:"score"`
	Summary         *string             `json:"summary"`
}

type rawFix struct {
	FixedCode   *string `json:"fixedCode"`
	Explanation *string `json:"explanation"`
}

type rawGenerated struct {
	Code        *string `json:"code"`
	Explanation *string `json:"explanation"`
}

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", internal.ErrSchemaMismatch, fmt.Sprintf(format, args...))
}

// DecodeAuditReport 严格解码审计报告
//
// 必填：vulnerabilities(数组)、score(0-100 整数)、summary(字符串)，
// 每个漏洞必须有 title、description、severity。缺失的漏洞 id 以 vuln-N 补齐，
// isApproved 始终由严重程度重新计算，不采信模型给出的值。
// 报告 id 与 timestamp 缺失时保持零值，由调用方补齐。
func DecodeAuditReport(raw json.RawMessage) (*internal.AuditReport, error) {
	var r rawReport
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, mismatch("audit report: %v", err)
	}
	if r.Vulnerabilities == nil {
		return nil, mismatch("audit report: missing vulnerabilities")
	}
	if r.Score == nil {
		return nil, mismatch("audit report: missing score")
	}
	if *r.Score < 0 || *r.Score > 100 {
		return nil, mismatch("audit report: score %d out of range", *r.Score)
	}
	if r.Summary == nil {
		return nil, mismatch("audit report: missing summary")
	}

	report := &internal.AuditReport{
		Score:           *r.Score,
		Summary:         *r.Summary,
		Vulnerabilities: make([]internal.Vulnerability, 0, len(*r.Vulnerabilities)),
	}
	if r.ID != nil {
		report.ID = strings.TrimSpace(*r.ID)
	}
	report.Timestamp = decodeTimestamp(r.Timestamp)

	for i, rv := range *r.Vulnerabilities {
		v, err := decodeVulnerability(rv, i)
		if err != nil {
			return nil, err
		}
		report.Vulnerabilities = append(report.Vulnerabilities, v)
	}
	assignIDs(report.Vulnerabilities)
	report.DeriveApproval()
	return report, nil
}

// assignIDs 保证报告内漏洞 id 唯一：模型给出的 id 首次出现时保留，
// 缺失或重复的 id 按位置补为第一个未被占用的 vuln-N
func assignIDs(vs []internal.Vulnerability) {
	seen := make(map[string]bool, len(vs))
	pending := make([]int, 0, len(vs))
	for i := range vs {
		if vs[i].ID == "" || seen[vs[i].ID] {
			pending = append(pending, i)
			continue
		}
		seen[vs[i].ID] = true
	}
	for _, i := range pending {
		n := i + 1
		for seen[fmt.Sprintf("vuln-%d", n)] {
			n++
		}
		vs[i].ID = fmt.Sprintf("vuln-%d", n)
		seen[vs[i].ID] = true
	}
}

func decodeVulnerability(rv rawVulnerability, idx int) (internal.Vulnerability, error) {
	if rv.Title == nil || strings.TrimSpace(*rv.Title) == "" {
		return internal.Vulnerability{}, mismatch("vulnerability %d: missing title", idx)
	}
	if rv.Description == nil {
		return internal.Vulnerability{}, mismatch("vulnerability %d: missing description", idx)
	}
	if rv.Severity == nil {
		return internal.Vulnerability{}, mismatch("vulnerability %d: missing severity", idx)
	}
	sev, err := internal.ParseSeverity(*rv.Severity)
	if err != nil {
		return internal.Vulnerability{}, mismatch("vulnerability %d: %v", idx, err)
	}

	v := internal.Vulnerability{
		Title:       *rv.Title,
		Description: *rv.Description,
		Severity:    sev,
		LineStart:   rv.LineStart,
		LineEnd:     rv.LineEnd,
	}
	if rv.ID != nil {
		v.ID = strings.TrimSpace(*rv.ID)
	}
	if rv.Kind != nil {
		v.Kind = internal.VulnerabilityKind(*rv.Kind)
	}
	v.EnsureKind()
	if rv.Suggestion != nil {
		v.Suggestion = *rv.Suggestion
	}
	return v, nil
}

// decodeTimestamp 接受毫秒数字、数字字符串或 RFC3339，无法识别时返回 0
func decodeTimestamp(raw json.RawMessage) int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int64(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli()
	}
	return 0
}

// DecodeFix 严格解码修复结果，fixedCode 与 explanation 必须为非空字符串
func DecodeFix(raw json.RawMessage) (fixedCode, explanation string, err error) {
	var f rawFix
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", "", mismatch("fix: %v", err)
	}
	if f.FixedCode == nil || strings.TrimSpace(*f.FixedCode) == "" {
		return "", "", mismatch("fix: missing fixedCode")
	}
	if f.Explanation == nil || strings.TrimSpace(*f.Explanation) == "" {
		return "", "", mismatch("fix: missing explanation")
	}
	return *f.FixedCode, *f.Explanation, nil
}

// DecodeGenerated 严格解码合约生成结果
func DecodeGenerated(raw json.RawMessage) (*internal.GeneratedContract, error) {
	var g rawGenerated
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, mismatch("generated contract: %v", err)
	}
	if g.Code == nil || strings.TrimSpace(*g.Code) == "" {
		return nil, mismatch("generated contract: missing code")
	}
	if g.Explanation == nil || strings.TrimSpace(*g.Explanation) == "" {
		return nil, mismatch("generated contract: missing explanation")
	}
	return &internal.GeneratedContract{Code: *g.Code, Explanation: *g.Explanation}, nil
}
