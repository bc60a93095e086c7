package internal

import (
	"fmt"
	"strings"
)

// Severity 漏洞严重程度，High > Medium > Low
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// Rank 返回用于排序的权重，未知等级为 0
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity 大小写不敏感地解析严重程度
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SeverityHigh, nil
	case "medium":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// VulnerabilityKind 漏洞类别，修复逻辑按类别分派而不是按标题文本
type VulnerabilityKind string

const (
	KindReentrancy      VulnerabilityKind = "reentrancy"
	KindAccessControl   VulnerabilityKind = "access-control"
	KindIntegerOverflow VulnerabilityKind = "integer-overflow"
	KindSelfDestruct    VulnerabilityKind = "self-destruct"
	KindOther           VulnerabilityKind = "other"
)

// kindKeywords 按顺序匹配，先匹配者优先
var kindKeywords = []struct {
	keyword string
	kind    VulnerabilityKind
}{
	{"reentran", KindReentrancy},
	{"access control", KindAccessControl},
	{"access-control", KindAccessControl},
	{"integer overflow", KindIntegerOverflow},
	{"integer underflow", KindIntegerOverflow},
	{"overflow", KindIntegerOverflow},
	{"self-destruct", KindSelfDestruct},
	{"selfdestruct", KindSelfDestruct},
	{"self destruct", KindSelfDestruct},
}

// ClassifyTitle 从标题推断漏洞类别，仅用于没有携带 kind 的外部输入
func ClassifyTitle(title string) VulnerabilityKind {
	t := strings.ToLower(title)
	for _, kw := range kindKeywords {
		if strings.Contains(t, kw.keyword) {
			return kw.kind
		}
	}
	return KindOther
}

// ParseKind 解析外部传入的类别字符串，未知值返回空串
func ParseKind(s string) VulnerabilityKind {
	switch k := VulnerabilityKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindReentrancy, KindAccessControl, KindIntegerOverflow, KindSelfDestruct, KindOther:
		return k
	}
	return ""
}

// Source 结果来源
type Source string

const (
	SourceRemote    Source = "remote"
	SourceHeuristic Source = "heuristic"
)

// FixAllID 批量修复时 FixSuggestion.VulnerabilityID 的取值
const FixAllID = "all"

// Vulnerability 审计发现的单个问题
type Vulnerability struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Severity    Severity          `json:"severity"`
	Kind        VulnerabilityKind `json:"kind"`
	LineStart   *int              `json:"lineStart,omitempty"`
	LineEnd     *int              `json:"lineEnd,omitempty"`
	Suggestion  string            `json:"suggestion,omitempty"`
}

// EnsureKind 为缺少类别的漏洞按标题补齐类别
func (v *Vulnerability) EnsureKind() {
	if k := ParseKind(string(v.Kind)); k != "" {
		v.Kind = k
		return
	}
	v.Kind = ClassifyTitle(v.Title)
}

// AuditReport 一次审计的完整结果
type AuditReport struct {
	ID              string          `json:"id"`
	Timestamp       int64           `json:"timestamp"` // unix 毫秒
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Score           int             `json:"score"`
	Summary         string          `json:"summary"`
	IsApproved      bool            `json:"isApproved"`
	Source          Source          `json:"source"`
	CodeHash        string          `json:"codeHash,omitempty"`
}

// HasSeverity 报告中是否存在指定等级的漏洞
func (r *AuditReport) HasSeverity(s Severity) bool {
	for _, v := range r.Vulnerabilities {
		if v.Severity == s {
			return true
		}
	}
	return false
}

// DeriveApproval 根据漏洞列表重新计算 IsApproved
func (r *AuditReport) DeriveApproval() {
	r.IsApproved = !r.HasSeverity(SeverityHigh)
}

// SeverityCounts 按严重程度统计漏洞数量
func (r *AuditReport) SeverityCounts() map[Severity]int {
	counts := make(map[Severity]int)
	for _, v := range r.Vulnerabilities {
		counts[v.Severity]++
	}
	return counts
}

// FixSuggestion 修复建议
type FixSuggestion struct {
	VulnerabilityID string `json:"vulnerabilityId"`
	OriginalCode    string `json:"originalCode"`
	FixedCode       string `json:"fixedCode"`
	Explanation     string `json:"explanation"`
	Source          Source `json:"source"`
}

// GeneratedContract 根据描述生成的合约
type GeneratedContract struct {
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
	Source      Source `json:"source"`
}

// FixTarget 单个漏洞或一批漏洞
type FixTarget struct {
	Vulnerability   *Vulnerability
	Vulnerabilities []Vulnerability
}

// IsBatch 是否为批量修复
func (t FixTarget) IsBatch() bool {
	return t.Vulnerability == nil
}

// Verdict 审计结论
type Verdict string

const (
	VerdictApprove Verdict = "APPROVE"
	VerdictWarn    Verdict = "WARN"
	VerdictReject  Verdict = "REJECT"
)

// Contract 待审计的合约源码
type Contract struct {
	Name    string
	Address string
	Code    string
}
