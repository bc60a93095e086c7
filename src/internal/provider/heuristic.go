package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/admi-n/nullshot-auditor/src/internal"
	"github.com/admi-n/nullshot-auditor/src/strategy/templates"
)

// 启发式规则使用的标记
const (
	markExternalCall = "call{value:"
	markGuard        = "nonReentrant"
	markOwnerOnly    = "onlyOwner"
	markOwnable      = "Ownable"
	markModernPragma = "pragma solidity ^0.8"
	markDestroy      = "selfdestruct"
	markGuardBase    = "ReentrancyGuard"
	markAuditedLib   = "@openzeppelin/contracts"
)

// 每个规则的扣分与加分
const (
	penaltyReentrancy    = 35
	penaltyAccessControl = 30
	penaltyOverflow      = 20
	penaltySelfDestruct  = 40
	bonusGuard           = 10
	bonusAuditedLib      = 5
)

const (
	summaryClean = "Excellent! No critical vulnerabilities detected. The contract follows security best practices including reentrancy protection, access control, and modern Solidity version."
	summaryHigh  = "Critical vulnerabilities were found that should be addressed before deployment."
	summaryOther = "The issues found should be reviewed and fixed to improve contract security."
)

// HeuristicAuditor 只根据源码文本做确定性判断，不调用任何模型
type HeuristicAuditor struct {
	now func() time.Time
}

func NewHeuristicAuditor() *HeuristicAuditor {
	return &HeuristicAuditor{now: time.Now}
}

func lineRange(start, end int) (*int, *int) {
	return &start, &end
}

// localize 返回第一个匹配行；找不到时退回第 1 行
func localize(code, needle string) (*int, *int) {
	line := firstLineContaining(code, needle)
	if line == 0 {
		line = 1
	}
	return lineRange(line, line)
}

// Audit 实现 Auditor
func (h *HeuristicAuditor) Audit(ctx context.Context, code string) (*internal.AuditReport, error) {
	var vulns []internal.Vulnerability
	score := 100

	if !strings.Contains(code, markGuard) && strings.Contains(code, markExternalCall) {
		start, end := localize(code, markExternalCall)
		vulns = append(vulns, internal.Vulnerability{
			ID:          "vuln-1",
			Title:       "Reentrancy Vulnerability",
			Description: "The contract performs external calls before updating state, which could allow attackers to recursively call back into the contract and drain funds.",
			Severity:    internal.SeverityHigh,
			Kind:        internal.KindReentrancy,
			LineStart:   start,
			LineEnd:     end,
			Suggestion:  "Use the ReentrancyGuard from OpenZeppelin and apply the nonReentrant modifier to functions that make external calls. Always follow the checks-effects-interactions pattern.",
		})
		score -= penaltyReentrancy
	}

	if !strings.Contains(code, markOwnerOnly) && !strings.Contains(code, markOwnable) {
		start, end := lineRange(1, 5)
		vulns = append(vulns, internal.Vulnerability{
			ID:          "vuln-2",
			Title:       "Missing Access Control",
			Description: "Critical functions lack proper access control mechanisms, allowing any user to call sensitive operations.",
			Severity:    internal.SeverityHigh,
			Kind:        internal.KindAccessControl,
			LineStart:   start,
			LineEnd:     end,
			Suggestion:  "Implement OpenZeppelin's Ownable or AccessControl contract. Use modifiers like onlyOwner to restrict sensitive functions to authorized addresses only.",
		})
		score -= penaltyAccessControl
	}

	if !strings.Contains(code, markModernPragma) && (strings.Contains(code, "+=") || strings.Contains(code, "*")) {
		start, end := lineRange(1, 1)
		vulns = append(vulns, internal.Vulnerability{
			ID:          "vuln-3",
			Title:       "Potential Integer Overflow",
			Description: "The contract uses Solidity version below 0.8.0 which doesn't have built-in overflow protection, making arithmetic operations vulnerable.",
			Severity:    internal.SeverityMedium,
			Kind:        internal.KindIntegerOverflow,
			LineStart:   start,
			LineEnd:     end,
			Suggestion:  "Upgrade to Solidity 0.8.0 or higher for built-in overflow protection, or use OpenZeppelin's SafeMath library for arithmetic operations.",
		})
		score -= penaltyOverflow
	}

	if strings.Contains(code, markDestroy) && !strings.Contains(code, markOwnerOnly) {
		start, end := localize(code, markDestroy)
		vulns = append(vulns, internal.Vulnerability{
			ID:          "vuln-4",
			Title:       "Unprotected Self-Destruct",
			Description: "The selfdestruct function is not properly protected, allowing anyone to destroy the contract and steal funds.",
			Severity:    internal.SeverityHigh,
			Kind:        internal.KindSelfDestruct,
			LineStart:   start,
			LineEnd:     end,
			Suggestion:  "Add onlyOwner modifier to the function containing selfdestruct, or remove this functionality entirely as it's generally discouraged in modern contracts.",
		})
		score -= penaltySelfDestruct
	}

	if strings.Contains(code, markGuardBase) {
		score += bonusGuard
	}
	if strings.Contains(code, markAuditedLib) {
		score += bonusAuditedLib
	}
	score = max(0, min(100, score))

	report := &internal.AuditReport{
		ID:              newReportID(),
		Timestamp:       h.now().UnixMilli(),
		Vulnerabilities: vulns,
		Score:           score,
		Summary:         summarize(vulns),
		Source:          internal.SourceHeuristic,
		CodeHash:        CodeHash(code),
	}
	if report.Vulnerabilities == nil {
		report.Vulnerabilities = []internal.Vulnerability{}
	}
	report.DeriveApproval()
	return report, nil
}

func summarize(vulns []internal.Vulnerability) string {
	if len(vulns) == 0 {
		return summaryClean
	}
	plural := ""
	if len(vulns) > 1 {
		plural = "s"
	}
	tail := summaryOther
	for _, v := range vulns {
		if v.Severity == internal.SeverityHigh {
			tail = summaryHigh
			break
		}
	}
	return fmt.Sprintf("Security audit identified %d issue%s in this smart contract. %s", len(vulns), plural, tail)
}

// HeuristicFixer 按漏洞类别做文本改写
type HeuristicFixer struct{}

func NewHeuristicFixer() *HeuristicFixer {
	return &HeuristicFixer{}
}

func isWithdrawOrValueCall(name, body string) bool {
	return name == "withdraw" || strings.Contains(body, markExternalCall)
}

func isMint(name, _ string) bool {
	return name == "mint"
}

func callsSelfDestruct(body string) bool {
	return strings.Contains(body, markDestroy)
}

func fixReentrancy(code string) string {
	if !strings.Contains(code, markGuardBase) {
		code = ensureImport(code, guardImport, "ReentrancyGuard.sol")
		code = addInheritance(code, markGuardBase)
	}
	code, _ = addModifier(code, markGuard, isWithdrawOrValueCall)
	return code
}

func fixAccessControl(code string) string {
	if !strings.Contains(code, markOwnable) {
		code = ensureImport(code, ownableImport, "Ownable.sol")
		code = addInheritance(code, markOwnable)
		code = ensureOwnableConstructor(code)
	}
	code, _ = addModifier(code, markOwnerOnly, isMint)
	return code
}

// Fix 实现 Fixer，按 Kind 分派
func (f *HeuristicFixer) Fix(ctx context.Context, code string, v internal.Vulnerability) (*internal.FixSuggestion, error) {
	v.EnsureKind()

	var fixed, explanation string
	switch v.Kind {
	case internal.KindReentrancy:
		fixed = fixReentrancy(code)
		explanation = "Added ReentrancyGuard from OpenZeppelin and applied the nonReentrant modifier to the withdraw function. This prevents reentrancy attacks by ensuring the function cannot be called recursively before the previous execution completes."
	case internal.KindAccessControl:
		fixed = fixAccessControl(code)
		explanation = "Implemented OpenZeppelin's Ownable contract and added the onlyOwner modifier to sensitive functions like mint(). This ensures only the contract owner can call these critical operations, preventing unauthorized access."
	case internal.KindIntegerOverflow:
		fixed = upgradePragma(code)
		explanation = "Updated Solidity version to 0.8.20 which includes built-in overflow and underflow protection. This eliminates the need for SafeMath library and automatically prevents arithmetic vulnerabilities."
	case internal.KindSelfDestruct:
		fixed, _ = removeFunctions(code, removedPlaceholder, callsSelfDestruct)
		explanation = "Removed the selfdestruct functionality as it's considered dangerous and deprecated in modern Solidity development. If fund withdrawal is needed, implement a proper withdraw function with access control instead."
	default:
		fixed = code + "\n// TODO: Fix vulnerability: " + v.Title
		explanation = "Added a TODO comment to mark where the vulnerability should be fixed. Please review the specific issue and implement the appropriate security measures."
	}

	return &internal.FixSuggestion{
		VulnerabilityID: v.ID,
		OriginalCode:    code,
		FixedCode:       fixed,
		Explanation:     explanation,
		Source:          internal.SourceHeuristic,
	}, nil
}

// FixAll 组合改写，顺序固定：版本 -> import -> 继承 -> 修饰符 -> 删除函数。
// 后面的改写依赖前面的结果，不能拆成多个独立的单项修复。
func (f *HeuristicFixer) FixAll(ctx context.Context, code string, vs []internal.Vulnerability) (*internal.FixSuggestion, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("%w: no vulnerabilities to fix", internal.ErrInvalidSubmission)
	}

	kinds := make(map[internal.VulnerabilityKind]bool)
	var others []string
	for _, v := range vs {
		v.EnsureKind()
		kinds[v.Kind] = true
		if v.Kind == internal.KindOther {
			others = append(others, v.Title)
		}
	}
	needsOwnable := kinds[internal.KindAccessControl] && !strings.Contains(code, markOwnable)
	needsGuard := kinds[internal.KindReentrancy] && !strings.Contains(code, markGuardBase)

	fixed := code
	var steps []string

	if kinds[internal.KindIntegerOverflow] {
		fixed = upgradePragma(fixed)
		steps = append(steps, "✓ Upgraded to Solidity 0.8.20 for built-in overflow protection")
	}

	if needsOwnable {
		fixed = ensureImport(fixed, ownableImport, "Ownable.sol")
		steps = append(steps, "✓ Added Ownable contract for access control")
	}
	if needsGuard {
		fixed = ensureImport(fixed, guardImport, "ReentrancyGuard.sol")
		steps = append(steps, "✓ Added ReentrancyGuard to prevent reentrancy attacks")
	}

	if needsOwnable {
		fixed = addInheritance(fixed, markOwnable)
	}
	if needsGuard {
		fixed = addInheritance(fixed, markGuardBase)
	}
	if needsOwnable {
		fixed = ensureOwnableConstructor(fixed)
	}

	if kinds[internal.KindReentrancy] {
		fixed, _ = addModifier(fixed, markGuard, isWithdrawOrValueCall)
		steps = append(steps, "✓ Applied nonReentrant modifier to withdraw function")
	}
	if kinds[internal.KindAccessControl] {
		var n int
		fixed, n = addModifier(fixed, markOwnerOnly, isMint)
		if n > 0 {
			steps = append(steps, "✓ Applied onlyOwner modifier to mint function")
		}
	}

	if kinds[internal.KindSelfDestruct] {
		fixed, _ = removeFunctions(fixed, removedPlaceholder, callsSelfDestruct)
		steps = append(steps, "✓ Removed dangerous selfdestruct function")
	}

	for _, title := range others {
		fixed += "\n// TODO: Fix vulnerability: " + title
		steps = append(steps, "✓ Marked \""+title+"\" for manual review")
	}

	explanation := fmt.Sprintf("Applied comprehensive security fixes:\n\n%s\n\nAll %d critical vulnerabilities have been addressed. The contract now follows security best practices including proper access control, reentrancy protection, and modern Solidity standards.",
		strings.Join(steps, "\n"), len(vs))

	return &internal.FixSuggestion{
		VulnerabilityID: internal.FixAllID,
		OriginalCode:    code,
		FixedCode:       fixed,
		Explanation:     explanation,
		Source:          internal.SourceHeuristic,
	}, nil
}

// HeuristicGenerator 从内置模板中按关键字挑选合约
type HeuristicGenerator struct {
	lib *templates.Library
}

func NewHeuristicGenerator(lib *templates.Library) *HeuristicGenerator {
	return &HeuristicGenerator{lib: lib}
}

func (g *HeuristicGenerator) Generate(ctx context.Context, prompt string) (*internal.GeneratedContract, error) {
	t := g.lib.Match(prompt)
	return &internal.GeneratedContract{
		Code:        t.Code,
		Explanation: t.Explanation,
		Source:      internal.SourceHeuristic,
	}, nil
}
