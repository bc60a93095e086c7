// Package report 把审计结果汇总为 markdown 报告并写入文件
package report

import (
	"fmt"
	"time"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

// Entry 报告中的一个审计对象
type Entry struct {
	Subject string // 文件路径或合约地址
	Report  *internal.AuditReport
	Verdict internal.Verdict
	Fix     *internal.FixSuggestion // 可选
	Err     error                   // 审计失败时非空
}

// Report 表示完整的审计报告
type Report struct {
	Title       string
	Provider    string
	GeneratedAt time.Time
	Entries     []Entry
}

// NewReport 创建新的报告实例
func NewReport(title, provider string) *Report {
	return &Report{
		Title:       title,
		Provider:    provider,
		GeneratedAt: time.Now(),
		Entries:     make([]Entry, 0),
	}
}

// AddEntry 添加审计结果
func (r *Report) AddEntry(e Entry) {
	r.Entries = append(r.Entries, e)
}

// Stats 统计结论和严重程度分布
func (r *Report) Stats() (verdicts map[internal.Verdict]int, severities map[internal.Severity]int, failed int) {
	verdicts = make(map[internal.Verdict]int)
	severities = make(map[internal.Severity]int)
	for _, e := range r.Entries {
		if e.Err != nil || e.Report == nil {
			failed++
			continue
		}
		verdicts[e.Verdict]++
		for s, n := range e.Report.SeverityCounts() {
			severities[s] += n
		}
	}
	return verdicts, severities, failed
}

// Reporter 报告器，整合生成器和存储功能
type Reporter struct {
	generator Generator
	storage   Storage
}

// NewReporter 创建报告器
func NewReporter(generator Generator, storage Storage) *Reporter {
	return &Reporter{
		generator: generator,
		storage:   storage,
	}
}

// GenerateAndSave 生成并保存报告
func (r *Reporter) GenerateAndSave(report *Report) (string, error) {
	content, err := r.generator.Generate(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	path, err := r.storage.Save(report, content)
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return path, nil
}
