package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Storage 报告存储接口
type Storage interface {
	Save(report *Report, content string) (string, error)
}

// FileStorage 文件存储实现
type FileStorage struct {
	OutputDir string
}

// NewFileStorage 创建文件存储
func NewFileStorage(outputDir string) *FileStorage {
	return &FileStorage{
		OutputDir: outputDir,
	}
}

// Save 保存报告到文件，文件名为 audit_report_<标题>_<时间戳>.md
func (s *FileStorage) Save(report *Report, content string) (string, error) {
	if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	ts := report.GeneratedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	filename := fmt.Sprintf("audit_report_%s_%d.md", slug(report.Title), ts.Unix())
	path := filepath.Join(s.OutputDir, filename)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "audit"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
