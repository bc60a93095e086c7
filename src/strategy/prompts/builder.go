package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Data 模板变量
type Data struct {
	Code            string
	Prompt          string
	Vulnerability   *internal.Vulnerability
	Vulnerabilities []internal.Vulnerability
}

// BuildPrompt 使用模板和变量构建最终的 prompt
func BuildPrompt(templateContent string, data Data) (string, error) {
	tmpl, err := template.New("prompt").Funcs(funcs).Option("missingkey=error").Parse(templateContent)
	if err != nil {
		return "", fmt.Errorf("模板解析失败: %w", err)
	}

	var result strings.Builder
	if err := tmpl.Execute(&result, data); err != nil {
		return "", fmt.Errorf("模板执行失败: %w", err)
	}
	return result.String(), nil
}

// Build 按名称渲染目录中的模板
func (c Catalog) Build(name string, data Data) (string, error) {
	e, ok := c[name]
	if !ok {
		return "", fmt.Errorf("prompt %q not found in catalog", name)
	}
	return BuildPrompt(e.Template, data)
}
