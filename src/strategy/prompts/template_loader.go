package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const (
	Audit    = "audit"
	Fix      = "fix"
	FixAll   = "fix_all"
	Generate = "generate"
)

// Entry 单个 prompt 模板
type Entry struct {
	Description string `yaml:"description"`
	Template    string `yaml:"template"`
}

// Catalog prompt 名称到模板的映射
type Catalog map[string]Entry

// DefaultCatalog 返回内置的 prompt 目录
func DefaultCatalog() (Catalog, error) {
	return parseCatalog(defaultCatalog)
}

// LoadCatalog 加载 prompt 目录，path 为空时使用内置目录；
// 文件中未出现的条目沿用内置版本
func LoadCatalog(path string) (Catalog, error) {
	base, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt catalog %s: %w", path, err)
	}
	override, err := parseCatalog(content)
	if err != nil {
		return nil, fmt.Errorf("prompt catalog %s: %w", path, err)
	}
	for name, e := range override {
		base[name] = e
	}
	return base, nil
}

func parseCatalog(content []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(content, &c); err != nil {
		return nil, fmt.Errorf("failed to decode prompt catalog: %w", err)
	}
	for name, e := range c {
		if e.Template == "" {
			return nil, fmt.Errorf("prompt %q has an empty template", name)
		}
	}
	return c, nil
}

// Names 列出目录中所有 prompt 名称
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
