package templates

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed index.yaml *.sol
var files embed.FS

// Template 一个内置合约模板
type Template struct {
	Name        string   `yaml:"name"`
	File        string   `yaml:"file"`
	Keywords    []string `yaml:"keywords"`
	Explanation string   `yaml:"explanation"`
	Code        string   `yaml:"-"`
}

// Library 按顺序匹配的模板集合，最后一个没有关键字的模板为默认模板
type Library struct {
	templates []Template
	fallback  *Template
}

// Load 读取内置模板
func Load() (*Library, error) {
	index, err := files.ReadFile("index.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read template index: %w", err)
	}

	var list []Template
	if err := yaml.Unmarshal(index, &list); err != nil {
		return nil, fmt.Errorf("failed to decode template index: %w", err)
	}

	lib := &Library{}
	for i := range list {
		code, err := files.ReadFile(list[i].File)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", list[i].Name, err)
		}
		list[i].Code = string(code)
		if len(list[i].Keywords) == 0 {
			t := list[i]
			lib.fallback = &t
			continue
		}
		lib.templates = append(lib.templates, list[i])
	}
	if lib.fallback == nil {
		return nil, fmt.Errorf("template index has no default entry")
	}
	return lib, nil
}

// Match 返回第一个关键字命中 prompt 的模板，没有命中时返回默认模板
func (l *Library) Match(prompt string) Template {
	p := strings.ToLower(prompt)
	for _, t := range l.templates {
		for _, kw := range t.Keywords {
			if strings.Contains(p, kw) {
				return t
			}
		}
	}
	return *l.fallback
}
