package handler

import (
	"fmt"
	"os"
	"strings"
)

// ReadAddressFile 从文件读取合约地址列表。
// 空行和 # 或 // 开头的行被忽略；一行有多个字段（逗号、空格、制表符分隔）时取第一个
func ReadAddressFile(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("文件路径为空")
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	addrs := make([]string, 0)
	for _, l := range strings.Split(string(bs), "\n") {
		line := strings.TrimSpace(l)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		if len(fields) == 0 {
			continue
		}
		addr := strings.TrimSpace(fields[0])
		// 去重
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
