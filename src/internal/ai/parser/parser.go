package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

// fencedBlock 匹配 ``` 或 ```json 代码块
var fencedBlock = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")

// Parse 从模型输出中提取 JSON，依次尝试：
//  1. 整段文本直接解析
//  2. 第一个 markdown 代码块的内容
//  3. 第一个 { 到最后一个 } 之间的内容
//
// 这里只保证结果是合法 JSON，不校验字段，字段校验见 Decode* 系列函数。
func Parse(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	if m := fencedBlock.FindStringSubmatch(text); len(m) > 1 {
		inner := strings.TrimSpace(m[1])
		if inner != "" && json.Valid([]byte(inner)) {
			return json.RawMessage(inner), nil
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, fmt.Errorf("%w: no JSON object found in %d bytes of output", internal.ErrUnparsableResponse, len(text))
}
