package provider

import (
	"regexp"
	"strings"
)

const (
	modernPragma = "pragma solidity ^0.8.20;"

	ownableImport = `import "@openzeppelin/contracts/access/Ownable.sol";`
	guardImport   = `import "@openzeppelin/contracts/utils/ReentrancyGuard.sol";`

	removedPlaceholder = "// Removed: self-destruct function is dangerous and deprecated"
)

var (
	pragmaRe      = regexp.MustCompile(`pragma\s+solidity\s+[^;]+;`)
	importLineRe  = regexp.MustCompile(`(?m)^[ \t]*import\s[^;]*;[ \t]*$`)
	pragmaLineRe  = regexp.MustCompile(`(?m)^[ \t]*pragma\s+solidity\s[^;]*;[ \t]*$`)
	spdxLineRe    = regexp.MustCompile(`(?m)^[ \t]*//\s*SPDX-License-Identifier:.*$`)
	contractDeclR = regexp.MustCompile(`(?m)^[ \t]*(?:abstract\s+)?contract\s+(\w+)(\s+is\s+[^{]+?)?\s*\{`)
	constructorRe = regexp.MustCompile(`constructor\s*\(([^)]*)\)([^{]*)\{`)
	functionKwRe  = regexp.MustCompile(`\bfunction\s+(\w+)\s*\(`)
	returnsRe     = regexp.MustCompile(`\breturns\b`)
)

// upgradePragma 将第一个编译器版本声明改为 ^0.8.20，没有声明时在 SPDX 行之后插入
func upgradePragma(code string) string {
	if loc := pragmaRe.FindStringIndex(code); loc != nil {
		return code[:loc[0]] + modernPragma + code[loc[1]:]
	}
	if loc := spdxLineRe.FindStringIndex(code); loc != nil {
		return code[:loc[1]] + "\n" + modernPragma + code[loc[1]:]
	}
	return modernPragma + "\n\n" + code
}

// ensureImport 插入 import 语句，已包含 marker 时不做任何修改。
// 插入位置依次为：最后一个 import 之后、pragma 之后、文件开头。
func ensureImport(code, line, marker string) string {
	if strings.Contains(code, marker) {
		return code
	}
	if locs := importLineRe.FindAllStringIndex(code, -1); len(locs) > 0 {
		end := locs[len(locs)-1][1]
		return code[:end] + "\n" + line + code[end:]
	}
	if loc := pragmaLineRe.FindStringIndex(code); loc != nil {
		return code[:loc[1]] + "\n\n" + line + code[loc[1]:]
	}
	return line + "\n\n" + code
}

// addInheritance 在第一个合约声明的继承列表中加入 base
func addInheritance(code, base string) string {
	m := contractDeclR.FindStringSubmatchIndex(code)
	if m == nil {
		return code
	}
	// m[2:4] 合约名，m[4:6] 继承列表（可能不存在）
	if m[4] >= 0 {
		list := code[m[4]:m[5]]
		if hasWord(list, base) {
			return code
		}
		return code[:m[5]] + ", " + base + code[m[5]:]
	}
	return code[:m[3]] + " is " + base + code[m[3]:]
}

// ensureOwnableConstructor 让构造函数初始化 Ownable
func ensureOwnableConstructor(code string) string {
	m := firstInCode(constructorRe, code, triviaMask(code))
	if m == nil {
		decl := contractDeclR.FindStringIndex(code)
		if decl == nil {
			return code
		}
		brace := decl[1]
		return code[:brace] + "\n    constructor(address initialOwner) Ownable(initialOwner) {}\n" + code[brace:]
	}

	params := code[m[2]:m[3]]
	rest := code[m[4]:m[5]]
	if strings.Contains(rest, "Ownable(") {
		return code
	}
	rest = strings.TrimRight(rest, " \t\r\n")
	var header string
	if strings.TrimSpace(params) == "" {
		header = "constructor(address initialOwner)" + rest + " Ownable(initialOwner) {"
	} else {
		header = "constructor(" + params + ")" + rest + " Ownable(msg.sender) {"
	}
	return code[:m[0]] + header + code[m[1]:]
}

// fnSpan 一个带函数体的函数定义
type fnSpan struct {
	name  string
	start int // "function" 关键字位置
	open  int // 函数体 '{'
	end   int // 函数体 '}'
}

func (f fnSpan) header(code string) string { return code[f.start:f.open] }
func (f fnSpan) body(code string) string   { return code[f.open : f.end+1] }

// scanFunctions 按出现顺序列出所有带函数体的函数。
// 没有函数体的声明被跳过，注释和字符串里出现的 function 不算。
func scanFunctions(code string) []fnSpan {
	mask := triviaMask(code)
	var spans []fnSpan
	pos := 0
	for _, m := range functionKwRe.FindAllStringSubmatchIndex(code, -1) {
		if m[0] < pos || mask[m[0]] {
			continue
		}

		open := -1
		for i := m[1]; i < len(code); i++ {
			if mask[i] {
				continue
			}
			if code[i] == ';' {
				break
			}
			if code[i] == '{' {
				open = i
				break
			}
		}
		if open < 0 {
			continue
		}
		end := matchBrace(code, open)
		if end < 0 {
			break
		}
		spans = append(spans, fnSpan{name: code[m[2]:m[3]], start: m[0], open: open, end: end})
		pos = end + 1
	}
	return spans
}

// skipTrivia 若 i 处是字符串或注释的开头，返回它最后一个字节的位置，否则返回 i。
// 块注释没有闭合时返回 -1。
func skipTrivia(code string, i int) int {
	switch c := code[i]; c {
	case '"', '\'':
		for i++; i < len(code) && code[i] != c; i++ {
			if code[i] == '\\' {
				i++
			}
		}
		return min(i, len(code)-1)
	case '/':
		if i+1 >= len(code) {
			return i
		}
		switch code[i+1] {
		case '/':
			for i < len(code) && code[i] != '\n' {
				i++
			}
			return min(i, len(code)-1)
		case '*':
			j := strings.Index(code[i+2:], "*/")
			if j < 0 {
				return -1
			}
			return i + j + 3
		}
	}
	return i
}

// triviaMask 标记位于注释或字符串内的字节
func triviaMask(code string) []bool {
	mask := make([]bool, len(code))
	for i := 0; i < len(code); i++ {
		j := skipTrivia(code, i)
		if j < 0 {
			j = len(code) - 1
		}
		for k := i; k <= j && j != i; k++ {
			mask[k] = true
		}
		i = j
	}
	return mask
}

// firstInCode 返回 re 在注释和字符串之外的第一个匹配
func firstInCode(re *regexp.Regexp, code string, mask []bool) []int {
	for _, m := range re.FindAllStringSubmatchIndex(code, -1) {
		if !mask[m[0]] {
			return m
		}
	}
	return nil
}

// matchBrace 返回与 open 处 '{' 配对的 '}'，跳过字符串和注释
func matchBrace(code string, open int) int {
	depth := 0
	for i := open; i < len(code); i++ {
		j := skipTrivia(code, i)
		if j < 0 {
			return -1
		}
		if j != i {
			i = j
			continue
		}
		switch code[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// addModifier 给满足 match 的函数加上修饰符，已带该修饰符的函数保持不变。
// 返回新代码和修改的函数个数。
func addModifier(code, modifier string, match func(name, body string) bool) (string, int) {
	spans := scanFunctions(code)
	changed := 0
	for i := len(spans) - 1; i >= 0; i-- {
		f := spans[i]
		header := f.header(code)
		if hasWord(header, modifier) || !match(f.name, f.body(code)) {
			continue
		}
		var newHeader string
		if loc := returnsRe.FindStringIndex(header); loc != nil {
			newHeader = header[:loc[0]] + modifier + " " + header[loc[0]:]
		} else {
			newHeader = strings.TrimRight(header, " \t\r\n") + " " + modifier + " "
		}
		code = code[:f.start] + newHeader + code[f.open:]
		changed++
	}
	return code, changed
}

// removeFunctions 删除函数体满足 match 的函数，替换为 placeholder 注释
func removeFunctions(code, placeholder string, match func(body string) bool) (string, int) {
	spans := scanFunctions(code)
	removed := 0
	for i := len(spans) - 1; i >= 0; i-- {
		f := spans[i]
		if !match(f.body(code)) {
			continue
		}
		code = code[:f.start] + placeholder + code[f.end+1:]
		removed++
	}
	return code, removed
}

// hasWord 判断 s 中是否有完整的标识符 word
func hasWord(s, word string) bool {
	for i := 0; i <= len(s)-len(word); {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		if (start == 0 || !isIdentByte(s[start-1])) && (end == len(s) || !isIdentByte(s[end])) {
			return true
		}
		i = start + 1
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// firstLineContaining 返回第一个包含 needle 的行号（从 1 开始），找不到时返回 0
func firstLineContaining(code, needle string) int {
	for i, line := range strings.Split(code, "\n") {
		if strings.Contains(line, needle) {
			return i + 1
		}
	}
	return 0
}
