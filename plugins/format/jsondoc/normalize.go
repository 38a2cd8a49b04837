package jsondoc

import (
	"regexp"
	"strings"
)

// 单一交替正则，按优先级：双引号串、单引号串、注释、裸键、尾随逗号。
// 字符串分支先行匹配，其内部不会被其他分支改写。
var reNormalize = regexp.MustCompile(
	`("(?:\\[\s\S]|[^\\"])*")` +
		`|('(?:\\[\s\S]|[^\\'])*')` +
		`|(//[^\n]*|/\*[\s\S]*?\*/)` +
		`|(\s*)([^\s"':,{}\[\]]+)\s*(:)` +
		`|(,)\s*([}\]])`)

// 子匹配组下标（组号 * 2）
const (
	gDouble = 1
	gSingle = 2
	gCmt    = 3
	gKeyPre = 4
	gKey    = 5
	gKeyCol = 6
	gComma  = 7
	gClose  = 8
)

var sqEscaper = strings.NewReplacer(`"`, `\"`, "\b", `\b`, "\f", `\f`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// Normalize 将 JSON5 风格文本（裸键、单引号、注释、尾随逗号）改写为严格 JSON。
// 对合法 JSON 为恒等变换，且幂等。
func Normalize(src string) string {
	if src == "" {
		return src
	}
	matches := reNormalize.FindAllStringSubmatchIndex(src, -1)
	if matches == nil {
		return src
	}
	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for _, m := range matches {
		b.WriteString(src[last:m[0]])
		last = m[1]
		g := func(n int) string {
			if m[2*n] < 0 {
				return ""
			}
			return src[m[2*n]:m[2*n+1]]
		}
		switch {
		case m[2*gDouble] >= 0:
			b.WriteString(g(gDouble))
		case m[2*gSingle] >= 0:
			s := g(gSingle)
			inner := strings.ReplaceAll(s[1:len(s)-1], `\'`, "'")
			b.WriteString(`"` + sqEscaper.Replace(inner) + `"`)
		case m[2*gCmt] >= 0:
			// 删除注释
		case m[2*gKey] >= 0:
			b.WriteString(g(gKeyPre) + `"` + g(gKey) + `"` + g(gKeyCol))
		case m[2*gComma] >= 0:
			b.WriteString(g(gClose))
		default:
			b.WriteString(src[m[0]:m[1]])
		}
	}
	b.WriteString(src[last:])
	return b.String()
}

// extractBalanced 按字符串感知的括号深度收集所有顶层 {...} 片段。
func extractBalanced(text string) []string {
	var out []string
	depth, start := 0, -1
	inString, escaped := false, false
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString, quote = true, c
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					out = append(out, text[start:i+1])
				}
			}
		}
	}
	return out
}
