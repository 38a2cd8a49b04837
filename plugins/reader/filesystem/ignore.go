package filesystem

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Matcher: gitignore 风格的忽略匹配器。不可变，Extend 返回新实例。
// 判定规则：最后一条命中的规则生效，命中取反规则即为“不忽略”。
type Matcher struct {
	rules []gitignore.Pattern
}

// NewMatcher 编译全局规则（配置中的 ignore 列表）。
func NewMatcher(patterns []string) *Matcher {
	return (&Matcher{}).Extend("", patterns)
}

// Extend 追加作用域为 base 目录的规则，返回新的 Matcher。
func (m *Matcher) Extend(base string, patterns []string) *Matcher {
	out := &Matcher{rules: make([]gitignore.Pattern, 0, len(m.rules)+len(patterns))}
	out.rules = append(out.rules, m.rules...)
	domain := splitRel(strings.Trim(base, "/"))
	for _, p := range patterns {
		if np, ok := normalize(p); ok {
			out.rules = append(out.rules, gitignore.ParsePattern(np, domain))
		}
	}
	return out
}

// Len 返回规则条数。
func (m *Matcher) Len() int { return len(m.rules) }

// Match 报告 rel（相对扫描根的正斜杠路径）是否被忽略。
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil {
		return false
	}
	path := splitRel(rel)
	ignored := false
	for _, r := range m.rules {
		switch r.Match(path, isDir) {
		case gitignore.Exclude:
			ignored = true
		case gitignore.Include:
			ignored = false
		}
	}
	return ignored
}

// ParseGitignore 返回 .gitignore 文本中的有效模式行。
func ParseGitignore(src string) []string {
	var out []string
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func splitRel(rel string) []string {
	if rel == "" || rel == "." {
		return nil
	}
	return strings.Split(rel, "/")
}

// normalize 把配置中的写法整理为 gitignore 模式：
// 反斜杠视作路径分隔符，[!...] 写作 [^...]，未闭合的 [ 按字面匹配。
func normalize(p string) (string, bool) {
	p = strings.TrimSpace(p)
	neg := strings.HasPrefix(p, "!")
	p = strings.TrimPrefix(p, "!")
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.Trim(p, "/") == "" {
		return "", false
	}

	var b strings.Builder
	for i := 0; i < len(p); i++ {
		if p[i] != '[' {
			b.WriteByte(p[i])
			continue
		}
		end := strings.IndexByte(p[i+1:], ']')
		if end <= 0 {
			b.WriteString(`\[`)
			continue
		}
		class := p[i+1 : i+1+end]
		if strings.HasPrefix(class, "!") {
			class = "^" + class[1:]
		}
		b.WriteString("[" + class + "]")
		i += end + 1
	}
	if neg {
		return "!" + b.String(), true
	}
	return b.String(), true
}
