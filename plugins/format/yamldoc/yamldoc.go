package yamldoc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"catport/pkg/contract"
)

// InstructionMarker 标记指令区起点；其后每行以 "### " 开头，严格 YAML 视之为注释。
const InstructionMarker = "### ◼◼◼ INSTRUCTIONS"

// contentIndent 使块内容缩进于 content 键之下，输出保持为合法 YAML。
const contentIndent = "      "

// Codec 实现 YAML 容器。解析为按行扫描，不是 YAML 语法解析器。
type Codec struct{}

func New() *Codec { return &Codec{} }

var _ contract.Codec = (*Codec)(nil)

func (*Codec) Name() contract.Format { return contract.FormatYAML }

func indentBlock(s, indent string) string {
	return indent + strings.ReplaceAll(s, "\n", "\n"+indent)
}

func (*Codec) Header(m contract.Meta) string {
	var b strings.Builder
	b.WriteString("meta:\n  name: " + strconv.Quote(m.Name))
	if m.Context != "" {
		b.WriteString("\n  context:" + blockHead(m.Context) + indentBlock(m.Context, "    "))
	}
	if m.Tree != "" {
		b.WriteString("\n  tree:" + blockHead(m.Tree) + indentBlock(m.Tree, "    "))
	}
	b.WriteString("\nfiles:")
	return b.String()
}

// File 以块标量输出内容；空内容写为 content: ""。
func (*Codec) File(rec contract.FileRecord, _ contract.FileOptions) string {
	content := strings.TrimRightFunc(rec.Content, unicode.IsSpace)
	head := "\n  - path: " + strconv.Quote(rec.Path) + "\n    content:"
	if content == "" {
		return head + ` ""`
	}
	return head + blockHead(content) + indentBlock(content, contentIndent)
}

// blockHead 返回块标量头。各块内容都比其键多缩进 2 格；
// 首个非空行自带前导空白时须写出缩进指示符，否则该空白会被算作缩进。
func blockHead(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			return " |2\n"
		}
		break
	}
	return " |\n"
}

func (*Codec) Footer(m contract.Meta) string {
	var b strings.Builder
	if m.Task != "" {
		b.WriteString("\ntask:" + blockHead(m.Task) + indentBlock(m.Task, "  "))
	}
	if m.InstructionText != "" {
		lines := strings.Split(m.InstructionText, "\n")
		for i, l := range lines {
			lines[i] = "### " + l
		}
		b.WriteString("\n" + InstructionMarker + "\n" + strings.Join(lines, "\n"))
	}
	return b.String()
}

var (
	reInstr     = regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(InstructionMarker))
	rePathLine  = regexp.MustCompile(`^-?\s*path:`)
	rePathValue = regexp.MustCompile(`^-?\s*path:\s*(?:("(?:[^"\\]|\\.)*")|'([^']*)'|([^\s'"]+))`)
	reBlock     = regexp.MustCompile(`^content:\s*[|>][+-]?([1-9])?`)
	reTopKey    = regexp.MustCompile(`^[A-Za-z_][\w-]*:`)
	reInline    = regexp.MustCompile(`^content:\s*(\S.*)$`)
)

// record 为解析中的当前条目。
type record struct {
	path   string
	indent int
	lines  []string
}

func (r *record) flush(out []contract.FileRecord) []contract.FileRecord {
	content := strings.TrimRightFunc(strings.Join(r.lines, "\n"), unicode.IsSpace)
	return append(out, contract.FileRecord{Path: r.path, Content: content})
}

// Parse 按行恢复 path/content 条目。
// 块头带缩进指示符时基线为 content 行缩进加该值，否则取首个非空行的缩进；
// 缩进不足的行结束该块，若其为 path 行则在同一遍开启新条目。
// files 之外的顶层键（meta、task）之下的缩进行不开启条目。
func (*Codec) Parse(text string, d contract.Diagnostics) []contract.FileRecord {
	d = contract.OrDiscard(d)
	if loc := reInstr.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}

	var (
		out       []contract.FileRecord
		cur       *record
		inContent bool
		baseline  int
		topKey    string
	)
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		trim := strings.TrimSpace(line)
		indent := leadingIndent(line)

		if inContent {
			if trim == "" {
				if baseline > 0 && indent >= baseline {
					cur.lines = append(cur.lines, line[baseline:])
				} else {
					cur.lines = append(cur.lines, "")
				}
				continue
			}
			if baseline == 0 {
				baseline = indent
			}
			// 基线未缩进于 path 行之下时，同级 path 行视为新条目
			newEntry := rePathLine.MatchString(trim) && baseline <= cur.indent
			if indent >= baseline && !newEntry {
				cur.lines = append(cur.lines, line[baseline:])
				continue
			}
			inContent = false
		}

		if indent == 0 && !strings.HasPrefix(trim, "content:") {
			switch {
			case rePathLine.MatchString(trim):
				topKey = ""
			case reTopKey.MatchString(trim):
				topKey = trim[:strings.IndexByte(trim, ':')]
			}
		}
		foreign := indent > 0 && topKey != "" && topKey != "files"

		switch {
		case foreign:
		case rePathLine.MatchString(trim):
			if cur != nil {
				out = cur.flush(out)
				cur = nil
			}
			p, ok := pathValue(trim)
			if !ok {
				d.Warn(fmt.Sprintf("Skipping entry with empty path at line %d", n+1))
				continue
			}
			cur = &record{path: p, indent: indent}
		case cur != nil && reBlock.MatchString(trim):
			inContent, baseline = true, 0
			if m := reBlock.FindStringSubmatch(trim); m[1] != "" {
				baseline = indent + int(m[1][0]-'0')
			}
			cur.lines = nil
		case cur != nil && reInline.MatchString(trim):
			cur.lines = []string{inlineScalar(reInline.FindStringSubmatch(trim)[1])}
		}
	}
	if cur != nil {
		out = cur.flush(out)
	}
	return out
}

func leadingIndent(line string) int {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return i
}

func pathValue(trim string) (string, bool) {
	m := rePathValue.FindStringSubmatch(trim)
	if m == nil {
		return "", false
	}
	var p string
	switch {
	case m[1] != "":
		p = inlineScalar(m[1])
	case m[2] != "":
		p = m[2]
	default:
		p = m[3]
	}
	return p, p != ""
}

// inlineScalar 以 YAML 规则解码单行标量；失败时退回去引号的原文。
func inlineScalar(raw string) string {
	var s string
	if err := yaml.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		return raw[1 : len(raw)-1]
	}
	return raw
}
