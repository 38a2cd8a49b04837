package markdown

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"catport/pkg/contract"
)

const (
	// FileMarker 为文件块起始标记（输出时其后跟一个空格与路径）。
	FileMarker = "### ◼◼◼ FILE:"
	// InstructionMarker 之后为指令区，解析到此停止。
	InstructionMarker = "### ◼◼◼ END OF FILES - INSTRUCTIONS FOLLOW"
)

// Codec 实现 Markdown 容器：标记行 + 围栏代码块。
type Codec struct{}

// New 创建 Markdown Codec。
func New() *Codec { return &Codec{} }

var _ contract.Codec = (*Codec)(nil)

func (*Codec) Name() contract.Format { return contract.FormatMarkdown }

// Header 输出标题、可选上下文与目录结构，以水平线结束。
func (*Codec) Header(m contract.Meta) string {
	var b strings.Builder
	b.WriteString("# " + m.Name + "\n")
	if m.Context != "" {
		b.WriteString("> **Context**: " + m.Context + "\n")
	}
	if m.Tree != "" {
		fence := Fence(m.Tree)
		b.WriteString("\n## Structure\n" + fence + "text\n" + m.Tree + "\n" + fence + "\n\n")
	}
	b.WriteString("---\n\n")
	return b.String()
}

// File 输出标记行与围栏代码块；围栏长度保证不被内容中已有围栏提前闭合。
func (*Codec) File(rec contract.FileRecord, _ contract.FileOptions) string {
	fence := Fence(rec.Content)
	ext := strings.TrimPrefix(path.Ext(rec.Path), ".")
	if ext == "" {
		ext = "txt"
	}
	var b strings.Builder
	b.Grow(len(rec.Path) + len(rec.Content) + 2*len(fence) + len(FileMarker) + 16)
	b.WriteString(FileMarker + " " + rec.Path + "\n")
	b.WriteString(fence + ext + "\n")
	b.WriteString(rec.Content)
	b.WriteString("\n" + fence + "\n\n")
	return b.String()
}

// Footer 输出可选任务与指令区。
func (*Codec) Footer(m contract.Meta) string {
	var b strings.Builder
	if m.Task != "" {
		b.WriteString("\n---\n> **Task**: " + m.Task + "\n")
	}
	if m.InstructionText != "" {
		b.WriteString("\n" + InstructionMarker + "\n" + m.InstructionText + "\n")
	}
	return b.String()
}

// Fence 返回 max(3, 最长行首围栏 + 1) 个反引号。
func Fence(content string) string {
	longest := 0
	for _, line := range strings.Split(content, "\n") {
		if n := leadingRun(line); n >= 3 && n > longest {
			longest = n
		}
	}
	n := 3
	if longest+1 > n {
		n = longest + 1
	}
	return strings.Repeat("`", n)
}

// leadingRun 统计行首连续的同一围栏字符（` 或 ~）数量。
func leadingRun(line string) int {
	if line == "" || (line[0] != '`' && line[0] != '~') {
		return 0
	}
	ch := line[0]
	n := 0
	for n < len(line) && line[n] == ch {
		n++
	}
	return n
}

var (
	reMarker       = regexp.MustCompile(`(?im)^[ \t]*` + regexp.QuoteMeta(FileMarker) + `[ \t]*(.+)$`)
	reTrailQuote   = regexp.MustCompile("[:'\"`]*$")
	reTrailParen   = regexp.MustCompile(`\s*\(.*\)$`)
	reTrailBracket = regexp.MustCompile(`\s*\[.*\]$`)
	crlf           = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Parse 左到右扫描文件标记，逐块恢复；单块错误告警并跳过。
func (*Codec) Parse(text string, d contract.Diagnostics) []contract.FileRecord {
	d = contract.OrDiscard(d)
	var out []contract.FileRecord
	pos := 0
	for pos < len(text) {
		loc := reMarker.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		// 指令区先于下一个标记出现：停止
		if ii := strings.Index(text[pos:], InstructionMarker); ii >= 0 && pos+ii < start {
			break
		}
		raw := text[pos+loc[2] : pos+loc[3]]
		eol := pos + loc[1]
		p := cleanMarkerPath(raw)
		if p == "" {
			d.Warn(fmt.Sprintf("Skipping invalid path in marker at index %d: %q", start, raw))
			pos = eol
			continue
		}
		rec, next, ok := readBlock(text, eol, p, d)
		if ok {
			out = append(out, rec)
		}
		pos = next
	}
	return out
}

func cleanMarkerPath(raw string) string {
	s := strings.TrimSpace(raw)
	s = reTrailQuote.ReplaceAllString(s, "")
	s = reTrailParen.ReplaceAllString(s, "")
	s = reTrailBracket.ReplaceAllString(s, "")
	return contract.CleanPath(s)
}

// readBlock 从标记行末尾读取紧随的围栏块。
// 返回记录、下一次扫描位置、是否成功。
func readBlock(text string, from int, p string, d contract.Diagnostics) (contract.FileRecord, int, bool) {
	i := nextLine(text, from)
	// 允许标记与围栏之间存在空行
	for i < len(text) {
		end := lineEnd(text, i)
		if strings.TrimSpace(text[i:end]) != "" {
			break
		}
		i = nextLine(text, end)
	}
	if i >= len(text) {
		d.Warn(fmt.Sprintf("Skipping file %q: Marker found but no fenced code block follows immediately.", p))
		return contract.FileRecord{}, from, false
	}
	open := strings.TrimRight(text[i:lineEnd(text, i)], "\r")
	indent, ch, n := openFence(open)
	if n == 0 {
		d.Warn(fmt.Sprintf("Skipping file %q: Marker found but no fenced code block follows immediately.", p))
		return contract.FileRecord{}, from, false
	}
	contentStart := nextLine(text, lineEnd(text, i))
	for ls := contentStart; ls < len(text); {
		le := lineEnd(text, ls)
		if isClose(strings.TrimRight(text[ls:le], "\r"), indent, ch, n) {
			content := text[contentStart:ls]
			if indent != "" {
				content = stripIndent(content, indent)
			}
			content = strings.TrimRightFunc(crlf.Replace(content), unicode.IsSpace)
			return contract.FileRecord{Path: p, Content: content}, nextLine(text, le), true
		}
		ls = nextLine(text, le)
	}
	d.Warn(fmt.Sprintf("Skipping file %q: Code block not closed (reached end of input).", p))
	return contract.FileRecord{}, from, false
}

// openFence 解析围栏开启行：缩进、字符与长度；非围栏返回 n=0。
func openFence(line string) (indent string, ch byte, n int) {
	j := 0
	for j < len(line) && (line[j] == ' ' || line[j] == '\t') {
		j++
	}
	run := leadingRun(line[j:])
	if run < 3 {
		return "", 0, 0
	}
	return line[:j], line[j], run
}

// isClose: 同缩进、同字符、长度不少于开启围栏；其后仅允许空白或以空白分隔的说明。
func isClose(line, indent string, ch byte, n int) bool {
	if !strings.HasPrefix(line, indent) {
		return false
	}
	rest := line[len(indent):]
	if rest == "" || rest[0] != ch {
		return false
	}
	run := leadingRun(rest)
	if run < n {
		return false
	}
	tail := rest[run:]
	return tail == "" || tail[0] == ' ' || tail[0] == '\t'
}

func stripIndent(content, indent string) string {
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, indent)
	}
	return strings.Join(lines, "\n")
}

func lineEnd(text string, i int) int {
	if j := strings.IndexByte(text[i:], '\n'); j >= 0 {
		return i + j
	}
	return len(text)
}

func nextLine(text string, end int) int {
	if end < len(text) && text[end] == '\n' {
		return end + 1
	}
	// 标记行可能以 \r 结尾
	if end < len(text) && text[end] == '\r' {
		if end+1 < len(text) && text[end+1] == '\n' {
			return end + 2
		}
		return end + 1
	}
	return end
}
