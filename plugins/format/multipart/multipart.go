package multipart

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"catport/pkg/contract"
)

// Codec 实现 MIME multipart 风格容器。分隔符随每次编码经 Meta/FileOptions 传入。
// 内容中若恰好在行首出现同一分隔符，不做转义。
type Codec struct{}

func New() *Codec { return &Codec{} }

var (
	_ contract.Codec      = (*Codec)(nil)
	_ contract.Instructor = (*Codec)(nil)
)

func (*Codec) Name() contract.Format { return contract.FormatMultipart }

func boundaryOr(b string) string {
	if b == "" {
		return contract.BoundaryPrefix
	}
	return b
}

func (*Codec) Header(m contract.Meta) string {
	var b strings.Builder
	b.WriteString("MIME-Version: 1.0\n")
	b.WriteString(`Content-Type: multipart/mixed; boundary="` + boundaryOr(m.Boundary) + "\"\n\n")
	b.WriteString("Prelude:\nProject: " + m.Name + "\n")
	if m.Context != "" {
		b.WriteString("Context: " + m.Context + "\n")
	}
	if m.Tree != "" {
		b.WriteString("\nStructure:\n" + m.Tree + "\n")
	}
	return b.String()
}

func (*Codec) File(rec contract.FileRecord, opts contract.FileOptions) string {
	var b strings.Builder
	b.Grow(len(rec.Content) + len(rec.Path) + 128)
	b.WriteString("\n" + boundaryOr(opts.Boundary) + "\n")
	b.WriteString(`Content-Disposition: attachment; filename="` + rec.Path + "\"\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\n\n")
	b.WriteString(rec.Content)
	return b.String()
}

func (*Codec) Footer(m contract.Meta) string {
	var b strings.Builder
	b.WriteString("\n" + boundaryOr(m.Boundary) + "--\n")
	if m.Task != "" {
		b.WriteString("\nTask: " + m.Task + "\n")
	}
	if m.InstructionText != "" {
		b.WriteString("\nInstructions:\n" + m.InstructionText + "\n")
	}
	return b.String()
}

var (
	reBoundary = regexp.MustCompile(regexp.QuoteMeta(contract.BoundaryPrefix) + `-[a-z0-9]+`)
	reFilename = regexp.MustCompile(`filename="(.+?)"`)
)

// DetectBoundary 返回文本中实际使用的分隔符：优先完整形式，其次遗留前缀；都没有时返回空串。
func DetectBoundary(text string) string {
	if b := reBoundary.FindString(text); b != "" {
		return b
	}
	if strings.Contains(text, contract.BoundaryPrefix) {
		return contract.BoundaryPrefix
	}
	return ""
}

// Parse 按行首分隔符切分各段；以 "--" 结尾的分隔符终止扫描。
func (*Codec) Parse(text string, d contract.Diagnostics) []contract.FileRecord {
	d = contract.OrDiscard(d)
	boundary := DetectBoundary(text)
	if boundary == "" {
		return nil
	}
	clean := unwrapFence(text, boundary)

	var out []contract.FileRecord
	parts := splitParts(clean, boundary)
	for i, part := range parts {
		n := i + 1
		if strings.HasPrefix(part, "--") {
			break
		}
		part = strings.TrimPrefix(part, "\r")
		part = strings.TrimPrefix(part, "\n")

		headers, body, ok := cutBody(part)
		if !ok {
			d.Warn(fmt.Sprintf("Skipping multipart section %d: Header/Body separator not found.", n))
			continue
		}
		m := reFilename.FindStringSubmatch(headers)
		if m == nil {
			d.Warn(fmt.Sprintf("Skipping multipart section %d: No filename found in headers.", n))
			continue
		}
		out = append(out, contract.FileRecord{
			Path:    m[1],
			Content: strings.TrimRightFunc(body, unicode.IsSpace),
		})
	}
	return out
}

// unwrapFence 去掉包裹各段的 Markdown 围栏，围栏前后可有说明文字。
// 首个围栏行位于首个分隔符行之后时，围栏属于文件内容，原样返回。
// 没有终止分隔符时在最后一个围栏行处截断。
func unwrapFence(text, boundary string) string {
	fences := fenceLines(text)
	if len(fences) == 0 {
		return text
	}
	open := fences[0]
	if b := lineStart(text, boundary); b >= 0 && b < open {
		return text
	}
	nl := strings.IndexByte(text[open:], '\n')
	if nl < 0 {
		return ""
	}
	inner := text[open+nl+1:]
	if lineStart(inner, boundary+"--") >= 0 {
		return inner
	}
	if rest := fenceLines(inner); len(rest) > 0 {
		inner = inner[:rest[len(rest)-1]]
	}
	return inner
}

// fenceLines 返回以 ``` 开头（允许前导空白）的各行起始偏移。
func fenceLines(text string) []int {
	var out []int
	for at := 0; at < len(text); {
		line := text[at:]
		end := strings.IndexByte(line, '\n')
		if end >= 0 {
			line = line[:end]
		}
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "```") {
			out = append(out, at)
		}
		if end < 0 {
			break
		}
		at += end + 1
	}
	return out
}

// lineStart 返回 tok 首次出现在行首的偏移，没有时返回 -1。
func lineStart(text, tok string) int {
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], tok)
		if i < 0 {
			return -1
		}
		at := from + i
		if at == 0 || text[at-1] == '\n' {
			return at
		}
		from = at + len(tok)
	}
	return -1
}

// splitParts 返回每个行首分隔符之后到下一个分隔符之前的文本（不含前导部分）。
// 分隔符后紧跟字母数字时视为更长的其他记号，不参与切分。
func splitParts(text, boundary string) []string {
	var starts []int
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], boundary)
		if i < 0 {
			break
		}
		at := from + i
		end := at + len(boundary)
		atLineStart := at == 0 || text[at-1] == '\n'
		if atLineStart && (end == len(text) || !isAlnum(text[end])) {
			starts = append(starts, at)
		}
		from = end
	}
	parts := make([]string, 0, len(starts))
	for k, at := range starts {
		stop := len(text)
		if k+1 < len(starts) {
			stop = starts[k+1]
		}
		parts = append(parts, text[at+len(boundary):stop])
	}
	return parts
}

// cutBody 在首个空行处拆分头部与正文，接受 \n\n 与 \r\n\r\n。
func cutBody(part string) (headers, body string, ok bool) {
	lf := strings.Index(part, "\n\n")
	crlf := strings.Index(part, "\r\n\r\n")
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return part[:crlf], part[crlf+4:], true
	case lf >= 0:
		return part[:lf], part[lf+2:], true
	}
	return "", "", false
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
