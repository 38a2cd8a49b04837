package xmldoc

import (
	"fmt"
	"regexp"
	"strings"

	"catport/pkg/contract"
)

const (
	// Declaration 使用 1.1：元素内容允许除 NUL 外的大多数 C0 控制字符。
	Declaration = `<?xml version="1.1" encoding="UTF-8"?>`
	CDATAOpen   = "<![CDATA["
	CDATAClose  = "]]>"

	openTag  = `<file path="`
	closeTag = "</file>"
)

// Codec 实现 XML 容器。解析为字面子串扫描，不是通用 XML 解析器。
type Codec struct{}

func New() *Codec { return &Codec{} }

var _ contract.Codec = (*Codec)(nil)

func (*Codec) Name() contract.Format { return contract.FormatXML }

var (
	escaper   = strings.NewReplacer("<", "&lt;", ">", "&gt;", "&", "&amp;", "'", "&apos;", `"`, "&quot;")
	unescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&apos;", "'", "&quot;", `"`)

	// 除 \t \n \r 外的 C0 控制符与 C1 控制符：属性中剔除，内容中触发 CDATA
	reControl = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x{7F}-\x{9F}]`)
)

func escape(s string) string       { return escaper.Replace(s) }
func unescape(s string) string     { return unescaper.Replace(s) }
func stripNUL(s string) string     { return strings.ReplaceAll(s, "\x00", "") }
func sanitizeAttr(s string) string { return reControl.ReplaceAllString(s, "") }

// splitCDATA 在每个 "]]>" 后重新开启 CDATA 段，使字面序列得以保留。
func splitCDATA(s string) string {
	return strings.ReplaceAll(s, CDATAClose, CDATAClose+CDATAOpen)
}

func joinCDATA(s string) string {
	return strings.ReplaceAll(s, CDATAClose+CDATAOpen, CDATAClose)
}

func (*Codec) Header(m contract.Meta) string {
	var b strings.Builder
	b.WriteString(Declaration + "\n")
	b.WriteString(`<project name="` + escape(sanitizeAttr(m.Name)) + `">`)
	if m.Context != "" {
		b.WriteString("\n  <context>" + escape(stripNUL(m.Context)) + "</context>")
	}
	if m.Tree != "" {
		b.WriteString("\n  <structure>\n" + escape(stripNUL(m.Tree)) + "\n  </structure>")
	}
	b.WriteString("\n  <files>")
	return b.String()
}

// NeedsCDATA 报告 AUTO 模式下内容是否应使用 CDATA。
func NeedsCDATA(content string) bool {
	return strings.ContainsAny(content, `&<>"'`) || reControl.MatchString(content)
}

// File 按 opts.XMLMode 编码内容；路径仅做属性清洗，内容不受其影响。
func (*Codec) File(rec contract.FileRecord, opts contract.FileOptions) string {
	content := stripNUL(rec.Content)
	useCDATA := false
	switch opts.XMLMode {
	case contract.XMLEscape:
	case contract.XMLCDATA:
		useCDATA = true
	default:
		useCDATA = NeedsCDATA(rec.Content)
	}
	var body string
	if useCDATA {
		body = CDATAOpen + splitCDATA(content) + CDATAClose
	} else {
		body = escape(content)
	}
	return "\n    " + openTag + escape(sanitizeAttr(rec.Path)) + `">` + body + closeTag
}

func (*Codec) Footer(m contract.Meta) string {
	var b strings.Builder
	b.WriteString("\n  </files>")
	if m.InstructionText != "" {
		b.WriteString("\n  <instruction>" + escape(stripNUL(m.InstructionText)) + "</instruction>")
	}
	if m.Task != "" {
		b.WriteString("\n  <task>" + escape(stripNUL(m.Task)) + "</task>")
	}
	b.WriteString("\n</project>")
	return b.String()
}

// Parse 扫描 <file path="..."> 元素。
// 开启标签缺少 `">` 时告警并继续；缺少 </file> 时告警并终止整个扫描。
func (*Codec) Parse(text string, d contract.Diagnostics) []contract.FileRecord {
	d = contract.OrDiscard(d)
	clean := trimToMarkup(text)

	var out []contract.FileRecord
	pos := 0
	for pos < len(clean) {
		i := strings.Index(clean[pos:], openTag)
		if i < 0 {
			break
		}
		start := pos + i
		pathStart := start + len(openTag)
		q := strings.Index(clean[pathStart:], `">`)
		if q < 0 {
			d.Warn(fmt.Sprintf("Skipping malformed file tag at index %d: Missing closing quote or bracket.", start))
			pos = pathStart
			continue
		}
		p := unescape(clean[pathStart : pathStart+q])
		contentStart := pathStart + q + 2

		end := findClose(clean, contentStart)
		if end < 0 {
			d.Warn(fmt.Sprintf("Skipping file %q: Missing closing </file> tag.", p))
			break
		}
		out = append(out, contract.FileRecord{Path: p, Content: decodeContent(clean[contentStart:end])})
		pos = end + len(closeTag)
	}
	return out
}

// trimToMarkup 跳过前导处理指令并截取首个标签到最后一个 '>' 之间的文本。
func trimToMarkup(text string) string {
	first := strings.IndexByte(text, '<')
	for first >= 0 && first < len(text)-1 && text[first+1] == '?' {
		endPI := strings.Index(text[first:], "?>")
		if endPI < 0 {
			break
		}
		next := strings.IndexByte(text[first+endPI+2:], '<')
		if next < 0 {
			first = -1
			break
		}
		first = first + endPI + 2 + next
	}
	last := strings.LastIndexByte(text, '>')
	if first >= 0 && last > first {
		return text[first : last+1]
	}
	return text
}

// findClose 返回首个不处于未闭合 CDATA 段内的 </file> 位置；找不到返回 -1。
func findClose(s string, from int) int {
	scan := from
	for scan < len(s) {
		ci := strings.Index(s[scan:], closeTag)
		if ci < 0 {
			return -1
		}
		ci += scan
		di := strings.Index(s[scan:], CDATAOpen)
		if di < 0 || ci < di+scan {
			return ci
		}
		di += scan
		de := strings.Index(s[di:], CDATAClose)
		if de < 0 {
			return -1
		}
		scan = di + de + len(CDATAClose)
	}
	return -1
}

func decodeContent(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, CDATAOpen) && strings.HasSuffix(trimmed, CDATAClose) {
		o := strings.Index(raw, CDATAOpen)
		c := strings.LastIndex(raw, CDATAClose)
		if o >= 0 && c > o {
			return joinCDATA(raw[o+len(CDATAOpen) : c])
		}
	}
	return unescape(raw)
}
