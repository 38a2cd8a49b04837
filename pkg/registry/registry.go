package registry

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"catport/pkg/contract"
	"catport/plugins/format/jsondoc"
	"catport/plugins/format/markdown"
	"catport/plugins/format/multipart"
	"catport/plugins/format/xmldoc"
	"catport/plugins/format/yamldoc"
)

// Formats 返回全部已知格式（封闭集合）。
func Formats() []contract.Format {
	return []contract.Format{
		contract.FormatMarkdown,
		contract.FormatXML,
		contract.FormatJSON,
		contract.FormatYAML,
		contract.FormatMultipart,
	}
}

// Known 报告 tag 是否为已知格式（含 yml 别名）。
func Known(tag string) bool {
	switch contract.Format(tag) {
	case contract.FormatMarkdown, contract.FormatXML, contract.FormatJSON,
		contract.FormatYAML, contract.FormatMultipart, "yml":
		return true
	}
	return false
}

// Get 返回 tag 对应的 Codec；未知 tag 回退到 Markdown，不报错。
func Get(tag string) contract.Codec {
	switch contract.Format(tag) {
	case contract.FormatXML:
		return xmldoc.New()
	case contract.FormatJSON:
		return jsondoc.New()
	case contract.FormatYAML, "yml":
		return yamldoc.New()
	case contract.FormatMultipart:
		return multipart.New()
	default:
		return markdown.New()
	}
}

// sniffWindow: 兜底信号只检查前 1KiB。
const sniffWindow = 1024

var reMarkdownMarker = regexp.MustCompile(`(?m)^[ \t]*` + regexp.QuoteMeta(markdown.FileMarker))

// Detect 按内容嗅探可解析 text 的 Codec；纯函数。
func Detect(raw string) contract.Codec {
	t := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(t, "{"):
		return jsondoc.New()
	case strings.HasPrefix(t, "<"):
		return xmldoc.New()
	case strings.HasPrefix(t, "meta:"):
		return yamldoc.New()
	case strings.HasPrefix(t, "MIME-Version: 1.0"), strings.HasPrefix(t, contract.BoundaryPrefix):
		return multipart.New()
	case reMarkdownMarker.MatchString(t):
		return markdown.New()
	}

	if lang, body, ok := firstFence(t); ok {
		switch strings.ToLower(lang) {
		case "json":
			return jsondoc.New()
		case "xml":
			return xmldoc.New()
		case "yaml", "yml":
			return yamldoc.New()
		}
		body = strings.TrimSpace(body)
		switch {
		case strings.HasPrefix(body, "{"):
			return jsondoc.New()
		case strings.HasPrefix(body, "<"):
			return xmldoc.New()
		case strings.HasPrefix(body, "meta:"), strings.HasPrefix(body, "files:"):
			return yamldoc.New()
		case strings.HasPrefix(body, "MIME-Version: 1.0"), strings.HasPrefix(body, contract.BoundaryPrefix):
			return multipart.New()
		}
	}

	sample := t
	if len(sample) > sniffWindow {
		sample = sample[:sniffWindow]
	}
	switch {
	case strings.Contains(sample, "<?xml"), strings.Contains(sample, "<project name="):
		return xmldoc.New()
	case strings.Contains(sample, `"files": [`):
		return jsondoc.New()
	}
	return markdown.New()
}

// firstFence 用 CommonMark 解析器找到第一个围栏代码块，返回其语言标记与正文。
func firstFence(src string) (lang, body string, ok bool) {
	source := []byte(src)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fb, isFence := n.(*ast.FencedCodeBlock)
		if !isFence {
			return ast.WalkContinue, nil
		}
		lang = string(fb.Language(source))
		var b strings.Builder
		lines := fb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
		}
		body, ok = b.String(), true
		return ast.WalkStop, nil
	})
	return lang, body, ok
}
