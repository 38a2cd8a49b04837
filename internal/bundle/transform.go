package bundle

import (
	"bytes"
	"encoding/json"
	"path"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
)

// Optimize 模式。
const (
	OptimizeNone       = "none"
	OptimizeWhitespace = "whitespace"
	OptimizeComments   = "comments"
	OptimizeMinify     = "minify"
)

// ValidOptimize 报告 mode 是否为已知模式（空串视为 none）。
func ValidOptimize(mode string) bool {
	switch mode {
	case "", OptimizeNone, OptimizeWhitespace, OptimizeComments, OptimizeMinify:
		return true
	}
	return false
}

var (
	reBlankRun   = regexp.MustCompile(`\n{3,}`)
	reBlankLines = regexp.MustCompile(`\n{2,}`)
	reMarkupCmt  = regexp.MustCompile(`(?s)<!--.*?-->`)
	reTagGap     = regexp.MustCompile(`>\s+<`)
	reSpaceRun   = regexp.MustCompile(`\s{2,}`)
)

// Transform 按 mode 变换 rel 文件的内容；未知模式原样返回。
// comments 与 minify 按扩展名查注释语法，查不到时只做空白清理。
func Transform(content, rel, mode string) string {
	if content == "" {
		return ""
	}
	switch mode {
	case OptimizeWhitespace:
		return cleanWhitespace(content)
	case OptimizeComments:
		return cleanWhitespace(dropComments(content, lookupSyntax(rel)))
	case OptimizeMinify:
		return minify(content, lookupSyntax(rel))
	}
	return content
}

// cleanWhitespace: 统一换行、去行尾空白、连续空行压成一行、去首尾空行。
func cleanWhitespace(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\v\f")
	}
	s = strings.Join(lines, "\n")
	s = reBlankRun.ReplaceAllString(s, "\n\n")
	return strings.Trim(s, "\n")
}

func dropComments(s string, sx *syntax) string {
	switch {
	case sx == nil:
		return s
	case sx.json:
		return string(jsonc.ToJSON([]byte(s)))
	case sx.markup != markupNone:
		return reMarkupCmt.ReplaceAllString(s, "")
	}
	return stripComments(s, sx)
}

// minify: JSON 压缩为单行（解析失败退回去注释）；XML/HTML 折叠标签间空白；
// 其余去注释后删空行，保留缩进。
func minify(s string, sx *syntax) string {
	if sx == nil {
		return cleanWhitespace(s)
	}
	if sx.json {
		var buf bytes.Buffer
		if err := json.Compact(&buf, jsonc.ToJSON([]byte(s))); err == nil {
			return buf.String()
		}
		return cleanWhitespace(dropComments(s, sx))
	}
	out := dropComments(s, sx)
	if sx.markup == markupXML {
		out = reTagGap.ReplaceAllString(out, "> <")
		return strings.TrimSpace(reSpaceRun.ReplaceAllString(out, " "))
	}
	out = cleanWhitespace(out)
	if sx.markup == markupMD {
		return out
	}
	return reBlankLines.ReplaceAllString(out, "\n")
}

type markup int

const (
	markupNone markup = iota
	markupXML
	markupMD
)

// syntax: 一种语言的注释与字符串记号。
type syntax struct {
	line   []string
	block  [][2]string
	quotes string
	// raw 中的引号不识别反斜杠转义
	raw    string
	triple bool
	markup markup
	json   bool
}

var (
	sxC       = &syntax{line: []string{"//"}, block: [][2]string{{"/*", "*/"}}, quotes: `"'`}
	sxJS      = &syntax{line: []string{"//"}, block: [][2]string{{"/*", "*/"}}, quotes: "\"'`"}
	sxGo      = &syntax{line: []string{"//"}, block: [][2]string{{"/*", "*/"}}, quotes: "\"'`", raw: "`"}
	sxRust    = &syntax{line: []string{"//"}, block: [][2]string{{"/*", "*/"}}, quotes: `"`}
	sxCSS     = &syntax{block: [][2]string{{"/*", "*/"}}, quotes: `"'`}
	sxPHP     = &syntax{line: []string{"//", "#"}, block: [][2]string{{"/*", "*/"}}, quotes: `"'`}
	sxPython  = &syntax{line: []string{"#"}, quotes: `"'`, triple: true}
	sxHash    = &syntax{line: []string{"#"}, quotes: `"'`}
	sxINI     = &syntax{line: []string{"#", ";"}, quotes: `"`}
	sxSQL     = &syntax{line: []string{"--"}, block: [][2]string{{"/*", "*/"}}, quotes: `"'`}
	sxLua     = &syntax{line: []string{"--"}, block: [][2]string{{"--[[", "]]"}}, quotes: `"'`}
	sxHaskell = &syntax{line: []string{"--"}, block: [][2]string{{"{-", "-}"}}, quotes: `"`}
	sxPwsh    = &syntax{line: []string{"#"}, block: [][2]string{{"<#", "#>"}}, quotes: `"'`}
	sxLisp    = &syntax{line: []string{";"}, quotes: `"`}
	sxXML     = &syntax{markup: markupXML}
	sxMD      = &syntax{markup: markupMD}
	sxJSON    = &syntax{json: true}
)

// syntaxes 以小写扩展名（无点）或无扩展名文件的小写文件名为键。
var syntaxes = map[string]*syntax{
	"c": sxC, "h": sxC, "cc": sxC, "cpp": sxC, "cxx": sxC, "hpp": sxC,
	"cs": sxC, "java": sxC, "kt": sxC, "scala": sxC, "groovy": sxC,
	"swift": sxC, "dart": sxC, "m": sxC, "mm": sxC, "proto": sxC,
	"js": sxJS, "jsx": sxJS, "mjs": sxJS, "cjs": sxJS, "ts": sxJS, "tsx": sxJS,
	"go": sxGo,
	"rs": sxRust,
	"css": sxCSS, "scss": sxC, "less": sxC,
	"php": sxPHP, "inc": sxPHP,
	"py": sxPython, "pyi": sxPython,
	"rb": sxHash, "pl": sxHash, "pm": sxHash, "r": sxHash, "sh": sxHash, "bash": sxHash, "zsh": sxHash, "fish": sxHash,
	"yaml": sxHash, "yml": sxHash, "toml": sxHash, "dockerfile": sxHash, "makefile": sxHash, "cmake": sxHash,
	"ini": sxINI, "conf": sxINI, "cfg": sxINI, "properties": sxINI, "editorconfig": sxINI, "env": sxINI,
	"sql": sxSQL, "pgsql": sxSQL, "mysql": sxSQL,
	"lua": sxLua,
	"hs": sxHaskell,
	"ps1": sxPwsh, "psm1": sxPwsh, "psd1": sxPwsh,
	"clj": sxLisp, "edn": sxLisp, "el": sxLisp, "lisp": sxLisp, "scm": sxLisp,
	"xml": sxXML, "html": sxXML, "htm": sxXML, "svg": sxXML, "vue": sxXML, "svelte": sxXML, "xhtml": sxXML,
	"md": sxMD, "markdown": sxMD, "mdx": sxMD,
	"json": sxJSON, "jsonc": sxJSON,
}

func lookupSyntax(rel string) *syntax {
	base := strings.ToLower(path.Base(rel))
	if ext := path.Ext(base); ext != "" && ext != base {
		return syntaxes[ext[1:]]
	}
	return syntaxes[strings.TrimPrefix(base, ".")]
}

// stripComments 逐字节扫描，跳过字符串字面量，删除行注释与块注释。
// 行注释保留其后的换行；块注释按其中的换行数输出换行，单行块注释替换为一个空格。
func stripComments(src string, sx *syntax) string {
	var b strings.Builder
	b.Grow(len(src))
	i := 0
next:
	for i < len(src) {
		if sx.triple && (strings.HasPrefix(src[i:], `"""`) || strings.HasPrefix(src[i:], `'''`)) {
			stop := len(src)
			if end := strings.Index(src[i+3:], src[i:i+3]); end >= 0 {
				stop = i + 3 + end + 3
			}
			b.WriteString(src[i:stop])
			i = stop
			continue
		}
		c := src[i]
		if strings.IndexByte(sx.quotes, c) >= 0 {
			stop := skipString(src, i, strings.IndexByte(sx.raw, c) < 0)
			b.WriteString(src[i:stop])
			i = stop
			continue
		}
		for _, blk := range sx.block {
			if !strings.HasPrefix(src[i:], blk[0]) {
				continue
			}
			body := src[i+len(blk[0]):]
			stop := len(src)
			if end := strings.Index(body, blk[1]); end >= 0 {
				body = body[:end]
				stop = i + len(blk[0]) + end + len(blk[1])
			}
			if n := strings.Count(body, "\n"); n > 0 {
				b.WriteString(strings.Repeat("\n", n))
			} else {
				b.WriteByte(' ')
			}
			i = stop
			continue next
		}
		for _, lc := range sx.line {
			if !strings.HasPrefix(src[i:], lc) {
				continue
			}
			// shebang
			if i == 0 && lc == "#" && strings.HasPrefix(src, "#!") {
				break
			}
			stop := strings.IndexByte(src[i:], '\n')
			if stop < 0 {
				return b.String()
			}
			i += stop
			continue next
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// skipString 返回从 src[i] 处引号开始的字符串字面量之后的位置。
// 非反引号字符串在行尾终止。
func skipString(src string, i int, escapes bool) int {
	q := src[i]
	for j := i + 1; j < len(src); j++ {
		switch {
		case escapes && src[j] == '\\':
			j++
		case src[j] == q:
			return j + 1
		case src[j] == '\n' && q != '`':
			return j
		}
	}
	return len(src)
}
