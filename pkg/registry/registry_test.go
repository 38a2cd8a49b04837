package registry

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catport/pkg/contract"
	"catport/plugins/format/markdown"
)

// TestStrictUnmarshal 验证严格解码逻辑。
func TestStrictUnmarshal(t *testing.T) {
	type opt struct {
		A int `json:"a"`
	}
	var o opt
	require.NoError(t, strictUnmarshal(nil, &o))
	assert.Equal(t, 0, o.A)
	require.NoError(t, strictUnmarshal(json.RawMessage(`{"a":1}`), &o))
	assert.Equal(t, 1, o.A)
	assert.Error(t, strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o), "未知字段应报错")
}

// TestFactories 遍历注册表入口。
func TestFactories(t *testing.T) {
	t.Run("reader", func(t *testing.T) {
		r, err := Reader["fs"](json.RawMessage(`{"ignore":["*.log"],"max_size":10}`))
		require.NoError(t, err)
		assert.NotNil(t, r)
		_, err = Reader["fs"](json.RawMessage(`{"x":1}`))
		assert.Error(t, err, "reader 未对未知字段报错")
	})
	t.Run("writer", func(t *testing.T) {
		for _, name := range []string{"fs", "mem"} {
			w, err := Writer[name](json.RawMessage(`{"atomic":false}`))
			require.NoError(t, err, name)
			assert.NotNil(t, w.Filesystem())
			_, err = Writer[name](json.RawMessage(`{"x":1}`))
			assert.Error(t, err, "writer %s 未对未知字段报错", name)
		}
	})
}

func TestGet(t *testing.T) {
	for _, f := range Formats() {
		assert.Equal(t, f, Get(string(f)).Name(), f)
		assert.True(t, Known(string(f)))
	}
	assert.Equal(t, contract.FormatYAML, Get("yml").Name())
	assert.True(t, Known("yml"))

	// 未知 tag 回退到 Markdown，不区分大小写以外的别名
	for _, tag := range []string{"", "MD", "toml", "Markdown"} {
		assert.Equal(t, contract.FormatMarkdown, Get(tag).Name(), tag)
		assert.False(t, Known(tag), tag)
	}
}

func TestFormatsExhaustive(t *testing.T) {
	seen := map[contract.Format]bool{}
	for _, f := range Formats() {
		assert.False(t, seen[f], "重复格式 %s", f)
		seen[f] = true
	}
	assert.Len(t, seen, 5)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want contract.Format
	}{
		{"JSON 前导", "  {\"files\": []}", contract.FormatJSON},
		{"XML 前导", "<?xml version=\"1.1\"?>\n<project name=\"p\">", contract.FormatXML},
		{"YAML 前导", "meta:\n  name: p\nfiles:\n", contract.FormatYAML},
		{"MIME 前导", "MIME-Version: 1.0\nContent-Type: multipart/mixed", contract.FormatMultipart},
		{"分隔符前导", "---CATPORT-BOUNDARY-abc\nContent-Disposition: attachment; filename=\"a\"\n\nx", contract.FormatMultipart},
		{"Markdown 标记优先于首个 json 块", "# p\n\n" + markdown.FileMarker + " a.json\n```json\n{}\n```\n", contract.FormatMarkdown},
		{"缩进标记", "intro\n   " + markdown.FileMarker + " a.go\n```go\n```", contract.FormatMarkdown},
		{"围栏语言 json", "Here you go:\n\n```json\n[1]\n```\n", contract.FormatJSON},
		{"围栏语言 xml", "Sure.\n```xml\nnot really\n```", contract.FormatXML},
		{"围栏语言 yml", "ok\n```yml\nx: 1\n```", contract.FormatYAML},
		{"围栏语言大写", "ok\n```YAML\nx: 1\n```", contract.FormatYAML},
		{"围栏正文 {", "Result:\n```\n{\"files\":[]}\n```", contract.FormatJSON},
		{"围栏正文 <", "Result:\n```\n<project name=\"x\">\n```", contract.FormatXML},
		{"围栏正文 files:", "Result:\n~~~\nfiles:\n  - path: a\n~~~", contract.FormatYAML},
		{"围栏正文 multipart", "Result:\n```\n---CATPORT-BOUNDARY-z\n```", contract.FormatMultipart},
		{"正文嗅探 xml", "The files follow. <?xml version=\"1.1\"?>", contract.FormatXML},
		{"正文嗅探 project", "Output: <project name=\"x\"></project>", contract.FormatXML},
		{"正文嗅探 json", "Output: \"files\": [ ]", contract.FormatJSON},
		{"其他围栏", "Look:\n```go\npackage main\n```", contract.FormatMarkdown},
		{"纯文本", "hello world", contract.FormatMarkdown},
		{"空", "", contract.FormatMarkdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.in).Name())
		})
	}
}

// TestDetectSniffWindow 兜底信号只看前 1KiB
func TestDetectSniffWindow(t *testing.T) {
	pad := strings.Repeat("word ", sniffWindow/5+1)
	assert.Equal(t, contract.FormatMarkdown, Detect(pad+"<?xml version=\"1.1\"?>").Name())
	assert.Equal(t, contract.FormatXML, Detect("x "+"<?xml version=\"1.1\"?>"+pad).Name())
}

// TestDetectRoundTrip 每种格式的完整 bundle 都能被 Detect 识别并解析回原记录。
func TestDetectRoundTrip(t *testing.T) {
	recs := []contract.FileRecord{
		{Path: "src/main.go", Content: "package main\n\nfunc main() {}"},
		{Path: "data.json", Content: "{\"files\": [\"not a bundle\"]}"},
		{Path: "README.md", Content: "# Title\n\n```json\n{}\n```"},
	}
	for _, f := range Formats() {
		t.Run(string(f), func(t *testing.T) {
			c := Get(string(f))
			m := contract.Meta{Name: "demo", Tree: "src/main.go\ndata.json\nREADME.md", Task: "refactor", Boundary: contract.NewBoundary()}
			m.InstructionText = contract.Instruction(c, m.Boundary)
			var b strings.Builder
			b.WriteString(c.Header(m))
			sep := contract.Separator(c)
			for i, r := range recs {
				if i > 0 {
					b.WriteString(sep)
				}
				b.WriteString(c.File(r, m.Options(contract.XMLAuto)))
			}
			b.WriteString(c.Footer(m))

			d := Detect(b.String())
			require.Equal(t, f, d.Name())
			var diag contract.Collector
			got := d.Parse(b.String(), &diag)
			assert.Equal(t, recs, got)
			assert.Empty(t, diag.Messages())
		})
	}
}

func TestFirstFence(t *testing.T) {
	lang, body, ok := firstFence("text\n\n````python\nprint(1)\n```\n````\n")
	require.True(t, ok)
	assert.Equal(t, "python", lang)
	assert.Equal(t, "print(1)\n```\n", body)

	_, _, ok = firstFence("no fences here\n    indented code is not fenced\n")
	assert.False(t, ok)
}
