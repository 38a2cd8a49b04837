package jsondoc

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catport/pkg/contract"
)

func bundle(m contract.Meta, recs ...contract.FileRecord) string {
	c := New()
	var b strings.Builder
	b.WriteString(c.Header(m))
	for i, r := range recs {
		if i > 0 {
			b.WriteString(contract.Separator(c))
		}
		b.WriteString(c.File(r, m.Options(contract.XMLAuto)))
	}
	b.WriteString(c.Footer(m))
	return b.String()
}

func TestRoundTrip(t *testing.T) {
	recs := []contract.FileRecord{
		{Path: "empty.txt", Content: ""},
		{Path: "ws.txt", Content: " \n\t "},
		{Path: "fence.md", Content: "```json\n{\"files\": []}\n```"},
		{Path: "cdata.xml", Content: "]]>"},
		{Path: "quotes.js", Content: `a = "x" + 'y' + ` + "`z`" + ` // c /* d */`},
		{Path: "html.txt", Content: "<b>&amp;</b>"},
		{Path: "unicode.txt", Content: "héllo 世界 🎉 é \u2028"},
		{Path: "nul.bin", Content: "a\x00b\x01"},
		{Path: "boundary.txt", Content: "---CATPORT-BOUNDARY-xyz\n"},
		{Path: "back\\slash.txt", Content: `C:\path\to`},
	}
	m := contract.Meta{Name: "p", Context: "c", Tree: "t", Task: "task", InstructionText: New().Instruction()}
	out := bundle(m, recs...)
	assert.True(t, json.Valid([]byte(out)), out)

	var diag contract.Collector
	got := New().Parse(out, &diag)
	require.Equal(t, recs, got)
	assert.Empty(t, diag.Messages())
}

func TestEmptyBundleIsValidJSON(t *testing.T) {
	out := bundle(contract.Meta{Name: "p"})
	assert.True(t, json.Valid([]byte(out)), out)
	assert.NotContains(t, out, "context")
	got := New().Parse(out, nil)
	assert.Empty(t, got)
}

func TestHTMLNotEscaped(t *testing.T) {
	out := New().File(contract.FileRecord{Path: "a", Content: "<&>"}, contract.FileOptions{})
	assert.Equal(t, `    {"path":"a","content":"<&>"}`, out)
}

func TestParseJSON5(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []contract.FileRecord
	}{
		{"单引号与裸键", `{ files: [{ path: 'p', content: 'It\'s a test' }] }`,
			[]contract.FileRecord{{Path: "p", Content: "It's a test"}}},
		{"单引号含双引号", `{ files: [{ path: 'p', content: 'He said "Hello"' }] }`,
			[]contract.FileRecord{{Path: "p", Content: `He said "Hello"`}}},
		{"连字符与数字开头的键", "{\n files: [{ 123key: \"v\", path: \"p\", content: \"c\", extra-key: 1 }]\n}",
			[]contract.FileRecord{{Path: "p", Content: "c"}}},
		{"$ 与 _ 键", "{ $meta: {}, _files: [], files: [{ path: \"p\", content: \"c\" }] }",
			[]contract.FileRecord{{Path: "p", Content: "c"}}},
		{"尾随逗号", "{\n \"files\": [\n { \"path\": \"p\", \"content\": \"c\" },\n ],\n}",
			[]contract.FileRecord{{Path: "p", Content: "c"}}},
		{"注释", "{\n // head\n \"files\": [ /* a */\n { \"path\": \"p\", \"content\": \"c\" } // item\n ]\n}",
			[]contract.FileRecord{{Path: "p", Content: "c"}}},
		{"字符串内注释保留", `{"files": [{"path": "p", "content": "x // y /* z */"}]}`,
			[]contract.FileRecord{{Path: "p", Content: "x // y /* z */"}}},
		{"反斜杠", `{"files": [{"path": "p", "content": "\\\\\\\\"}]}`,
			[]contract.FileRecord{{Path: "p", Content: `\\\\`}}},
		{"注释后的尾随逗号", "{\n \"files\": [\n { \"path\": \"p\", \"content\": \"c\" }, // last\n ]\n}",
			[]contract.FileRecord{{Path: "p", Content: "c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New().Parse(tt.input, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWrapped(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"json 围栏", "Here is the output:\n```json\n{\n  \"files\": [{ \"path\": \"p\", \"content\": \"c\" }]\n}\n```\n"},
		{"无语言围栏", "```\n{ files: [{ path: 'p', content: 'c' }] } // done\n```"},
		{"散文中的对象", "Some text.\n{\n  \"files\": [{ \"path\": \"p\", \"content\": \"c\" }]\n}\nMore text."},
		{"围栏优先于残缺外层", "{ \"invalid\": \"json\"\n```json\n{ \"files\": [{ \"path\": \"p\", \"content\": \"c\" }] }\n```\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New().Parse(tt.input, nil)
			require.Len(t, got, 1)
			assert.Equal(t, contract.FileRecord{Path: "p", Content: "c"}, got[0])
		})
	}
}

func TestParseRejectsInvalidSchema(t *testing.T) {
	inputs := []string{
		`invalid`,
		`{ "foo": "bar" }`,
		`{ "files": "string_not_array" }`,
		`{ "files": null }`,
		`[ { "path": "p", "content": "c" } ]`,
		`{ "files": [ { "path": "", "content": "c" } ] }`,
		`{ "files": [ { "path": "   ", "content": "c" } ] }`,
		`{ "files": [ { "path": "p" } ] }`,
		`{ "files": [ { "path": "p", "content": null } ] }`,
		`{ "files": [ { "path": "p", "content": 1 } ] }`,
		`{ "files": [ null ] }`,
		`{ "files": [ "p" ] }`,
		`null`,
	}
	for _, in := range inputs {
		var diag contract.Collector
		got := New().Parse(in, &diag)
		assert.Empty(t, got, in)
		assert.Equal(t, []string{"Failed to extract a files array from the JSON"}, diag.Messages(), in)
	}
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"{",
		"}",
		`{"files": [{"path": "p", "content": "trunc`,
		strings.Repeat("[", 20000),
		strings.Repeat("{\"a\":", 5000) + "1" + strings.Repeat("}", 5000),
		"'",
		"/*",
		"```json",
		"Just some prose, it's not JSON.",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			got := New().Parse(in, nil)
			assert.Empty(t, got)
		}, "%.40q", in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	valid := []string{
		`{"files":[{"path":"p","content":"a: b, }"}]}`,
		"{\n  \"meta\": {\"name\": \"x\"},\n  \"files\": []\n}",
		`{"url": "http://example.com/a", "n": 1.5e3, "ok": true}`,
	}
	for _, s := range valid {
		assert.Equal(t, s, Normalize(s), "合法 JSON 应保持不变")
	}
	loose := []string{
		`{ files: [{ path: 'p', content: 'c', }], }`,
		"{ /* c */ a: 'x\ty', b: [1, 2,], }",
		`{ key-with-dash: 'He said "hi"' }`,
	}
	for _, s := range loose {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), s)
		assert.True(t, json.Valid([]byte(once)), once)
	}
}

func TestExtractBalanced(t *testing.T) {
	got := extractBalanced(`x {a: "}"} y {b: '{', c: {d: 1}} }`)
	assert.Equal(t, []string{`{a: "}"}`, `{b: '{', c: {d: 1}}`}, got)
	assert.Empty(t, extractBalanced("{ unclosed"))
}
