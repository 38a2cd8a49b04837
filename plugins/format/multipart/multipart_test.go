package multipart

import (
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
	for _, r := range recs {
		b.WriteString(c.File(r, m.Options(contract.XMLAuto)))
	}
	b.WriteString(c.Footer(m))
	return b.String()
}

func TestScenarioBoundaryB(t *testing.T) {
	out := New().File(contract.FileRecord{Path: "a.txt", Content: "hello"}, contract.FileOptions{Boundary: "B"})
	assert.Equal(t, "\nB\nContent-Disposition: attachment; filename=\"a.txt\"\nContent-Type: text/plain; charset=utf-8\n\nhello", out)
}

func TestRoundTrip(t *testing.T) {
	b := contract.NewBoundary()
	recs := []contract.FileRecord{
		{Path: "empty.txt", Content: ""},
		{Path: "ws.txt", Content: "\n  \t\n"},
		{Path: "other-boundary.txt", Content: "---CATPORT-BOUNDARY-zzz999\n---CATPORT-BOUNDARY\nx"},
		{Path: "dashes.txt", Content: "--\n--not terminal"},
		{Path: "fence.md", Content: "```\ncode\n```"},
		{Path: "cdata.txt", Content: "]]>"},
		{Path: "headers.txt", Content: "Content-Disposition: attachment; filename=\"fake\"\n\nbody"},
		{Path: "unicode.txt", Content: "héllo 世界 🎉 é"},
		{Path: "nul.bin", Content: "a\x00b"},
		{Path: "inline " + b + ".txt", Content: "mentions " + b + " mid-line"},
	}
	m := contract.Meta{Name: "p", Context: "ctx", Tree: "a\nb", Task: "t", Boundary: b}
	m.InstructionText = New().InstructionFor(b)

	var diag contract.Collector
	got := New().Parse(bundle(m, recs...), &diag)
	require.Len(t, got, len(recs))
	for i := range recs {
		assert.Equal(t, recs[i].Path, got[i].Path)
		assert.Equal(t, strings.TrimRight(recs[i].Content, " \t\n"), got[i].Content, recs[i].Path)
	}
	assert.Empty(t, diag.Messages())
}

func TestBoundaryIsPerEncode(t *testing.T) {
	rec := contract.FileRecord{Path: "a.txt", Content: "A"}
	one := bundle(contract.Meta{Name: "p", Boundary: contract.NewBoundary()}, rec)
	two := bundle(contract.Meta{Name: "p", Boundary: contract.NewBoundary()}, rec)
	assert.NotEqual(t, DetectBoundary(one), DetectBoundary(two))

	// 每份输出都按其自身的分隔符解析
	for _, s := range []string{one, two} {
		got := New().Parse(s, nil)
		require.Len(t, got, 1)
		assert.Equal(t, rec, got[0])
	}
}

func TestEmptyBoundaryFallsBackToPrefix(t *testing.T) {
	out := bundle(contract.Meta{Name: "p"}, contract.FileRecord{Path: "a", Content: "x"})
	assert.Contains(t, out, `boundary="`+contract.BoundaryPrefix+`"`)
	assert.Equal(t, contract.BoundaryPrefix, DetectBoundary(out))
	got := New().Parse(out, nil)
	require.Equal(t, []contract.FileRecord{{Path: "a", Content: "x"}}, got)
}

func TestDetectBoundary(t *testing.T) {
	assert.Equal(t, "---CATPORT-BOUNDARY-abc123", DetectBoundary("x\n---CATPORT-BOUNDARY-abc123\n"))
	assert.Equal(t, "---CATPORT-BOUNDARY", DetectBoundary("---CATPORT-BOUNDARY\n"))
	assert.Equal(t, "", DetectBoundary("no boundary"))
}

func TestParseModelReply(t *testing.T) {
	in := "```\n" +
		"---CATPORT-BOUNDARY-k9\n" +
		"Content-Disposition: attachment; filename=\"src/index.js\"\n" +
		"\n" +
		"console.log(\"start\");\n" +
		"\n" +
		"---CATPORT-BOUNDARY-k9\r\n" +
		"Content-Disposition: attachment; filename=\"win.txt\"\r\n" +
		"\r\n" +
		"crlf body\r\n" +
		"---CATPORT-BOUNDARY-k9--\n" +
		"```"
	got := New().Parse(in, nil)
	require.Equal(t, []contract.FileRecord{
		{Path: "src/index.js", Content: "console.log(\"start\");"},
		{Path: "win.txt", Content: "crlf body"},
	}, got)
}

// 围栏前后带说明文字的回复：围栏行与其后的文字不进入最后一个文件
func TestParseFencedReplyWithProse(t *testing.T) {
	parts := "---CATPORT-BOUNDARY-p1\n" +
		"Content-Disposition: attachment; filename=\"a.txt\"\n" +
		"\n" +
		"hello\n"
	want := []contract.FileRecord{{Path: "a.txt", Content: "hello"}}

	for name, in := range map[string]string{
		"trailing":           "```\n" + parts + "```\n\nLet me know if you need anything else.",
		"leading":            "Here you go:\n\n```\n" + parts + "```",
		"both":               "Here you go:\n\n```text\n" + parts + "```\n\nLet me know if you need anything else.",
		"terminal and prose": "Sure.\n```\n" + parts + "---CATPORT-BOUNDARY-p1--\n```\nDone.",
	} {
		assert.Equal(t, want, New().Parse(in, nil), name)
	}
}

// 文件正文中的代码围栏不被当作外层围栏
func TestInnerFenceIsContent(t *testing.T) {
	in := "Reply:\n```\n" +
		"---CATPORT-BOUNDARY-p2\n" +
		"Content-Disposition: attachment; filename=\"README.md\"\n" +
		"\n" +
		"# demo\n```go\nx := 1\n```\n" +
		"```\nthanks"
	got := New().Parse(in, nil)
	require.Equal(t, []contract.FileRecord{{Path: "README.md", Content: "# demo\n```go\nx := 1\n```"}}, got)
}

func TestParseSkipsBadSections(t *testing.T) {
	var diag contract.Collector
	in := "---CATPORT-BOUNDARY-q1\nno separator here" +
		"\n---CATPORT-BOUNDARY-q1\nX-Header: 1\n\nbody without filename" +
		"\n---CATPORT-BOUNDARY-q1\nContent-Disposition: attachment; filename=\"ok.txt\"\n\nok" +
		"\n---CATPORT-BOUNDARY-q1--\n" +
		"\n---CATPORT-BOUNDARY-q1\nContent-Disposition: attachment; filename=\"after.txt\"\n\nignored"
	got := New().Parse(in, &diag)
	require.Equal(t, []contract.FileRecord{{Path: "ok.txt", Content: "ok"}}, got)
	require.Len(t, diag.Messages(), 2)
	assert.Contains(t, diag.Messages()[0], "section 1: Header/Body separator not found")
	assert.Contains(t, diag.Messages()[1], "section 2: No filename found")
}

func TestInstructionNamesBoundary(t *testing.T) {
	assert.Contains(t, New().InstructionFor("---CATPORT-BOUNDARY-xyz"), "- Separator: ---CATPORT-BOUNDARY-xyz\n")
	assert.Equal(t, New().InstructionFor(contract.BoundaryPrefix), New().Instruction())
	assert.Equal(t, New().InstructionFor("B"), contract.Instruction(New(), "B"))
}

func TestParseGarbage(t *testing.T) {
	for _, s := range []string{"", "```", "```\n```", contract.BoundaryPrefix, contract.BoundaryPrefix + "--", "MIME-Version: 1.0"} {
		assert.NotPanics(t, func() { New().Parse(s, nil) }, "%q", s)
	}
}
