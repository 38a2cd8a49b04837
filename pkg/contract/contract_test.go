package contract

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizePath 验证路径规范化逻辑。
func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"系统分隔符", filepath.Join("a", "b", "c"), "a/b/c"},
		{"当前目录回退", "./x/../y", "y"},
		{"空串", "", "."},
		// 反斜杠转换
		{"Windows路径", "C:\\Users\\test\\file.txt", "C:/Users/test/file.txt"},
		{"相对路径反斜杠", "src\\main\\java\\App.java", "src/main/java/App.java"},
		// path.Clean 功能
		{"清理多余斜杠", "path//to///file.txt", "path/to/file.txt"},
		{"清理当前目录", "path/./to/./file.txt", "path/to/file.txt"},
		{"处理父目录", "path/to/../from/file.txt", "path/from/file.txt"},
		// 边界情况
		{"双点", "..", ".."},
		{"根路径", "/", "/"},
		{"中文路径", "项目\\文档/测试.txt", "项目/文档/测试.txt"},
		{"复杂父目录", "a\\b\\c\\..\\..\\..\\..\\d", "../d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePath(tt.input))
		})
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"src/a.go", "src/a.go"},
		{"**src/a.go**", "src/a.go"},
		{"## File: src/a.go", "src/a.go"},
		{"path: `src/a.go`:", "src/a.go"},
		{"> 'README.md'", "README.md"},
		{"  \"x y.txt\"", "x y.txt"},
		{"***", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanPath(tt.in), "CleanPath(%q)", tt.in)
	}
}

func TestNewBoundary(t *testing.T) {
	re := regexp.MustCompile(`^---CATPORT-BOUNDARY-[a-z0-9]+$`)
	a, b := NewBoundary(), NewBoundary()
	require.Regexp(t, re, a)
	require.Regexp(t, re, b)
	assert.NotEqual(t, a, b, "每次编码应生成新的分隔符")
}

func TestMetaOptions(t *testing.T) {
	m := Meta{Boundary: "B"}
	o := m.Options(XMLCDATA)
	assert.Equal(t, FileOptions{XMLMode: XMLCDATA, Boundary: "B"}, o)
}

type sepCodec struct{ Codec }

func (sepCodec) Separator() string { return ",\n" }

func TestSeparator(t *testing.T) {
	assert.Equal(t, ",\n", Separator(sepCodec{}))
	assert.Equal(t, "", Separator(struct{ Codec }{}))
}

func TestCollector(t *testing.T) {
	var c Collector
	c.Warn("a")
	c.Warn("b")
	msgs := c.Messages()
	require.Equal(t, []string{"a", "b"}, msgs)
	msgs[0] = "x"
	assert.Equal(t, "a", c.Messages()[0], "Messages 应返回副本")

	assert.Equal(t, Discard, OrDiscard(nil))
	assert.Same(t, &c, OrDiscard(&c))
}

func TestSentinelCodes(t *testing.T) {
	assert.Equal(t, errors.CodeForbidden, errors.GetCode(ErrPathTraversal))
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(ErrEmptyInput))
	wrapped := errors.Wrap(ErrPathTraversal, errors.CodeForbidden, "../x")
	assert.True(t, errors.Is(wrapped, ErrPathTraversal))
}

// BenchmarkNormalizePath 性能基准测试
func BenchmarkNormalizePath(b *testing.B) {
	testPaths := []string{
		"C:\\Users\\test\\Documents\\file.txt",
		"src/main/java/../../../test/data/file.txt",
		"path//to///many////slashes/file.txt",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range testPaths {
			NormalizePath(p)
		}
	}
}
