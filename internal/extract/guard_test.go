package extract

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catport/pkg/contract"
)

func TestSanitize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"src/a.go", "src/a.go"},
		{"  `src/a.go`  ", "src/a.go"},
		{"\"src/a.go\"", "src/a.go"},
		{"'src\\win\\b.txt'", "src/win/b.txt"},
		{"a/\x00b.txt", "a/b.txt"},
		{"./a/../b.txt", "b.txt"},
		{"a//b/./c", "a/b/c"},
		{"", ""},
		{"``", ""},
		{".", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "%q", tt.in)
	}
}

// 安全模式拒绝所有越界形式
func TestGuardSafeRejects(t *testing.T) {
	root := t.TempDir()
	g, err := NewGuard(root, true, nil)
	require.NoError(t, err)

	for _, raw := range []string{
		"../etc/passwd",
		"..",
		"a/../../x",
		"/etc/passwd",
		"\\etc\\passwd",
		"C:/Windows/system32",
		"c:",
		"`../secret`",
	} {
		_, err := g.Resolve(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, contract.ErrPathTraversal), raw)
		assert.Equal(t, errors.CodeForbidden, errors.GetCode(err), raw)
	}
}

func TestGuardSafeAccepts(t *testing.T) {
	root := t.TempDir()
	g, err := NewGuard(root, true, nil)
	require.NoError(t, err)

	got, err := g.Resolve("src/main.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src", "main.go"), got)

	// 内部的 '..' 经词法清理后仍在根内
	got, err = g.Resolve("a/b/../c.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a", "c.txt"), got)

	// 盘符形态仅在后接分隔符时视为卷名
	got, err = g.Resolve("notes:v2.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "notes:v2.txt"), got)
}

// 非安全模式直接拼接
func TestGuardUnsafeJoins(t *testing.T) {
	root := t.TempDir()
	g, err := NewGuard(root, false, nil)
	require.NoError(t, err)

	got, err := g.Resolve("../escape.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(root), "escape.txt"), got)
}

func TestGuardEmptyPath(t *testing.T) {
	for _, safe := range []bool{true, false} {
		g, err := NewGuard(t.TempDir(), safe, nil)
		require.NoError(t, err)
		_, err = g.Resolve(" `` ")
		require.Error(t, err)
		assert.True(t, errors.Is(err, contract.ErrPathInvalid))
		assert.False(t, errors.Is(err, contract.ErrPathTraversal))
	}
}

func TestGuardDefaultRoot(t *testing.T) {
	g, err := NewGuard("", true, nil)
	require.NoError(t, err)
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, g.Root())
}

// 根内预置的符号链接不能把写入带出根目录（内存文件系统）
func TestGuardSymlinkMemfs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix paths")
	}
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/proj", 0o755))
	require.NoError(t, fs.Symlink("/etc", "/proj/link"))
	require.NoError(t, fs.Symlink("../../outside", "/proj/rel"))

	g, err := NewGuard("/proj", true, fs)
	require.NoError(t, err)

	got, err := g.Resolve("link/passwd")
	require.NoError(t, err)
	assert.Equal(t, "/proj/etc/passwd", got)

	got, err = g.Resolve("rel/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "/proj/outside/x.txt", got)

	got, err = g.Resolve("plain/y.txt")
	require.NoError(t, err)
	assert.Equal(t, "/proj/plain/y.txt", got)
}

// 真实磁盘上的符号链接
func TestGuardSymlinkOS(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink privileges")
	}
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "evil")))

	g, err := NewGuard(root, true, osfs.New("/"))
	require.NoError(t, err)
	got, err := g.Resolve("evil/pwned.txt")
	require.NoError(t, err)
	assert.True(t, len(got) > len(root) && got[:len(root)] == root, got)
	assert.NotEqual(t, filepath.Join(outside, "pwned.txt"), got)
}
