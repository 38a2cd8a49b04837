package filesystem

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noTemp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "tmp file not cleaned: %s", e.Name())
	}
}

// TestWriteAtomic 原子写入
func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	w := NewOS(nil)
	dest := filepath.Join(dir, "out.txt")
	require.NoError(t, w.Write(context.Background(), dest, bytes.NewBufferString("data")))
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))
	noTemp(t, dir)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

// 当目标已存在时，原子写应替换为新内容。
func TestWriteAtomicReplaceExisting(t *testing.T) {
	dir := t.TempDir()
	w := NewOS(nil)
	dest := filepath.Join(dir, "out.txt")
	require.NoError(t, w.Write(context.Background(), dest, bytes.NewBufferString("v1 longer")))
	require.NoError(t, w.Write(context.Background(), dest, bytes.NewBufferString("v2")))
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(b))
	noTemp(t, dir)
}

// TestWriteNonAtomic 非原子写入，自动创建父目录
func TestWriteNonAtomic(t *testing.T) {
	dir := t.TempDir()
	off := false
	w := NewOS(&Options{Atomic: &off})
	dest := filepath.Join(dir, "sub", "deep", "out.txt")
	require.NoError(t, w.Write(context.Background(), dest, bytes.NewBufferString("long content")))
	require.NoError(t, w.Write(context.Background(), dest, bytes.NewBufferString("v")))
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "v", string(b), "覆盖写需截断旧内容")
}

func TestWriteMemory(t *testing.T) {
	w := NewMemory(nil)
	require.NoError(t, w.Write(context.Background(), "/proj/src/a.go", strings.NewReader("package a")))
	b, err := util.ReadFile(w.Filesystem(), "/proj/src/a.go")
	require.NoError(t, err)
	assert.Equal(t, "package a", string(b))

	// 临时文件已被重命名
	infos, err := w.Filesystem().ReadDir("/proj/src")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "a.go", infos[0].Name())
}

func TestWriteEmptyDest(t *testing.T) {
	w := NewMemory(nil)
	assert.Error(t, w.Write(context.Background(), "/", strings.NewReader("x")))
}

// TestWriteCtxCancel 上下文取消
func TestWriteCtxCancel(t *testing.T) {
	w := NewMemory(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Write(ctx, "/a.txt", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := w.Filesystem().Stat("/a.txt")
	assert.True(t, os.IsNotExist(statErr))
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) { return 0, errors.New("boom") }

// TestWriteAtomicCopyError 原子写入时拷贝失败不残留临时文件
func TestWriteAtomicCopyError(t *testing.T) {
	dir := t.TempDir()
	err := NewOS(nil).Write(context.Background(), filepath.Join(dir, "a.txt"), errReader{})
	require.Error(t, err)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

// TestReaderWithCtxCancel reader 在读取前取消
func TestReaderWithCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := readerWithCtx(ctx, strings.NewReader("data"))
	cancel()
	_, err := r.Read(make([]byte, 1))
	assert.Error(t, err)
}
