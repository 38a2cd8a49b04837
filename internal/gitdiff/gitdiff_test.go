package gitdiff

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catport/internal/diag"
	"catport/pkg/contract"
)

type fixture struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
	wt   *gogit.Worktree
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &fixture{t: t, dir: dir, repo: repo, wt: wt}
}

func (f *fixture) write(rel, s string) {
	p := filepath.Join(f.dir, filepath.FromSlash(rel))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(f.t, os.WriteFile(p, []byte(s), 0o644))
}

func (f *fixture) commit(msg string, rels ...string) plumbing.Hash {
	for _, r := range rels {
		_, err := f.wt.Add(r)
		require.NoError(f.t, err)
	}
	h, err := f.wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(f.t, err)
	return h
}

func (f *fixture) abs(rels ...string) []string {
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, filepath.Join(f.dir, filepath.FromSlash(r)))
	}
	return out
}

// HEAD：修改、暂存、未跟踪文件；忽略文件与已删除文件不计入
func TestChangedHead(t *testing.T) {
	f := newFixture(t)
	f.write(".gitignore", "*.log\n")
	f.write("keep.txt", "same")
	f.write("mod.txt", "v1")
	f.write("gone.txt", "bye")
	f.commit("init", ".gitignore", "keep.txt", "mod.txt", "gone.txt")

	f.write("mod.txt", "v2")
	f.write("src/new.go", "package src")
	f.write("debug.log", "noise")
	f.write("staged.txt", "s")
	_, err := f.wt.Add("staged.txt")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.dir, "gone.txt")))

	got, err := Changed(context.Background(), f.dir, "")
	require.NoError(t, err)
	assert.Equal(t, f.abs("mod.txt", "src/new.go", "staged.txt"), got)
}

// 从子目录也能找到仓库
func TestChangedFromSubdir(t *testing.T) {
	f := newFixture(t)
	f.write("a/b/c.txt", "1")
	f.commit("init", "a/b/c.txt")
	f.write("a/b/c.txt", "2")

	got, err := Changed(context.Background(), filepath.Join(f.dir, "a", "b"), Head)
	require.NoError(t, err)
	assert.Equal(t, f.abs("a/b/c.txt"), got)
}

// 其他引用：提交之间的差异并上工作区状态
func TestChangedAgainstRef(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "1")
	f.write("b.txt", "1")
	f.write("old.txt", "x")
	first := f.commit("first", "a.txt", "b.txt", "old.txt")

	f.write("a.txt", "2")
	f.write("c.txt", "new")
	_, err := f.wt.Remove("old.txt")
	require.NoError(t, err)
	f.commit("second", "a.txt", "c.txt")

	f.write("b.txt", "dirty")

	got, err := Changed(context.Background(), f.dir, first.String())
	require.NoError(t, err)
	assert.Equal(t, f.abs("a.txt", "b.txt", "c.txt"), got)

	got, err = Changed(context.Background(), f.dir, "HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, f.abs("a.txt", "b.txt", "c.txt"), got)
}

func TestChangedCleanTree(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "1")
	f.commit("init", "a.txt")
	got, err := Changed(context.Background(), f.dir, Head)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChangedNotRepository(t *testing.T) {
	_, err := Changed(context.Background(), t.TempDir(), Head)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contract.ErrNotRepository))
	assert.Equal(t, diag.CodeConfig, diag.Classify(err))
}

func TestChangedInvalidRef(t *testing.T) {
	for _, ref := range []string{"main;rm -rf /", "$(id)", "a|b", "`x`"} {
		_, err := Changed(context.Background(), ".", ref)
		require.Error(t, err, ref)
		assert.True(t, errors.Is(err, contract.ErrInvalidConfig), ref)
	}
	assert.True(t, ValidRef("origin/main~2"))
	assert.False(t, ValidRef("HEAD@{1}"))
}

func TestChangedUnknownRevision(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "1")
	f.commit("init", "a.txt")
	_, err := Changed(context.Background(), f.dir, "no-such-branch")
	require.Error(t, err)
	assert.Equal(t, diag.CodeConfig, diag.Classify(err))
}

func TestChangedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Changed(ctx, ".", Head)
	assert.ErrorIs(t, err, context.Canceled)
}
