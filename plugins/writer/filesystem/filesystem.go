package filesystem

import (
	"bufio"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/jmgilman/go/errors"

	"catport/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。
	// 默认值：true。未提供该字段时采用原子写；显式 false 可关闭。
	Atomic *bool `json:"atomic,omitempty"`
	// PermFile/PermDir: 可选权限；为 0 表示使用默认 0644/0755。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用实现默认。
	BufSize int `json:"buf_size,omitempty"`
}

// FS 在 billy.Filesystem 上实现 contract.Writer。
type FS struct {
	bfs     billy.Filesystem
	atomic  bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

var _ contract.Writer = (*FS)(nil)

// New 创建基于 bfs 的 Writer；dest 按 bfs 内的绝对路径解释。
func New(bfs billy.Filesystem, opts *Options) *FS {
	if opts == nil {
		opts = &Options{}
	}
	bsz := opts.BufSize
	if bsz <= 0 {
		bsz = 64 * 1024
	}
	pf := opts.PermFile
	if pf == 0 {
		pf = 0o644
	}
	pd := opts.PermDir
	if pd == 0 {
		pd = 0o755
	}
	atomic := true
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	return &FS{bfs: bfs, atomic: atomic, permF: pf, permD: pd, bufSize: bsz}
}

// NewOS 返回写入本地磁盘的 Writer（根为 "/"）。
func NewOS(opts *Options) *FS { return New(osfs.New("/"), opts) }

// NewMemory 返回写入内存文件系统的 Writer（dry-run 与测试）。
func NewMemory(opts *Options) *FS { return New(memfs.New(), opts) }

// Filesystem 返回底层文件系统，供路径守卫解析符号链接与调用方检查结果。
func (w *FS) Filesystem() billy.Filesystem { return w.bfs }

// Write 将 r 的全部字节写入 dest；自动创建父目录，覆盖已存在文件。
func (w *FS) Write(ctx context.Context, dest string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest = filepath.ToSlash(filepath.Clean(dest))
	if dest == "/" || dest == "." {
		return errors.Wrap(contract.ErrPathInvalid, errors.CodeInvalidInput, "empty destination")
	}
	if err := w.bfs.MkdirAll(path.Dir(dest), w.permD); err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "mkdir %s", path.Dir(dest))
	}
	if w.atomic {
		return w.writeAtomic(ctx, dest, r)
	}
	return w.writeOverwrite(ctx, dest, r)
}

func (w *FS) writeOverwrite(ctx context.Context, dest string, r io.Reader) error {
	f, err := w.bfs.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
	if err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "open %s", dest)
	}
	// 确保及时关闭
	defer f.Close()

	bw := bufio.NewWriterSize(f, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "write %s", dest)
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "write %s", dest)
	}
	return nil
}

func (w *FS) writeAtomic(ctx context.Context, dest string, r io.Reader) error {
	dir := path.Dir(dest)
	tmp, err := w.bfs.TempFile(dir, ".tmp-")
	if err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "create temp in %s", dir)
	}
	tmpPath := path.Join(dir, path.Base(filepath.ToSlash(tmp.Name())))
	fail := func(err error) error {
		_ = tmp.Close()
		_ = w.bfs.Remove(tmpPath)
		return errors.Wrapf(err, errors.CodeInternal, "write %s", dest)
	}

	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	// 部分后端（memfs）不支持 Sync
	if s, ok := tmp.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return fail(err)
		}
	}
	if err := tmp.Close(); err != nil {
		_ = w.bfs.Remove(tmpPath)
		return errors.Wrapf(err, errors.CodeInternal, "close temp for %s", dest)
	}
	// 目标权限：尽量与期望一致
	if ch, ok := w.bfs.(billy.Change); ok {
		_ = ch.Chmod(tmpPath, w.permF)
	}
	if err := w.bfs.Rename(tmpPath, dest); err != nil {
		_ = w.bfs.Remove(tmpPath)
		return errors.Wrapf(err, errors.CodeInternal, "replace %s", dest)
	}
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}
	return cr.r.Read(p)
}
