package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmgilman/go/errors"

	"catport/pkg/contract"
)

const (
	defaultBuf = 64 * 1024
	// sampleSize: 二进制嗅探窗口。
	sampleSize = 8 * 1024

	BinaryPlaceholder = "(binary omitted)"
)

// Options 为 FileSystem Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB，且不小于嗅探窗口。
	BufSize int `json:"buf_size"`
	// Ignore: 全局忽略规则（默认规则与用户规则合并后的完整列表）。
	Ignore []string `json:"ignore"`
	// NoIgnore: 不读取目录中的 .gitignore。
	NoIgnore bool `json:"no_ignore"`
	// Extensions: 仅保留这些扩展名的文件，如 ["go","md"] 或 [".go"]。
	Extensions []string `json:"extensions"`
	// MaxSize: 超过该字节数的文件以占位文本替代；0 表示不限。
	MaxSize int64 `json:"max_size"`
	// Include: 非空时只输出这些绝对路径（git 变更集），不遍历目录。
	Include []string `json:"include"`
}

// FileSystem 实现基于本地文件系统的 Reader。
type FileSystem struct {
	bufSize  int
	base     *Matcher
	noIgnore bool
	exts     map[string]struct{}
	maxSize  int64
	include  []string

	// Stdin: roots 为 "-" 时读取路径列表的来源。
	Stdin io.Reader
}

var _ contract.Reader = (*FileSystem)(nil)

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	if opts == nil {
		opts = &Options{}
	}
	b := defaultBuf
	if opts.BufSize > 0 {
		b = max(opts.BufSize, sampleSize)
	}
	exts := make(map[string]struct{})
	for _, e := range opts.Extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			exts[e] = struct{}{}
		}
	}
	inc := make([]string, 0, len(opts.Include))
	for _, p := range opts.Include {
		if abs, err := filepath.Abs(p); err == nil {
			inc = append(inc, abs)
		}
	}
	sort.Strings(inc)
	return &FileSystem{
		bufSize:  b,
		base:     NewMatcher(opts.Ignore),
		noIgnore: opts.NoIgnore,
		exts:     exts,
		maxSize:  opts.MaxSize,
		include:  inc,
		Stdin:    os.Stdin,
	}
}

// Scan 遍历 roots，按稳定顺序回调条目；roots 为空时扫描当前目录。
// 仅含 "-" 时从 Stdin 逐行读取根路径。
func (r *FileSystem) Scan(ctx context.Context, roots []string, yield func(contract.Entry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	roots, err := r.resolveRoots(roots)
	if err != nil {
		return err
	}
	if len(r.include) > 0 {
		return r.scanInclude(ctx, roots, yield)
	}
	for _, root := range roots {
		if err := r.scanOne(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) resolveRoots(roots []string) ([]string, error) {
	if len(roots) == 0 {
		return []string{"."}, nil
	}
	if len(roots) == 1 && roots[0] == "-" {
		var out []string
		sc := bufio.NewScanner(r.Stdin)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				out = append(out, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "read path list from stdin")
		}
		return out, nil
	}
	// 禁止与其他根混用 "-"
	for _, s := range roots {
		if s == "-" {
			return nil, errors.New(errors.CodeInvalidInput, "stdin '-' cannot be mixed with other roots")
		}
	}
	return roots, nil
}

func (r *FileSystem) scanOne(ctx context.Context, root string, yield func(contract.Entry) error) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return errors.Wrapf(err, errors.CodeInvalidInput, "resolve root %s", root)
	}
	// 根本身允许是符号链接
	info, err := os.Stat(abs)
	if err != nil {
		return errors.Wrapf(err, errors.CodeNotFound, "stat root %s", root)
	}
	if info.IsDir() {
		return r.walkDir(ctx, abs, "", r.base, yield)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	rel := filepath.Base(abs)
	if r.base.Match(rel, false) || !r.extOK(rel) {
		return nil
	}
	return yield(contract.Entry{Path: abs, Rel: rel})
}

// walkDir 先目录后文件，各自按名称字典序；目录条目先于其子条目回调。
func (r *FileSystem) walkDir(ctx context.Context, dir, relDir string, m *Matcher, yield func(contract.Entry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.noIgnore {
		if b, err := os.ReadFile(filepath.Join(dir, ".gitignore")); err == nil {
			m = m.Extend(relDir, ParseGitignore(string(b)))
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "read dir %s", dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	// 先目录（不跟随目录符号链接）
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.IsDir() || e.Name() == ".git" {
			continue
		}
		rel := joinRel(relDir, e.Name())
		if m.Match(rel, true) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := yield(contract.Entry{Path: p, Rel: rel, IsDir: true}); err != nil {
			return err
		}
		if err := r.walkDir(ctx, p, rel, m, yield); err != nil {
			return err
		}
	}
	// 再文件（允许指向常规文件的符号链接）
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if e.Type()&os.ModeSymlink != 0 {
			t, err := os.Stat(p)
			if err != nil || !t.Mode().IsRegular() {
				// 断链或指向目录：忽略
				continue
			}
		} else if !e.Type().IsRegular() {
			continue
		}
		rel := joinRel(relDir, e.Name())
		if m.Match(rel, false) || !r.extOK(e.Name()) {
			continue
		}
		if err := yield(contract.Entry{Path: p, Rel: rel}); err != nil {
			return err
		}
	}
	return nil
}

// scanInclude 只输出落在某个根之下的 Include 路径；Rel 相对所在的根。
func (r *FileSystem) scanInclude(ctx context.Context, roots []string, yield func(contract.Entry) error) error {
	absRoots := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return errors.Wrapf(err, errors.CodeInvalidInput, "resolve root %s", root)
		}
		absRoots = append(absRoots, abs)
	}
	for _, p := range r.include {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, ok := relUnder(absRoots, p)
		if !ok {
			continue
		}
		// 已删除或非常规文件
		if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
			continue
		}
		if r.base.Match(rel, false) || !r.extOK(p) {
			continue
		}
		if err := yield(contract.Entry{Path: p, Rel: rel}); err != nil {
			return err
		}
	}
	return nil
}

func relUnder(roots []string, p string) (string, bool) {
	for _, root := range roots {
		rel, err := filepath.Rel(root, p)
		if err != nil || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func (r *FileSystem) extOK(name string) bool {
	if len(r.exts) == 0 {
		return true
	}
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return false
	}
	_, ok := r.exts[strings.ToLower(name[i+1:])]
	return ok
}

// Load 读取文件文本：前 8KiB 含 NUL 视为二进制，超过 MaxSize 以占位文本替代。
func (r *FileSystem) Load(ctx context.Context, e contract.Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(e.Path)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeInternal, "open %s", e.Rel)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, r.bufSize)
	sample, err := br.Peek(sampleSize)
	if err != nil && err != io.EOF {
		return "", errors.Wrapf(err, errors.CodeInternal, "read %s", e.Rel)
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return BinaryPlaceholder, nil
	}
	if r.maxSize > 0 {
		info, err := f.Stat()
		if err != nil {
			return "", errors.Wrapf(err, errors.CodeInternal, "stat %s", e.Rel)
		}
		if info.Size() > r.maxSize {
			return TooLargePlaceholder(info.Size()), nil
		}
	}
	b, err := io.ReadAll(&ctxReader{ctx: ctx, r: br})
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeInternal, "read %s", e.Rel)
	}
	return strings.ToValidUTF8(string(b), "�"), nil
}

// TooLargePlaceholder 返回超限文件的占位文本。
func TooLargePlaceholder(size int64) string {
	return fmt.Sprintf("(file too large for processing: %d bytes)", size)
}

// ctxReader 在每次 Read 前检查取消。
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
