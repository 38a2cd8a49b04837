package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/jmgilman/go/errors"

	"catport/internal/diag"
	"catport/pkg/contract"
	"catport/pkg/registry"
)

// Settings: 一次提取运行所需的全部参数。
type Settings struct {
	// Input: 输入文件路径；"-" 为标准输入。
	Input string
	// Root: 目标根目录。
	Root string
	// Safe: 启用路径守卫。
	Safe bool
	// Format: 非空时强制使用该格式解析，否则按内容嗅探。
	Format string
	// DryRun: 写入内存文件系统，不触碰磁盘。
	DryRun bool
}

// Result 汇总一次提取。
type Result struct {
	Format   contract.Format
	Records  int
	Written  []string
	Rejected []string
	Invalid  int
}

// Extractor 解析模型回复并经路径守卫逐条写出。
// 记录按顺序串行处理，不做跨文件回滚。
type Extractor struct {
	s       Settings
	guard   *Guard
	w       contract.Writer
	log     *diag.Logger
	metrics *diag.Metrics
}

// New 创建 Extractor；vfs 用于守卫解析符号链接（通常为本地文件系统）。
func New(s Settings, w contract.Writer, vfs securejoin.VFS, log *diag.Logger, m *diag.Metrics) (*Extractor, error) {
	if w == nil {
		return nil, errors.Wrap(contract.ErrInvalidConfig, errors.CodeInvalidConfig, "extract: writer is nil")
	}
	g, err := NewGuard(s.Root, s.Safe, vfs)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = diag.Discard()
	}
	if m == nil {
		m = &diag.Metrics{}
	}
	return &Extractor{s: s, guard: g, w: w, log: log, metrics: m}, nil
}

// Root 返回绝对目标根。
func (e *Extractor) Root() string { return e.guard.Root() }

// Run 读取全部输入、选择编解码器并写出每条通过守卫的记录。
// 写入失败为致命错误；越界与空路径记录仅告警并跳过。
func (e *Extractor) Run(ctx context.Context, in io.Reader) (Result, error) {
	var res Result
	timer := e.log.Start("extract", "extract")

	raw, err := io.ReadAll(in)
	if err != nil {
		return res, errors.Wrap(err, errors.CodeInternal, "read extract input")
	}
	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return res, contract.ErrEmptyInput
	}

	codec := registry.Detect(text)
	if e.s.Format != "" {
		codec = registry.Get(e.s.Format)
	}
	res.Format = codec.Name()
	e.log.Info("extract", fmt.Sprintf("Detected format: %s", res.Format))

	recs := codec.Parse(text, e.log)
	res.Records = len(recs)
	if len(recs) == 0 {
		e.log.WarnIn("extract", "No files found.")
		timer.Finish("no files", 0)
		return res, nil
	}
	e.log.Info("extract", fmt.Sprintf("Extracting %d files to %s", len(recs), e.guard.Root()))

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		dest, err := e.guard.Resolve(rec.Path)
		switch {
		case errors.Is(err, contract.ErrPathTraversal):
			e.log.WarnPath("extract", string(diag.CodeSecurity), "[SECURITY] Skipping traversal attempt: "+rec.Path, rec.Path)
			e.metrics.IncRejected()
			res.Rejected = append(res.Rejected, rec.Path)
			continue
		case errors.Is(err, contract.ErrPathInvalid):
			e.log.WarnPath("extract", string(diag.CodeInvariant), fmt.Sprintf("Skipping record with unusable path %q", rec.Path), rec.Path)
			res.Invalid++
			continue
		case err != nil:
			return res, err
		}
		if err := e.w.Write(ctx, dest, strings.NewReader(rec.Content)); err != nil {
			e.log.ErrorWith("extract", string(diag.Classify(err)), err.Error(), timer.Since(), rec.Path)
			return res, err
		}
		e.metrics.IncExtracted()
		res.Written = append(res.Written, dest)
		e.log.DebugKV("extract", "written", rec.Path, map[string]string{"dest": dest, "bytes": fmt.Sprint(len(rec.Content))})
	}
	e.log.Info("extract", fmt.Sprintf("Extracted %d files.", len(res.Written)))
	timer.Finish("extracted", int64(len(res.Written)))
	return res, nil
}
