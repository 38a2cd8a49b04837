package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/jmgilman/go/errors"
	"github.com/spf13/pflag"

	"catport/internal/bundle"
	cfgpkg "catport/internal/config"
	"catport/internal/diag"
	"catport/internal/extract"
	"catport/internal/gitdiff"
	"catport/internal/stream"
	"catport/pkg/contract"
)

// version 由构建时 -ldflags "-X main.version=..." 注入。
var version = "dev"

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Environ(), stream.Default(), os.Stderr)
	stop()
	os.Exit(code)
}

// flags: 命令行旗标原始值；是否显式设置以 FlagSet.Changed 为准。
type flags struct {
	help, showVersion     bool
	verbose, debug, quiet bool
	output, config        string
	initDir, logDir       string
	format, replyFormat   string
	context, task         string
	noInstruct, noStruct  bool
	listDirs, skeleton    bool
	extensions, ignore    []string
	noIgnore              bool
	gitDiff               string
	budget                int
	priority              []string
	optimize, maxSize     string
	charsPerToken         float64
	concurrency           int
	xmlMode               string
	extract, extractDir   string
	unsafe, dryRun        bool
}

func newFlagSet(f *flags, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("catport", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	fs.BoolVarP(&f.help, "help", "h", false, "显示帮助")
	fs.BoolVarP(&f.showVersion, "version", "V", false, "显示版本")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "输出 info 级日志")
	fs.BoolVar(&f.debug, "debug", false, "输出 debug 级日志")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "仅输出错误")
	fs.StringVarP(&f.output, "output", "o", "", "输出文件（默认标准输出；.zst 后缀压缩）")
	fs.StringVar(&f.config, "config", "", "配置文件（默认查找 ./.catport.yaml|.yml|.json）")
	fs.StringVar(&f.initDir, "init-config", "", "在目录中生成配置模板（不覆盖）")
	fs.Lookup("init-config").NoOptDefVal = "."
	fs.StringVar(&f.logDir, "log-dir", "", "同时把 JSON 日志写入该目录下的轮转文件")

	fs.StringVarP(&f.format, "format", "f", "", "输出格式：md|xml|json|yaml|multipart")
	fs.StringVarP(&f.replyFormat, "reply-format", "R", "", "期望的回复格式（默认同 --format）")
	fs.StringVarP(&f.context, "context", "C", "", "附加上下文")
	fs.StringVarP(&f.task, "task", "T", "", "任务描述")
	fs.BoolVarP(&f.noInstruct, "no-instruct", "I", false, "不附带回复格式说明")
	fs.BoolVarP(&f.noStruct, "no-structure", "n", false, "不附带目录树")
	fs.BoolVarP(&f.listDirs, "list-dirs", "l", false, "目录树中列出目录")
	fs.BoolVarP(&f.skeleton, "skeleton", "k", false, "仅输出目录树与元信息")
	fs.StringSliceVarP(&f.extensions, "extensions", "e", nil, "仅包含这些扩展名（逗号分隔）")
	fs.StringArrayVarP(&f.ignore, "ignore", "i", nil, "追加忽略规则（可重复）")
	fs.BoolVarP(&f.noIgnore, "no-ignore", "u", false, "关闭默认忽略规则与 .gitignore")
	fs.StringVarP(&f.gitDiff, "git-diff", "g", "", "仅打包相对引用变化的文件（默认 HEAD）")
	fs.Lookup("git-diff").NoOptDefVal = gitdiff.Head
	fs.IntVarP(&f.budget, "budget", "b", 0, "token 预算（0 不限）")
	fs.StringArrayVarP(&f.priority, "priority", "p", nil, "优先级规则 glob:score（可重复）")
	fs.StringVarP(&f.optimize, "optimize", "O", "", "内容优化：none|whitespace|comments|minify")
	fs.StringVarP(&f.maxSize, "max-size", "S", "", "单文件上限，如 10MB")
	fs.Float64VarP(&f.charsPerToken, "chars-per-token", "c", 0, "token 估算系数")
	fs.IntVarP(&f.concurrency, "concurrency", "P", 0, "读取并发度")
	fs.StringVarP(&f.xmlMode, "xml-mode", "X", "", "XML 内容模式：auto|cdata|escape")

	fs.StringVarP(&f.extract, "extract", "x", "", "从文件或 - 提取回复中的文件")
	fs.StringVarP(&f.extractDir, "extract-dir", "d", "", "提取目标根目录")
	fs.BoolVarP(&f.unsafe, "unsafe", "U", false, "关闭路径越界保护")
	fs.BoolVar(&f.dryRun, "dry-run", false, "只解析与校验，不写磁盘")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "用法: catport [选项] [路径...]\n       catport -x <文件|-> [-d 目录]\n\n")
		fs.PrintDefaults()
	}
	return fs
}

// overlay 把显式设置的旗标转为配置覆盖。
func (f *flags) overlay(fs *pflag.FlagSet) (cfgpkg.Config, error) {
	var c cfgpkg.Config
	set := fs.Changed
	if set("format") {
		c.Format = f.format
	}
	if set("reply-format") {
		c.ReplyFormat = f.replyFormat
	}
	if set("context") {
		c.Context = f.context
	}
	if set("task") {
		c.Task = f.task
	}
	if set("no-instruct") {
		v := !f.noInstruct
		c.Instruct = &v
	}
	if set("no-structure") {
		v := !f.noStruct
		c.Structure = &v
	}
	if set("list-dirs") {
		c.ListDirs = &f.listDirs
	}
	if set("skeleton") {
		c.Skeleton = &f.skeleton
	}
	if set("extensions") {
		c.Extensions = f.extensions
	}
	if set("ignore") {
		c.Ignore = f.ignore
	}
	if set("no-ignore") {
		c.NoIgnore = &f.noIgnore
	}
	if set("git-diff") {
		c.GitDiff = f.gitDiff
	}
	if set("budget") {
		c.Budget = &f.budget
	}
	if set("priority") {
		c.Priority = f.priority
	}
	if set("optimize") {
		c.Optimize = f.optimize
	}
	if set("max-size") {
		n, err := cfgpkg.ParseSize(f.maxSize)
		if err != nil {
			return c, err
		}
		s := cfgpkg.Size(n)
		c.MaxSize = &s
	}
	if set("chars-per-token") {
		c.CharsPerToken = f.charsPerToken
		if f.charsPerToken <= 0 {
			return c, errors.Wrap(contract.ErrInvalidConfig, errors.CodeInvalidConfig, "--chars-per-token must be > 0")
		}
	}
	if set("concurrency") {
		c.Concurrency = f.concurrency
		if f.concurrency < 1 {
			return c, errors.Wrap(contract.ErrInvalidConfig, errors.CodeInvalidConfig, "--concurrency must be >= 1")
		}
	}
	if set("xml-mode") {
		c.XMLMode = f.xmlMode
	}
	if set("extract-dir") {
		c.ExtractDir = f.extractDir
	}
	if f.unsafe {
		v := false
		c.SafeMode = &v
	}
	if set("log-dir") {
		c.Logging.Dir = f.logDir
	}
	switch {
	case f.debug:
		c.Logging.Level = "debug"
	case f.verbose:
		c.Logging.Level = "info"
	case f.quiet:
		c.Logging.Level = "error"
	}
	return c, nil
}

// run 执行一次 CLI 调用并返回退出码。
func run(ctx context.Context, args, environ []string, st *stream.Streams, stderr io.Writer) int {
	start := time.Now()
	var f flags
	fs := newFlagSet(&f, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}
	if f.help {
		fs.Usage()
		return exitOK
	}
	if f.showVersion {
		_, _ = fmt.Fprintf(stdout(st), "catport %s\n", version)
		return exitOK
	}

	// --init-config: 生成模板并退出
	if fs.Changed("init-config") {
		dir := strings.TrimSpace(f.initDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fprintf(stderr, "生成配置模板失败: %v\n", err)
			return exitConfig
		}
		p, err := cfgpkg.WriteTemplate(dir)
		if err != nil {
			fprintf(stderr, "生成配置模板失败: %v\n", err)
			return exitConfig
		}
		fprintf(stderr, "已生成 %s\n", p)
		return exitOK
	}

	cfg, err := resolveConfig(&f, fs, environ)
	if err != nil {
		fprintf(stderr, "配置错误: %v\n", err)
		return exitConfig
	}

	logger := diag.NewLogger(genCorrID(), cfg.Logging.Level, stderr, cfg.Logging.Dir)
	defer func() { _ = logger.Close() }()
	term := diag.NewTerminal(stderr, logger.Level() < diag.Error)
	metrics := &diag.Metrics{}

	if fs.Changed("extract") {
		format := ""
		if fs.Changed("format") {
			format = cfg.Format
		}
		err = runExtract(ctx, cfg, f.extract, format, f.dryRun, st, logger, metrics, term)
	} else {
		err = runBundle(ctx, cfg, fs.Args(), f.output, st, logger, metrics, term)
	}
	if err != nil {
		code := diag.Classify(err)
		logger.Error("cli", string(code), "first error: "+err.Error(), &start)
		if code != diag.CodeCancel {
			fprintf(stderr, "运行失败: %v\n", err)
		}
		if errors.Is(err, contract.ErrInvalidConfig) || errors.Is(err, contract.ErrNotRepository) {
			return exitConfig
		}
		return exitRuntime
	}
	logger.DebugKV("cli", "metrics", "", metrics.Snapshot())
	return exitOK
}

// resolveConfig: 默认值 → 配置文件 → 环境变量 → 命令行，最后校验。
func resolveConfig(f *flags, fs *pflag.FlagSet, environ []string) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()
	path := f.config
	if path == "" {
		path = cfgpkg.Find(".")
	}
	if path != "" {
		file, err := cfgpkg.Load(path, nil)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, file)
	}
	env, err := cfgpkg.EnvOverlay(environ)
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, env)
	cli, err := f.overlay(fs)
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, cli)
	if err := cfgpkg.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runBundle(ctx context.Context, cfg cfgpkg.Config, roots []string, output string, st *stream.Streams, log *diag.Logger, m *diag.Metrics, term *diag.Terminal) error {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	var include []string
	if cfg.GitDiff != "" {
		changed, err := gitdiff.Changed(ctx, roots[0], cfg.GitDiff)
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			log.Info("gitdiff", "No changed files relative to "+cfg.GitDiff+".")
			return nil
		}
		log.DebugKV("gitdiff", "changed files", "", map[string]string{"count": fmt.Sprint(len(changed)), "ref": cfg.GitDiff})
		include = changed
	}

	set, r, err := cfgpkg.Bundle(cfg, roots, include)
	if err != nil {
		return err
	}
	b, err := bundle.New(set, r, log, m, term)
	if err != nil {
		return err
	}
	out, err := st.OpenOutput(output)
	if err != nil {
		return err
	}
	stats, err := b.Run(ctx, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.CodeInternal, "close output")
	}
	if err != nil {
		return err
	}
	log.DebugKV("bundle", "stats", "", map[string]string{
		"files":   fmt.Sprint(stats.Files),
		"skipped": fmt.Sprint(stats.Skipped),
		"bytes":   fmt.Sprint(stats.Bytes),
		"blake3":  stats.Digest,
	})
	if output != "" && output != "-" {
		abs, _ := filepath.Abs(output)
		term.Milestone(fmt.Sprintf("✔ Bundled %d files (~%d tokens) to %s", stats.Files, stats.Tokens, abs))
	}
	return nil
}

func runExtract(ctx context.Context, cfg cfgpkg.Config, input, format string, dryRun bool, st *stream.Streams, log *diag.Logger, m *diag.Metrics, term *diag.Terminal) error {
	set, w, err := cfgpkg.Extract(cfg, input, format, dryRun)
	if err != nil {
		return err
	}
	ex, err := extract.New(set, w, osfs.New("/"), log, m)
	if err != nil {
		return err
	}
	in, err := st.OpenInput(input)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	term.RunStart("extract", 1)
	res, err := ex.Run(ctx, in)
	if err != nil {
		term.RunFinish(false, err.Error())
		return err
	}
	if dryRun {
		for _, p := range res.Written {
			_, _ = fmt.Fprintf(stdout(st), "%s\n", p)
		}
	}
	term.RunFinish(true, fmt.Sprintf("写出 %d | 拒绝 %d | 无效 %d", len(res.Written), len(res.Rejected), res.Invalid))
	return nil
}

func stdout(st *stream.Streams) io.Writer {
	if st.Stdout == nil {
		return os.Stdout
	}
	return st.Stdout
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func genCorrID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}
