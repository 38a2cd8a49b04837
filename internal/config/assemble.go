package config

import (
	"encoding/json"
	"strings"

	"github.com/jmgilman/go/errors"

	"catport/internal/bundle"
	"catport/internal/diag"
	"catport/internal/extract"
	"catport/internal/gitdiff"
	"catport/pkg/contract"
	"catport/pkg/registry"
	rfs "catport/plugins/reader/filesystem"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if !registry.Known(cfg.Format) {
		return invalid(nil, "unknown format %q", cfg.Format)
	}
	if cfg.ReplyFormat != "" && !registry.Known(cfg.ReplyFormat) {
		return invalid(nil, "unknown reply_format %q", cfg.ReplyFormat)
	}
	switch contract.XMLMode(cfg.XMLMode) {
	case "", contract.XMLAuto, contract.XMLCDATA, contract.XMLEscape:
	default:
		return invalid(nil, "unknown xml_mode %q", cfg.XMLMode)
	}
	if !bundle.ValidOptimize(cfg.Optimize) {
		return invalid(nil, "unknown optimize mode %q", cfg.Optimize)
	}
	if cfg.Concurrency < 1 {
		return invalid(nil, "concurrency must be >= 1")
	}
	if cfg.CharsPerToken <= 0 {
		return invalid(nil, "chars_per_token must be > 0")
	}
	if cfg.Budget != nil && *cfg.Budget < 0 {
		return invalid(nil, "budget must be >= 0")
	}
	if cfg.MaxSize != nil && *cfg.MaxSize < 0 {
		return invalid(nil, "max_size must be >= 0")
	}
	for _, p := range cfg.Priority {
		if _, err := bundle.ParseRule(p); err != nil {
			return err
		}
	}
	if !diag.ValidLevel(cfg.Logging.Level) {
		return invalid(nil, "unknown logging.level %q", cfg.Logging.Level)
	}
	if cfg.GitDiff != "" && !gitdiff.ValidRef(cfg.GitDiff) {
		return invalid(nil, "invalid git_diff reference %q", cfg.GitDiff)
	}
	if strings.TrimSpace(cfg.ExtractDir) == "" {
		return invalid(nil, "extract_dir cannot be empty")
	}
	return nil
}

// IgnoreList 返回扫描器使用的完整忽略列表：默认规则（除非 no_ignore）加用户规则。
func IgnoreList(cfg Config) []string {
	var out []string
	if !deref(cfg.NoIgnore, false) {
		out = append(out, rfs.DefaultIgnores...)
	}
	return append(out, cfg.Ignore...)
}

// Bundle 构造打包 Settings 与扫描器。include 非空时只扫描这些路径（git 变更集）。
// 扫描器经注册表工厂以严格 JSON Options 构造。
func Bundle(cfg Config, roots, include []string) (bundle.Settings, contract.Reader, error) {
	if err := Validate(cfg); err != nil {
		return bundle.Settings{}, nil, err
	}
	rules := make([]bundle.Rule, 0, len(cfg.Priority))
	for _, p := range cfg.Priority {
		r, _ := bundle.ParseRule(p)
		rules = append(rules, r)
	}

	opts := rfs.Options{
		Ignore:     IgnoreList(cfg),
		NoIgnore:   deref(cfg.NoIgnore, false),
		Extensions: cloneStrings(cfg.Extensions),
		MaxSize:    int64(deref(cfg.MaxSize, Size(DefaultMaxSize))),
		Include:    cloneStrings(include),
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return bundle.Settings{}, nil, errors.Wrap(err, errors.CodeInternal, "encode reader options")
	}
	r, err := registry.Reader["fs"](raw)
	if err != nil {
		return bundle.Settings{}, nil, err
	}

	set := bundle.Settings{
		Roots:         cloneStrings(roots),
		Format:        cfg.Format,
		ReplyFormat:   cfg.ReplyFormat,
		Context:       cfg.Context,
		Task:          cfg.Task,
		Instruct:      deref(cfg.Instruct, true),
		Structure:     deref(cfg.Structure, true),
		ListDirs:      deref(cfg.ListDirs, false),
		Skeleton:      deref(cfg.Skeleton, false),
		Budget:        deref(cfg.Budget, 0),
		CharsPerToken: cfg.CharsPerToken,
		Priority:      rules,
		Optimize:      cfg.Optimize,
		XMLMode:       contract.XMLMode(cfg.XMLMode),
		Concurrency:   cfg.Concurrency,
	}
	return set, r, nil
}

// Extract 构造提取 Settings 与写出端；dryRun 时写入内存文件系统。
// format 非空时强制使用该格式解析。
func Extract(cfg Config, input, format string, dryRun bool) (extract.Settings, contract.Writer, error) {
	if err := Validate(cfg); err != nil {
		return extract.Settings{}, nil, err
	}
	if format != "" && !registry.Known(format) {
		return extract.Settings{}, nil, invalid(nil, "unknown format %q", format)
	}
	name := "fs"
	if dryRun {
		name = "mem"
	}
	w, err := registry.Writer[name](json.RawMessage(`{"atomic": true}`))
	if err != nil {
		return extract.Settings{}, nil, err
	}
	set := extract.Settings{
		Input:  input,
		Root:   cfg.ExtractDir,
		Safe:   deref(cfg.SafeMode, true),
		Format: format,
		DryRun: dryRun,
	}
	return set, w, nil
}
