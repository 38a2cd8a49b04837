package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmgilman/go/errors"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"catport/internal/bundle"
	"catport/pkg/contract"
)

// FileNames: 工作目录中按顺序查找的配置文件名。
var FileNames = []string{".catport.yaml", ".catport.yml", ".catport.json"}

// EnvPrefix: 环境变量覆盖的前缀。
const EnvPrefix = "CATPORT_"

// DefaultMaxSize: 单文件读取上限。
const DefaultMaxSize = 10 << 20

// Defaults 返回带有默认值的 Config。
func Defaults() Config {
	ms := Size(DefaultMaxSize)
	return Config{
		Format:        string(contract.FormatMarkdown),
		Instruct:      boolPtr(true),
		Structure:     boolPtr(true),
		ListDirs:      boolPtr(false),
		Skeleton:      boolPtr(false),
		NoIgnore:      boolPtr(false),
		Budget:        intPtr(0),
		Optimize:      bundle.OptimizeNone,
		MaxSize:       &ms,
		CharsPerToken: bundle.DefaultCharsPerToken,
		Concurrency:   bundle.DefaultConcurrency,
		XMLMode:       string(contract.XMLAuto),
		ExtractDir:    ".",
		SafeMode:      boolPtr(true),
		Logging:       Logging{Level: "warn"},
	}
}

func invalid(err error, format string, args ...any) error {
	if err != nil {
		args = append(args, err)
		format += ": %v"
	}
	return errors.Wrapf(contract.ErrInvalidConfig, errors.CodeInvalidConfig, format, args...)
}

// Find 返回 dir 中第一个存在的配置文件；没有时返回空串。
func Find(dir string) string {
	for _, n := range FileNames {
		p := filepath.Join(dir, n)
		if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// Load 从文件路径或原始字节解析 Config（严格拒绝未知字段）。
// 按扩展名选择 JSON（允许注释与尾逗号）或 YAML；raw 非空时 path 只用于判断格式。
func Load(path string, raw []byte) (Config, error) {
	var cfg Config
	if len(raw) == 0 {
		if path == "" {
			return cfg, invalid(nil, "no config source provided")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, errors.CodeInvalidConfig, "read config %s", path)
		}
		raw = b
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(raw)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
			return cfg, invalid(err, "parse %s", displayName(path))
		}
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return cfg, invalid(err, "parse %s", displayName(path))
	}
	return cfg, nil
}

func displayName(path string) string {
	if path == "" {
		return "config"
	}
	return path
}

// Merge 按优先级合并（后者覆盖前者）。
// 标量非零值覆盖；列表整体替换；指针非 nil 覆盖。
func Merge(base, over Config) Config {
	out := base
	setStr(&out.Format, over.Format)
	setStr(&out.ReplyFormat, over.ReplyFormat)
	setStr(&out.Context, over.Context)
	setStr(&out.Task, over.Task)
	setStr(&out.GitDiff, over.GitDiff)
	setStr(&out.Optimize, over.Optimize)
	setStr(&out.XMLMode, over.XMLMode)
	setStr(&out.ExtractDir, over.ExtractDir)
	setStr(&out.Logging.Level, over.Logging.Level)
	setStr(&out.Logging.Dir, over.Logging.Dir)

	for _, p := range []struct{ dst, src **bool }{
		{&out.Instruct, &over.Instruct},
		{&out.Structure, &over.Structure},
		{&out.ListDirs, &over.ListDirs},
		{&out.Skeleton, &over.Skeleton},
		{&out.NoIgnore, &over.NoIgnore},
		{&out.SafeMode, &over.SafeMode},
	} {
		if *p.src != nil {
			v := **p.src
			*p.dst = &v
		}
	}
	if over.Budget != nil {
		out.Budget = intPtr(*over.Budget)
	}
	if over.MaxSize != nil {
		v := *over.MaxSize
		out.MaxSize = &v
	}
	if over.CharsPerToken != 0 {
		out.CharsPerToken = over.CharsPerToken
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if len(over.Extensions) > 0 {
		out.Extensions = cloneStrings(over.Extensions)
	}
	if len(over.Ignore) > 0 {
		out.Ignore = cloneStrings(over.Ignore)
	}
	if len(over.Priority) > 0 {
		out.Priority = cloneStrings(over.Priority)
	}
	return out
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 前缀 CATPORT_；集合之外的键忽略；数值非法时返回错误。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			continue
		}
		switch key {
		case "FORMAT":
			over.Format = val
		case "REPLY_FORMAT":
			over.ReplyFormat = val
		case "XML_MODE":
			over.XMLMode = val
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "IGNORE":
			over.Ignore = splitComma(val)
		case "EXTENSIONS":
			over.Extensions = splitComma(val)
		case "BUDGET":
			v, err := atoi(val)
			if err != nil {
				return over, invalid(err, "%s%s", EnvPrefix, key)
			}
			over.Budget = &v
		case "CONCURRENCY":
			v, err := atoi(val)
			if err != nil {
				return over, invalid(err, "%s%s", EnvPrefix, key)
			}
			over.Concurrency = v
		case "MAX_SIZE":
			n, err := ParseSize(val)
			if err != nil {
				return over, err
			}
			s := Size(n)
			over.MaxSize = &s
		case "CHARS_PER_TOKEN":
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return over, invalid(err, "%s%s", EnvPrefix, key)
			}
			over.CharsPerToken = v
		case "SAFE_MODE":
			v, err := strconv.ParseBool(val)
			if err != nil {
				return over, invalid(err, "%s%s", EnvPrefix, key)
			}
			over.SafeMode = &v
		}
	}
	return over, nil
}

// ParseSize 解析 "512"、"10KB"、"1.5MB"、"1GB"（不区分大小写，1024 进制）。
func ParseSize(s string) (int64, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(t, u.suffix) {
			t = strings.TrimSpace(strings.TrimSuffix(t, u.suffix))
			mult = u.mult
			break
		}
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, invalid(nil, "invalid size %q", s)
	}
	return int64(math.Floor(f * float64(mult))), nil
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoi(s string) (int, error) { return strconv.Atoi(strings.TrimSpace(s)) }

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
