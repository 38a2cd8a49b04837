package config

import (
	"encoding/json"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// 文件使用 snake_case；未知字段在解析期失败。
// 指针字段为三态：nil 表示未设置，false/0 具有语义。
type Config struct {
	Format      string `json:"format" yaml:"format"`
	ReplyFormat string `json:"reply_format" yaml:"reply_format"`
	Context     string `json:"context" yaml:"context"`
	Task        string `json:"task" yaml:"task"`

	Instruct  *bool `json:"instruct" yaml:"instruct"`
	Structure *bool `json:"structure" yaml:"structure"`
	ListDirs  *bool `json:"list_dirs" yaml:"list_dirs"`
	Skeleton  *bool `json:"skeleton" yaml:"skeleton"`

	Extensions []string `json:"extensions" yaml:"extensions"`
	// Ignore: 追加到内置默认列表之后的用户规则。
	Ignore   []string `json:"ignore" yaml:"ignore"`
	NoIgnore *bool    `json:"no_ignore" yaml:"no_ignore"`
	// GitDiff: 非空时只打包相对该引用变化的文件。
	GitDiff string `json:"git_diff" yaml:"git_diff"`

	Budget        *int     `json:"budget" yaml:"budget"`
	Priority      []string `json:"priority" yaml:"priority"`
	Optimize      string   `json:"optimize" yaml:"optimize"`
	MaxSize       *Size    `json:"max_size" yaml:"max_size"`
	CharsPerToken float64  `json:"chars_per_token" yaml:"chars_per_token"`
	Concurrency   int      `json:"concurrency" yaml:"concurrency"`
	XMLMode       string   `json:"xml_mode" yaml:"xml_mode"`

	ExtractDir string `json:"extract_dir" yaml:"extract_dir"`
	SafeMode   *bool  `json:"safe_mode" yaml:"safe_mode"`

	Logging Logging `json:"logging" yaml:"logging"`
}

// Logging: 日志等级与可选的轮转文件目录。
type Logging struct {
	Level string `json:"level" yaml:"level"`
	Dir   string `json:"dir" yaml:"dir"`
}

// Size: 字节数；文件中可写为整数或 "10MB" 形式的字符串。
type Size int64

func (s *Size) set(raw string) error {
	n, err := ParseSize(raw)
	if err != nil {
		return err
	}
	*s = Size(n)
	return nil
}

func (s *Size) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		return s.set(str)
	}
	return s.set(strings.TrimSpace(string(b)))
}

func (s *Size) UnmarshalYAML(n *yaml.Node) error {
	return s.set(n.Value)
}

func (s Size) MarshalYAML() (any, error) { return FormatSize(int64(s)), nil }

// FormatSize 以最大的整除单位输出。
func FormatSize(n int64) string {
	for _, u := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}} {
		if n >= u.mult && n%u.mult == 0 {
			return strconv.FormatInt(n/u.mult, 10) + u.suffix
		}
	}
	return strconv.FormatInt(n, 10)
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
