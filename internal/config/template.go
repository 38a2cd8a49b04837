package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/jmgilman/go/errors"
	"gopkg.in/yaml.v3"
)

// TemplateName: --init-config 生成的文件名。
const TemplateName = ".catport.yaml"

var templateComments = map[string]string{
	"format":          "输出格式：md | xml | json | yaml | multipart",
	"reply_format":    "期望回复的格式；为空时与 format 相同",
	"instruct":        "在 footer 中附带回复格式说明",
	"structure":       "在 header 中附带目录树",
	"extensions":      "仅打包这些扩展名，如 [go, md]",
	"ignore":          "追加到内置默认列表之后的忽略规则（gitignore 语法）",
	"no_ignore":       "关闭内置默认规则与 .gitignore",
	"budget":          "token 预算；0 表示不限",
	"priority":        "glob:score，先匹配者生效，高分先输出",
	"optimize":        "none | whitespace | comments | minify",
	"max_size":        "单文件上限，超出时以占位文本替代",
	"chars_per_token": "token 估算系数",
	"xml_mode":        "auto | cdata | escape",
	"extract_dir":     "提取模式的输出根目录",
	"safe_mode":       "拒绝越出根目录的路径",
}

// TemplateConfig 返回写入模板的配置：默认值加示例优先级。
func TemplateConfig() Config {
	cfg := Defaults()
	cfg.Ignore = []string{}
	cfg.Extensions = []string{}
	cfg.Priority = []string{"README*:10", "*.md:5"}
	return cfg
}

// RenderTemplate 渲染带注释的 YAML 模板。
func RenderTemplate() ([]byte, error) {
	var root yaml.Node
	if err := root.Encode(TemplateConfig()); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "encode template")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k := root.Content[i]
		if c, ok := templateComments[k.Value]; ok {
			k.HeadComment = c
		}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "render template")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "render template")
	}
	return buf.Bytes(), nil
}

// WriteTemplate 在 dir 写入模板并返回路径；文件已存在时拒绝覆盖。
func WriteTemplate(dir string) (string, error) {
	p := filepath.Join(dir, TemplateName)
	b, err := RenderTemplate()
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return p, invalid(nil, "%s already exists", p)
		}
		return p, errors.Wrapf(err, errors.CodeInternal, "create %s", p)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return p, errors.Wrapf(err, errors.CodeInternal, "write %s", p)
	}
	if err := f.Close(); err != nil {
		return p, errors.Wrapf(err, errors.CodeInternal, "close %s", p)
	}
	return p, nil
}
