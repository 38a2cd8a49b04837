package jsondoc

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"

	"catport/pkg/contract"
)

// noiseFloor: 括号匹配片段短于此长度视为噪声。
const noiseFloor = 20

// Codec 实现 JSON 容器：{"meta": {...}, "files": [...]}。
type Codec struct{}

func New() *Codec { return &Codec{} }

var (
	_ contract.Codec  = (*Codec)(nil)
	_ contract.Joiner = (*Codec)(nil)
)

func (*Codec) Name() contract.Format { return contract.FormatJSON }

// Separator 由打包器插入到相邻文件之间。
func (*Codec) Separator() string { return ",\n" }

type metaDoc struct {
	Name    string `json:"name"`
	Context string `json:"context,omitempty"`
	Tree    string `json:"tree,omitempty"`
}

// marshal 编码为紧凑 JSON，不转义 HTML 字符。
func marshal(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		// 仅包含字符串字段，不会失败
		return "null"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func (*Codec) Header(m contract.Meta) string {
	return "{\n  \"meta\": " + marshal(metaDoc{Name: m.Name, Context: m.Context, Tree: m.Tree}) + ",\n  \"files\": [\n"
}

func (*Codec) File(rec contract.FileRecord, _ contract.FileOptions) string {
	return "    " + marshal(rec)
}

func (*Codec) Footer(m contract.Meta) string {
	var b strings.Builder
	b.WriteString("\n  ]")
	if m.Task != "" {
		b.WriteString(",\n  \"task\": " + marshal(m.Task))
	}
	if m.InstructionText != "" {
		b.WriteString(",\n  \"instruction\": " + marshal(m.InstructionText))
	}
	b.WriteString("\n}")
	return b.String()
}

var reFenced = regexp.MustCompile("(?:^|\\n)[ \\t]*```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?[ \\t]*```")

// Parse 依次尝试候选文本，首个通过结构校验者胜出；全部失败时返回空并告警一次。
func (*Codec) Parse(text string, d contract.Diagnostics) []contract.FileRecord {
	d = contract.OrDiscard(d)
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	for _, cand := range candidates(clean) {
		if recs, ok := validate(cand); ok {
			return recs
		}
	}
	d.Warn("Failed to extract a files array from the JSON")
	return nil
}

// candidates 生成候选：原文、规范化、围栏块、括号匹配片段（按长度降序）。
func candidates(clean string) []string {
	var out []string
	add := func(s string) {
		out = append(out, s)
		if n := Normalize(s); n != s {
			out = append(out, n)
		}
	}
	add(clean)
	if c := string(jsonc.ToJSON([]byte(clean))); c != clean {
		out = append(out, c)
	}
	for _, m := range reFenced.FindAllStringSubmatch(clean, -1) {
		if block := strings.TrimSpace(m[1]); block != "" {
			add(block)
		}
	}
	objs := extractBalanced(clean)
	sort.SliceStable(objs, func(i, j int) bool { return len(objs[i]) > len(objs[j]) })
	for _, o := range objs {
		if len(o) > noiseFloor {
			add(o)
		}
	}
	return out
}

// validate: 根为对象，files 为数组，每项含非空字符串 path 与字符串 content。
func validate(src string) ([]contract.FileRecord, bool) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(src), &root); err != nil || root == nil {
		return nil, false
	}
	raw, ok := root["files"]
	if !ok || !isKind(raw, '[') {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	recs := make([]contract.FileRecord, 0, len(items))
	for _, it := range items {
		var obj map[string]json.RawMessage
		if !isKind(it, '{') || json.Unmarshal(it, &obj) != nil {
			return nil, false
		}
		p, ok := stringField(obj, "path")
		if !ok || strings.TrimSpace(p) == "" {
			return nil, false
		}
		c, ok := stringField(obj, "content")
		if !ok {
			return nil, false
		}
		recs = append(recs, contract.FileRecord{Path: p, Content: c})
	}
	return recs, true
}

func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok || !isKind(raw, '"') {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isKind(raw json.RawMessage, first byte) bool {
	t := bytes.TrimLeft(raw, " \t\r\n")
	return len(t) > 0 && t[0] == first
}
