package contract

import (
	"path"
	"regexp"
	"strings"
)

// NormalizePath 规范化路径为跨平台稳定的正斜杠形式。
// 规则：
// - 反斜杠统一转为正斜杠
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizePath(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

var (
	reLeadNoise   = regexp.MustCompile(`^[#*>\s]+`)
	reLabelPrefix = regexp.MustCompile(`(?i)^(?:File|Path):\s*`)
	reTrailPunct  = regexp.MustCompile("[*`\"':]+$")
	reEdgeQuotes  = regexp.MustCompile("^[*`\"']+|[*`\"']+$")
)

// CleanPath 去除模型输出中常见的路径装饰：标题符号、"File:" 前缀、粗体/引号/反引号、尾随冒号。
// 返回空串表示无可用路径。
func CleanPath(s string) string {
	s = reLeadNoise.ReplaceAllString(s, "")
	s = reLabelPrefix.ReplaceAllString(s, "")
	s = reTrailPunct.ReplaceAllString(s, "")
	s = reEdgeQuotes.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
