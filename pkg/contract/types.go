package contract

// Format: 容器格式标签（封闭集合，见 registry.Get）。
type Format string

const (
	FormatMarkdown  Format = "md"
	FormatXML       Format = "xml"
	FormatJSON      Format = "json"
	FormatYAML      Format = "yaml"
	FormatMultipart Format = "multipart"
)

// XMLMode: XML 内容编码模式。
type XMLMode string

const (
	XMLAuto   XMLMode = "auto"
	XMLCDATA  XMLMode = "cdata"
	XMLEscape XMLMode = "escape"
)

// FileRecord: 一个逻辑文件 (path, content)。
// 约束：Parse(encode(records)) 与 records 相等（content 末尾空白除外）。
type FileRecord struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Meta: 单次编码的头/尾信息；空串表示缺省。
// Boundary 为本次编码生成的 multipart 分隔符，仅 multipart 使用。
type Meta struct {
	Name            string
	Tree            string
	Context         string
	Task            string
	InstructionText string
	Boundary        string
}

// FileOptions: 单次 File 调用的选项。
type FileOptions struct {
	XMLMode  XMLMode
	Boundary string
}

// Options 从 Meta 派生同一次编码的 FileOptions。
func (m Meta) Options(mode XMLMode) FileOptions {
	return FileOptions{XMLMode: mode, Boundary: m.Boundary}
}
