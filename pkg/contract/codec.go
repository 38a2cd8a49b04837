package contract

// Codec: 单一容器格式的编解码契约。
// 约束：
//  1. 纯函数、同步、无跨调用状态；
//  2. Header/File/Footer 的拼接即完整 bundle，调用方负责顺序；
//  3. Parse 永不失败：格式错误以 Diagnostics 告警并跳过，返回可恢复的记录。
type Codec interface {
	Name() Format
	Header(m Meta) string
	File(rec FileRecord, opts FileOptions) string
	Footer(m Meta) string
	Parse(text string, d Diagnostics) []FileRecord
	Instruction() string
}

// Joiner: 可选扩展。实现者要求在相邻 File 块之间插入分隔符（例如 JSON 的逗号）。
type Joiner interface {
	Separator() string
}

// Separator 返回 c 在相邻文件块之间要求的分隔符（无则为空串）。
func Separator(c Codec) string {
	if j, ok := c.(Joiner); ok {
		return j.Separator()
	}
	return ""
}

// Instructor: 可选扩展。指令文本需要引用本次编码的分隔符（multipart）。
type Instructor interface {
	InstructionFor(boundary string) string
}

// Instruction 返回 c 的指令文本；实现 Instructor 且 boundary 非空时代入 boundary。
func Instruction(c Codec, boundary string) string {
	if in, ok := c.(Instructor); ok && boundary != "" {
		return in.InstructionFor(boundary)
	}
	return c.Instruction()
}
