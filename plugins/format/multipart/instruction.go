package multipart

import "catport/pkg/contract"

// Instruction 使用遗留前缀作为分隔符；打包时应使用 InstructionFor 代入本次分隔符。
func (c *Codec) Instruction() string { return c.InstructionFor(contract.BoundaryPrefix) }

// InstructionFor 返回引用分隔符 b 的规则说明。
func (*Codec) InstructionFor(b string) string {
	return "**CRITICAL:** Rules for every file (follow strictly and EXACTLY):\n" +
		"- Separator: " + b + "\n" +
		"- Each section MUST start with the separator.\n" +
		"- Immediately follow with \"Content-Disposition: attachment; filename=\\\"path\\\"\".\n" +
		"- Leave one empty line before the content.\n" +
		"\n" +
		"## Examples\n" +
		"\n" +
		"## Correct:\n" +
		"\n" +
		b + "\n" +
		"Content-Disposition: attachment; filename=\"src/index.js\"\n" +
		"\n" +
		"console.log(\"start\");\n" +
		"\n" +
		b + "\n" +
		"Content-Disposition: attachment; filename=\"README.md\"\n" +
		"\n" +
		"# Title\n" +
		"\n" +
		b + "\n" +
		"\n" +
		"## Wrong:\n" +
		"\n" +
		b + "\n" +
		"File: src/index.js    ✗ (Use Content-Disposition header)\n" +
		"\n" +
		b + "\n" +
		"(no headers)          ✗\n" +
		"\n" +
		"Only output valid multipart sections with correct headers."
}
