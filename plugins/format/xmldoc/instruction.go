package xmldoc

// Instruction 返回要求模型以 XML 元素回复的规则说明。
func (*Codec) Instruction() string {
	return "**CRITICAL:** Rules for every file (follow strictly and EXACTLY):\n" +
		"- Output valid XML.\n" +
		"- Use the <file path=\"...\"> tag for every file.\n" +
		"- Wrap content in CDATA sections: " + CDATAOpen + " ... " + CDATAClose + "\n" +
		"- Do NOT use Markdown code fences (```xml).\n" +
		"\n" +
		"## Examples\n" +
		"\n" +
		"## Correct:\n" +
		"\n" +
		"<file path=\"src/main.js\">" + CDATAOpen + "\n" +
		"console.log(\"hello\");\n" +
		CDATAClose + "</file>\n" +
		"\n" +
		"<file path=\"readme.txt\">" + CDATAOpen + "\n" +
		"Documentation\n" +
		CDATAClose + "</file>\n" +
		"\n" +
		"## Wrong:\n" +
		"\n" +
		"```xml\n" +
		"<file path=\"...\">...  ✗ (No Markdown fences)\n" +
		"```\n" +
		"\n" +
		"<file>                ✗ (Missing path attribute)\n" +
		"\n" +
		"Only output valid <file> elements with CDATA content."
}
