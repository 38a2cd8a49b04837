package markdown

// Instruction 返回要求模型以 Markdown 容器回复的规则说明。
func (*Codec) Instruction() string {
	return "**CRITICAL:** Rules for every file (follow strictly and EXACTLY):\n" +
		"- Output only blocks starting with \"" + FileMarker + " <path>\" followed by a fenced code block.\n" +
		"- Code block with language tag must follow immediately. Nothing else.\n" +
		"- No bold, no \"(updated / fixed)\", no explanations, no extra text.\n" +
		"\n" +
		"## Examples\n" +
		"\n" +
		"## Correct:\n" +
		"\n" +
		FileMarker + " src/components/Button.tsx\n" +
		"```tsx\n" +
		"import React from 'react';\n" +
		"export const Button = () => <button>Click</button>;\n" +
		"```\n" +
		"\n" +
		FileMarker + " utils/helpers.ts\n" +
		"```ts\n" +
		"export const format = (n: number) => n.toFixed(2);\n" +
		"```\n" +
		"\n" +
		"## Wrong:\n" +
		"\n" +
		"```\n" +
		"**src/app.ts**          ✗\n" +
		"File: config.json       ✗\n" +
		"Here is the update:     ✗\n" +
		"```\n" +
		"\n" +
		"Only output \"" + FileMarker + " <path>\" followed by a fenced code block. Nothing else."
}
