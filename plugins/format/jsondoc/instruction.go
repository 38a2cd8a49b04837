package jsondoc

// Instruction 返回要求模型以 JSON 对象回复的规则说明。
func (*Codec) Instruction() string {
	return `**CRITICAL:** Rules for every file (follow strictly and EXACTLY):
- Return valid JSON.
- The root MUST be an object containing a "files" array.
- Each item in the array MUST have "path" and "content" fields.
- Properly escape strings (e.g., quotes, newlines).

## Expected Schema

` + "```json" + `
{
  "type": "object",
  "required": ["files"],
  "properties": {
    "files": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "content"],
        "properties": {
          "path": { "type": "string", "description": "Relative file path" },
          "content": { "type": "string", "description": "File content" }
        }
      }
    }
  }
}
` + "```" + `

## Examples

## Correct:

{
  "files": [
    {
      "path": "src/main.js",
      "content": "console.log(\"Hello\");"
    },
    {
      "path": "config.json",
      "content": "{\n  \"debug\": true\n}"
    }
  ]
}

## Wrong:

` + "```json" + `
[ { "path": ... } ]   ✗ (Root must be object with "files" key)
` + "```" + `

{ "path": ... }       ✗ (Must be inside "files" array)

Only output valid JSON. No explanations, no markdown, no extra text.`
}
