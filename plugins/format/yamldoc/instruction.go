package yamldoc

// Instruction 返回要求模型以 YAML 列表回复的规则说明。
func (*Codec) Instruction() string {
	return `**CRITICAL:** Rules for every file (follow strictly and EXACTLY):
- Return valid YAML.
- The root element MUST be "files", containing a list.
- Each item MUST have "path" and "content" keys.
- Use block scalars (|) for content to preserve indentation and newlines exactly.

## Examples

## Correct:

files:
  - path: "src/app.js"
    content: |
      const x = 1;
      console.log(x);

  - path: "README.md"
    content: |
      # Title
      Description here.

## Wrong:

- path: "src/app.js"  ✗ (Missing root "files" key)

files: [ ... ]        ✗ (Use block style for content readability)

Only output valid YAML with a "files" root key.`
}
