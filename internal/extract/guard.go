package extract

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/jmgilman/go/errors"

	"catport/pkg/contract"
)

// Guard 将模型输出中恢复的路径映射到目标根目录之下。
// 安全模式下拒绝绝对路径、卷名与 '..' 逃逸，并通过 vfs 解析符号链接，
// 使根内预置的链接无法把写入重定向到根外。
type Guard struct {
	root string
	safe bool
	vfs  securejoin.VFS
}

// NewGuard 以 root 为目标根创建守卫；vfs 为 nil 时只做词法检查。
func NewGuard(root string, safe bool, vfs securejoin.VFS) (*Guard, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInvalidInput, "resolve extract root %s", root)
	}
	return &Guard{root: abs, safe: safe, vfs: vfs}, nil
}

// Root 返回绝对目标根。
func (g *Guard) Root() string { return g.root }

var reDrive = regexp.MustCompile(`^[A-Za-z]:(?:/|$)`)

// Sanitize 去除 NUL 与两端的引号/反引号，统一为正斜杠并做词法清理。
// 结果为空串表示没有可用路径。
func Sanitize(raw string) string {
	p := strings.ReplaceAll(raw, "\x00", "")
	p = strings.TrimSpace(p)
	p = strings.Trim(p, "'\"`")
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.TrimSpace(p) == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

// Resolve 返回 raw 对应的目标绝对路径。
// 空路径返回 ErrPathInvalid；越界返回 ErrPathTraversal（仅安全模式）。
func (g *Guard) Resolve(raw string) (string, error) {
	p := Sanitize(raw)
	if p == "" {
		return "", errors.Wrapf(contract.ErrPathInvalid, errors.CodeInvalidInput, "empty path %q", raw)
	}
	if !g.safe {
		return filepath.Join(g.root, filepath.FromSlash(p)), nil
	}

	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) || filepath.VolumeName(p) != "" || reDrive.MatchString(p) {
		return "", traversal(raw)
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", traversal(raw)
	}

	dest := filepath.Join(g.root, filepath.FromSlash(p))
	rel, err := filepath.Rel(g.root, dest)
	if err != nil || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", traversal(raw)
	}
	if g.vfs == nil {
		return dest, nil
	}
	// 符号链接按根内语义解析，结果恒在根之下
	resolved, err := securejoin.SecureJoinVFS(g.root, filepath.FromSlash(p), g.vfs)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeInternal, "resolve %s", raw)
	}
	return resolved, nil
}

func traversal(raw string) error {
	return errors.Wrapf(contract.ErrPathTraversal, errors.CodeForbidden, "path traversal: %s", raw)
}
