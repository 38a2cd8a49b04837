package contract

import (
	"github.com/jmgilman/go/errors"
)

// 最小错误分类（平台错误，带 code，可 errors.Is 比较）。
var (
	// ErrEmptyInput: 提取输入为空。
	ErrEmptyInput = errors.New(errors.CodeInvalidInput, "empty input")
	// ErrPathInvalid: 路径无法映射（空路径、卷名等）。
	ErrPathInvalid = errors.New(errors.CodeInvalidInput, "path invalid")
	// ErrPathTraversal: 绝对路径或 '..' 逃逸目标根目录。
	ErrPathTraversal = errors.New(errors.CodeForbidden, "path traversal")
	// ErrBudgetExceeded: token 预算不足。
	ErrBudgetExceeded = errors.New(errors.CodeRateLimit, "budget exceeded")
	// ErrInvalidConfig: 配置/参数非法。
	ErrInvalidConfig = errors.New(errors.CodeInvalidConfig, "invalid configuration")
	// ErrNotRepository: 当前目录不在 git 仓库内。
	ErrNotRepository = errors.New(errors.CodeNotFound, "not a git repository")
)
