package diag

import (
	"context"
	stderrors "errors"
	"io/fs"
	"time"

	"github.com/jmgilman/go/errors"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeCancel    Code = "cancel"
	CodeBudget    Code = "budget"
	CodeInvariant Code = "invariant"
	CodeSecurity  Code = "security"
	CodeConfig    Code = "config"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类：先看取消与文件系统错误，再看平台错误码。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	var perr *fs.PathError
	if stderrors.As(err, &perr) {
		return CodeIO
	}
	switch errors.GetCode(err) {
	case errors.CodeForbidden, errors.CodeUnauthorized:
		return CodeSecurity
	case errors.CodeRateLimit:
		return CodeBudget
	case errors.CodeInvalidConfig, errors.CodeNotFound:
		return CodeConfig
	case errors.CodeInvalidInput, errors.CodeSchemaFailed:
		return CodeInvariant
	case errors.CodeInternal:
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串（用于结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
