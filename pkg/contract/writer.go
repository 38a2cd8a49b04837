package contract

import (
	"context"
	"io"
)

// Writer: 将提取结果以流式方式持久化到目标介质。
// 约束：
//  1. dest 为已通过路径守卫解析的目标路径，Writer 不再做越界判断；
//  2. 自动创建父目录，覆盖已存在文件；
//  3. ctx 取消/超时需尽快返回；
//  4. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, dest string, r io.Reader) error
}
