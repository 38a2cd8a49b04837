package contract

import (
	"context"
)

// Entry: 扫描得到的单个条目。
// Rel 为相对扫描根的正斜杠路径，作为 bundle 内的 FileRecord.Path。
type Entry struct {
	Path  string
	Rel   string
	IsDir bool
}

// Reader: 输入源抽象（文件/目录）。
// 约束：
// 1) Scan 按稳定顺序回调条目，目录条目先于其子条目；
// 2) Rel 稳定且去平台差异化；
// 3) Load 只做最小文本化（二进制/超限占位），不做业务解析；
// 4) 不在内部起并发，并发由调用方控制。
type Reader interface {
	Scan(ctx context.Context, roots []string, yield func(Entry) error) error
	Load(ctx context.Context, e Entry) (string, error)
}
