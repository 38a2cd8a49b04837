package diag

import (
	"strconv"
	"sync/atomic"
)

// Metrics: 进程内计数器，运行结束时随 finish 事件输出。
// 并发安全；零值可用。
type Metrics struct {
	bundled   atomic.Int64
	skipped   atomic.Int64
	extracted atomic.Int64
	rejected  atomic.Int64
}

// IncBundled 累加已写入 bundle 的文件数。
func (m *Metrics) IncBundled() { m.bundled.Add(1) }

// IncSkipped 累加因预算或读取失败被跳过的文件数。
func (m *Metrics) IncSkipped() { m.skipped.Add(1) }

// IncExtracted 累加已提取（或 dry-run 模拟写入）的文件数。
func (m *Metrics) IncExtracted() { m.extracted.Add(1) }

// IncRejected 累加被路径守卫拒绝的记录数。
func (m *Metrics) IncRejected() { m.rejected.Add(1) }

// Snapshot 以 KV 形式返回当前计数。
func (m *Metrics) Snapshot() map[string]string {
	return map[string]string{
		"files_bundled":   itoa(m.bundled.Load()),
		"files_skipped":   itoa(m.skipped.Load()),
		"files_extracted": itoa(m.extracted.Load()),
		"files_rejected":  itoa(m.rejected.Load()),
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
