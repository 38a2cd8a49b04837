package contract

import "sync"

// Diagnostics: 解析期告警的只追加接收端；实现不得 panic。
type Diagnostics interface {
	Warn(msg string)
}

type discard struct{}

func (discard) Warn(string) {}

// Discard 为 no-op 接收端。
var Discard Diagnostics = discard{}

// Collector 收集告警文本（测试与 dry-run 报告使用）。
type Collector struct {
	mu   sync.Mutex
	msgs []string
}

// Warn 追加一条告警。
func (c *Collector) Warn(msg string) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

// Messages 返回已收集告警的副本。
func (c *Collector) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// OrDiscard 在 d 为 nil 时返回 Discard。
func OrDiscard(d Diagnostics) Diagnostics {
	if d == nil {
		return Discard
	}
	return d
}
