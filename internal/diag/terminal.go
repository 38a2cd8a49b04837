package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Terminal: 终端状态提示（非日志）。
// - 输出到提供的 io.Writer（默认 stderr）。
// - TTY: 单行 \r 覆盖；非 TTY: 关键节点分行打印。
// - 并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool

	action      string
	concurrency int
	runStart    time.Time

	// 输出控制
	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

// NewTerminal 构造终端提示器。
// enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	return &Terminal{w: w, enabled: enabled, isTTY: IsTerminal(w)}
}

// RunStart: 记录运行上下文（动作与并发）。
func (t *Terminal) RunStart(action string, concurrency int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.action = action
	t.concurrency = concurrency
	t.runStart = time.Now()
	if !t.isTTY {
		t.println(fmt.Sprintf("[run] %s | 并发=%d", safe(action), concurrency))
	}
}

// Progress: 周期性进度（仅 TTY，≥100ms 节流）。
func (t *Terminal) Progress(done, total int, path string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || !t.isTTY {
		return
	}
	now := time.Now()
	if now.Sub(t.lastFlush) < 100*time.Millisecond {
		return
	}
	t.lastFlush = now
	line := fmt.Sprintf("[%s] %d/%d | %s | 用时 %s",
		safe(t.action), done, total, shortenBase(path, 48), formatSince(t.runStart))
	t.printInline(line)
}

// Milestone: 关键节点（两种模式都换行打印）。
func (t *Terminal) Milestone(msg string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.clearInline()
	t.println(safe(msg))
}

// RunFinish: 结束总览。
func (t *Terminal) RunFinish(ok bool, summary string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	tag := "ok"
	if !ok {
		tag = "fail"
	}
	t.clearInline()
	t.println(fmt.Sprintf("[%s] %s | 总用时 %s", tag, safe(summary), formatSince(t.runStart)))
}

// 内部输出工具
func (t *Terminal) println(s string) {
	if !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		// 写失败即禁用
		t.enabled = false
	}
	t.lastLen = 0
}

func (t *Terminal) clearInline() {
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
		_, _ = io.WriteString(t.w, "\r")
	}
}

func (t *Terminal) printInline(s string) {
	if !t.enabled {
		return
	}
	// 若新行比旧行短，填充空格覆盖
	pad := 0
	if l := visLen(s); t.lastLen > l {
		pad = t.lastLen - l
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	if pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = visLen(s)
}

// shortenBase: 取基名并按可见宽度截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	if visLen(base) <= max {
		return base
	}
	// 预留 1 个字符给省略号
	cut := max - 1
	if cut < 1 {
		cut = 1
	}
	rs := []rune(base)
	return string(rs[:cut]) + "…"
}

func visLen(s string) int { return len([]rune(s)) }

func safe(s string) string {
	// 避免换行等控制字符污染终端
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

func formatSince(t0 time.Time) string {
	if t0.IsZero() {
		return formatDur(0)
	}
	return formatDur(time.Since(t0))
}

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms <= 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	// 秒，保留 1 位小数
	s := float64(d.Milliseconds()) / 1000.0
	return fmt.Sprintf("%.1fs", s)
}
