package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"catport/pkg/contract"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	Silent
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	case Silent:
		return "silent"
	default:
		return "warn"
	}
}

// ParseLevel 解析级别名；未知值回退 warn。
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "error":
		return Error
	case "silent":
		return Silent
	default:
		return Warn
	}
}

// ValidLevel 报告 s 是否为已知级别名（空串视为默认）。
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "debug", "info", "warn", "error", "silent":
		return true
	}
	return false
}

// Logger 为最小结构化日志器。
// 控制台为终端时输出 "[WARN] msg" 形式的可读行，否则输出单行 JSON；
// 可选地同时将 JSON 行写入轮转文件。
type Logger struct {
	corrID  string
	level   Level
	console io.Writer
	tty     bool
	sink    *RunLog
	mu      sync.Mutex
}

var _ contract.Diagnostics = (*Logger)(nil)

// NewLogger 以 level 初始化，写入 console（nil 为 stderr）；logDir 非空时同时写入本次运行的日志文件。
func NewLogger(corrID, level string, console io.Writer, logDir string) *Logger {
	if console == nil {
		console = os.Stderr
	}
	l := &Logger{corrID: corrID, level: ParseLevel(level), console: console, tty: IsTerminal(console)}
	if strings.TrimSpace(logDir) != "" {
		l.sink = NewRunLog(logDir, corrID, DefaultRunLogBytes, DefaultRunLogKeep)
	}
	return l
}

// Discard 返回不输出任何内容的 Logger。
func Discard() *Logger {
	return &Logger{level: Silent, console: io.Discard}
}

// IsTerminal 报告 w 是否为交互式终端；CI 环境视为非终端。
func IsTerminal(w io.Writer) bool {
	if os.Getenv("CI") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Level 返回当前级别。
func (l *Logger) Level() Level { return l.level }

// Enabled 报告 lv 级别是否会输出。
func (l *Logger) Enabled(lv Level) bool { return l != nil && l.level != Silent && lv >= l.level }

// Event 为标准事件结构。
type Event struct {
	Level  string            `json:"level"`
	TS     string            `json:"ts"`
	CorrID string            `json:"corr_id"`
	Comp   string            `json:"comp"`
	Stage  string            `json:"stage"` // start|finish|error|event
	Code   string            `json:"code,omitempty"`
	DurMS  int64             `json:"dur_ms,omitempty"`
	Count  int64             `json:"count,omitempty"`
	Path   string            `json:"path,omitempty"`
	Msg    string            `json:"msg"`
	KV     map[string]string `json:"kv,omitempty"`
}

// log 以最小开销写出事件，遵循级别。
func (l *Logger) log(lv Level, ev Event) {
	if !l.Enabled(lv) {
		return
	}
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.CorrID = l.corrID
	b, _ := json.Marshal(ev)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tty {
		_, _ = io.WriteString(l.console, consoleLine(ev))
	} else {
		_, _ = l.console.Write(append(b, '\n'))
	}
	if l.sink != nil {
		if err := l.sink.WriteLine(b); err != nil {
			fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		}
	}
}

// consoleLine: "[LEVEL] msg (path) k=v"
func consoleLine(ev Event) string {
	var b strings.Builder
	b.WriteString("[" + strings.ToUpper(ev.Level) + "] " + ev.Msg)
	if ev.Path != "" {
		b.WriteString(" (" + ev.Path + ")")
	}
	if len(ev.KV) > 0 {
		keys := make([]string, 0, len(ev.KV))
		for k := range ev.KV {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(" " + k + "=" + ev.KV[k])
		}
	}
	b.WriteByte('\n')
	return b.String()
}

// Warn 实现 contract.Diagnostics：编解码告警。
func (l *Logger) Warn(msg string) { l.WarnIn("codec", msg) }

// WarnIn 记录指定组件的告警。
func (l *Logger) WarnIn(comp, msg string) {
	l.log(Warn, Event{Comp: comp, Stage: "event", Msg: msg})
}

// WarnPath 记录与某个路径相关的告警。
func (l *Logger) WarnPath(comp, code, msg, path string) {
	l.log(Warn, Event{Comp: comp, Stage: "event", Code: code, Msg: msg, Path: path})
}

// Info 记录信息事件。
func (l *Logger) Info(comp, msg string) {
	l.log(Info, Event{Comp: comp, Stage: "event", Msg: msg})
}

// DebugKV 输出调试级别事件（仅在 level=debug 时生效）。
func (l *Logger) DebugKV(comp, msg, path string, kv map[string]string) {
	l.log(Debug, Event{Comp: comp, Stage: "event", Path: path, Msg: msg, KV: kv})
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 path 的 start。
func (l *Logger) StartWith(comp, msg, path string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Path: path, Msg: msg})
	return &Timer{l: l, comp: comp, path: path, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWith(comp, code, msg, durSince, "")
}

// ErrorWith 支持 path。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, path string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, Path: path})
}

// Close 关闭文件输出（若有）。
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l    *Logger
	comp string
	path string
	t0   time.Time
}

// Since 返回起点，供 Error 计算耗时。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, Path: t.path, Msg: msg})
}
