package diag

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/jmgilman/go/errors"
)

const (
	runLogPrefix = "catport-"
	runLogExt    = ".log"
	// DefaultRunLogBytes 单个日志分片上限。
	DefaultRunLogBytes = 10 << 20
	// DefaultRunLogKeep 目录中保留的日志文件数。
	DefaultRunLogKeep = 20
)

// RunLog 把一次运行的 JSON 日志写入 <dir>/catport-<UTC 时间>-<corr_id>.log。
// 分片超过 maxBytes 时续写 .1.log、.2.log；首次打开时清理最旧的文件，目录中最多保留 keep 个。
type RunLog struct {
	fs       billy.Filesystem
	stem     string
	maxBytes int64
	keep     int

	mu   sync.Mutex
	f    billy.File
	size int64
	part int
}

// NewRunLog 不触碰磁盘；目录与文件在首次写入时创建。
func NewRunLog(dir, corrID string, maxBytes int64, keep int) *RunLog {
	return newRunLog(osfs.New(dir), corrID, maxBytes, keep, time.Now())
}

func newRunLog(fs billy.Filesystem, corrID string, maxBytes int64, keep int, now time.Time) *RunLog {
	if maxBytes <= 0 {
		maxBytes = DefaultRunLogBytes
	}
	if keep <= 0 {
		keep = DefaultRunLogKeep
	}
	if corrID == "" {
		corrID = "run"
	}
	stem := runLogPrefix + now.UTC().Format("20060102-150405") + "-" + corrID
	return &RunLog{fs: fs, stem: stem, maxBytes: maxBytes, keep: keep}
}

// Name 返回当前分片的文件名。
func (w *RunLog) Name() string {
	if w.part == 0 {
		return w.stem + runLogExt
	}
	return fmt.Sprintf("%s.%d%s", w.stem, w.part, runLogExt)
}

func (w *RunLog) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := int64(len(b) + 1)
	if w.f != nil && w.size > 0 && w.size+n > w.maxBytes {
		if err := w.f.Close(); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "close log part")
		}
		w.f = nil
		w.part++
	}
	if w.f == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	written, err := w.f.Write(append(b, '\n'))
	w.size += int64(written)
	return err
}

func (w *RunLog) open() error {
	f, err := w.fs.OpenFile(w.Name(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "open run log")
	}
	w.f, w.size = f, 0
	if w.part == 0 {
		return w.prune()
	}
	return nil
}

// prune 按文件名（即时间）删除最旧的日志，直到数量不超过 keep。
func (w *RunLog) prune() error {
	ents, err := w.fs.ReadDir(".")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "list log dir")
	}
	var logs []string
	for _, e := range ents {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, runLogPrefix) && strings.HasSuffix(name, runLogExt) {
			logs = append(logs, name)
		}
	}
	if len(logs) <= w.keep {
		return nil
	}
	sort.Strings(logs)
	for _, name := range logs[:len(logs)-w.keep] {
		if name == w.Name() {
			continue
		}
		if err := w.fs.Remove(name); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "remove old log")
		}
	}
	return nil
}

// Close 关闭当前分片。
func (w *RunLog) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
