package bundle

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jmgilman/go/errors"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"catport/internal/diag"
	"catport/pkg/contract"
	"catport/pkg/registry"
)

// 打包流程：
// - 扫描得到条目并按优先级稳定排序（分数降序，路径升序）；
// - 以窗口为单位并发读取与变换，窗口内按序编码输出；
// - 预算按块计入，超出的块跳过，后续更小的块仍可填充；
// - 头尾本身超出预算时降级为骨架输出。

const (
	DefaultConcurrency   = 32
	DefaultCharsPerToken = 4.2
)

// Settings 打包运行期配置。
type Settings struct {
	Roots       []string
	Format      string
	ReplyFormat string
	Context     string
	Task        string
	// Instruct: 在尾部附加回复格式指令。
	Instruct bool
	// Structure: 在头部输出目录树。
	Structure bool
	ListDirs  bool
	Skeleton  bool
	// Budget: token 上限；0 表示不限。
	Budget        int
	CharsPerToken float64
	Priority      []Rule
	Optimize      string
	XMLMode       contract.XMLMode
	Concurrency   int
}

// Stats 汇总一次打包。
type Stats struct {
	Files   int
	Skipped int
	Tokens  int
	Bytes   int64
	// Digest: 输出内容的 blake3 十六进制摘要。
	Digest string
}

// Bundler 驱动编码：Reader → 打分排序 → 并发读取 → Codec → io.Writer。
type Bundler struct {
	s       Settings
	reader  contract.Reader
	codec   contract.Codec
	scorer  *Scorer
	log     *diag.Logger
	metrics *diag.Metrics
	term    *diag.Terminal
}

// New 创建 Bundler；log/metrics/term 可为 nil。
func New(s Settings, r contract.Reader, log *diag.Logger, m *diag.Metrics, term *diag.Terminal) (*Bundler, error) {
	if r == nil {
		return nil, errors.Wrap(contract.ErrInvalidConfig, errors.CodeInvalidConfig, "bundle: reader is nil")
	}
	if s.Concurrency <= 0 {
		s.Concurrency = DefaultConcurrency
	}
	if s.CharsPerToken <= 0 {
		s.CharsPerToken = DefaultCharsPerToken
	}
	if s.Budget < 0 {
		return nil, errors.Wrapf(contract.ErrInvalidConfig, errors.CodeInvalidConfig, "bundle: negative budget %d", s.Budget)
	}
	if s.XMLMode == "" {
		s.XMLMode = contract.XMLAuto
	}
	if log == nil {
		log = diag.Discard()
	}
	if m == nil {
		m = &diag.Metrics{}
	}
	return &Bundler{
		s:       s,
		reader:  r,
		codec:   registry.Get(s.Format),
		scorer:  NewScorer(s.Priority),
		log:     log,
		metrics: m,
		term:    term,
	}, nil
}

// CountTokens 估算 token：max(1, ceil(runes/charsPerToken))。
func CountTokens(s string, charsPerToken float64) int {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	n := int(math.Ceil(float64(utf8.RuneCountInString(s)) / charsPerToken))
	return max(1, n)
}

type candidate struct {
	entry contract.Entry
	score int
}

// ProjectName 返回首个根目录的基名；标准输入路径列表时为 "project"。
func ProjectName(roots []string) string {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	if roots[0] == "-" {
		return "project"
	}
	abs, err := filepath.Abs(roots[0])
	if err != nil {
		return "project"
	}
	return filepath.Base(abs)
}

// Run 执行打包并把结果写入 w。没有匹配文件时不写出任何内容。
func (b *Bundler) Run(ctx context.Context, w io.Writer) (Stats, error) {
	var st Stats
	timer := b.log.Start("bundle", "bundle")

	cands, tree, err := b.collect(ctx)
	if err != nil {
		b.log.Error("bundle", string(diag.Classify(err)), "scan failed: "+err.Error(), timer.Since())
		return st, err
	}
	if len(cands) == 0 && len(tree) == 0 {
		b.log.WarnIn("bundle", "No files matched.")
		return st, nil
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].entry.Rel < cands[j].entry.Rel
	})

	meta := contract.Meta{
		Name:     ProjectName(b.s.Roots),
		Context:  b.s.Context,
		Task:     b.s.Task,
		Boundary: contract.NewBoundary(),
	}
	if b.s.Instruct {
		reply := b.s.ReplyFormat
		if reply == "" {
			reply = b.s.Format
		}
		meta.InstructionText = contract.Instruction(registry.Get(reply), meta.Boundary)
	}
	treeText := strings.Join(tree, "\n")
	if b.s.Structure {
		meta.Tree = treeText
	}
	head := b.codec.Header(meta)
	foot := b.codec.Footer(meta)

	out := newDigestWriter(w)
	used := CountTokens(head+foot, b.s.CharsPerToken)
	over := b.s.Budget > 0 && used >= b.s.Budget
	if over {
		b.log.WarnIn("bundle", fmt.Sprintf("Budget exceeded by directory tree and metadata alone (%d > %d). Outputting skeleton only.", used, b.s.Budget))
	}
	if over || b.s.Skeleton {
		meta.Tree = treeText
		if err := out.writeString(b.codec.Header(meta)); err != nil {
			return st, err
		}
		if err := out.writeString(foot); err != nil {
			return st, err
		}
		st.Tokens = used
		st.Bytes, st.Digest = out.n, out.sum()
		timer.Finish("skeleton", 0)
		return st, nil
	}

	if err := out.writeString(head); err != nil {
		return st, err
	}
	b.term.RunStart("bundle", b.s.Concurrency)
	sep := contract.Separator(b.codec)
	opts := meta.Options(b.s.XMLMode)
	done := 0
	for i := 0; i < len(cands); i += b.s.Concurrency {
		if b.s.Budget > 0 && used >= b.s.Budget {
			break
		}
		window := cands[i:min(i+b.s.Concurrency, len(cands))]
		recs, err := b.load(ctx, window)
		if err != nil {
			b.term.RunFinish(false, err.Error())
			return st, err
		}
		for _, rec := range recs {
			done++
			if rec == nil {
				continue
			}
			block := b.codec.File(*rec, opts)
			if st.Files > 0 {
				block = sep + block
			}
			n := CountTokens(block, b.s.CharsPerToken)
			if b.s.Budget > 0 && used+n > b.s.Budget {
				b.log.DebugKV("bundle", "Skipping (budget exceeded)", rec.Path, map[string]string{"tokens": fmt.Sprint(n)})
				st.Skipped++
				b.metrics.IncSkipped()
				continue
			}
			if err := out.writeString(block); err != nil {
				b.term.RunFinish(false, err.Error())
				return st, err
			}
			used += n
			st.Files++
			b.metrics.IncBundled()
			b.term.Progress(done, len(cands), rec.Path)
		}
	}
	if err := out.writeString(foot); err != nil {
		return st, err
	}
	st.Tokens = used
	st.Bytes, st.Digest = out.n, out.sum()
	b.term.RunFinish(true, fmt.Sprintf("文件 %d | 跳过 %d | ~%d tokens", st.Files, st.Skipped, st.Tokens))
	timer.Finish("bundled", int64(st.Files))
	return st, nil
}

// collect 扫描全部条目，返回待读取文件与目录树行。
func (b *Bundler) collect(ctx context.Context) ([]candidate, []string, error) {
	var cands []candidate
	var tree []string
	err := b.reader.Scan(ctx, b.s.Roots, func(e contract.Entry) error {
		if e.IsDir {
			if b.s.ListDirs {
				tree = append(tree, e.Rel+"/")
			}
			return nil
		}
		cands = append(cands, candidate{entry: e, score: b.scorer.Score(e.Rel)})
		tree = append(tree, e.Rel)
		return nil
	})
	return cands, tree, err
}

// load 并发读取并变换一个窗口；读取失败的文件告警后以 nil 占位。
func (b *Bundler) load(ctx context.Context, window []candidate) ([]*contract.FileRecord, error) {
	recs := make([]*contract.FileRecord, len(window))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.s.Concurrency)
	for i, c := range window {
		g.Go(func() error {
			text, err := b.reader.Load(gctx, c.entry)
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				b.log.WarnPath("bundle", string(diag.Classify(err)), fmt.Sprintf("Failed to read %s: %v", c.entry.Rel, err), c.entry.Rel)
				return nil
			}
			recs[i] = &contract.FileRecord{Path: c.entry.Rel, Content: Transform(text, c.entry.Rel, b.s.Optimize)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return recs, nil
}

// digestWriter 在写出的同时计算 blake3 摘要与字节数。
type digestWriter struct {
	w io.Writer
	h *blake3.Hasher
	n int64
}

func newDigestWriter(w io.Writer) *digestWriter {
	return &digestWriter{w: w, h: blake3.New()}
}

func (d *digestWriter) writeString(s string) error {
	n, err := io.WriteString(d.w, s)
	d.n += int64(n)
	_, _ = d.h.Write([]byte(s[:n]))
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "write bundle")
	}
	return nil
}

func (d *digestWriter) sum() string { return hex.EncodeToString(d.h.Sum(nil)) }
