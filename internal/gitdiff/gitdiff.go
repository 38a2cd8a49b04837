package gitdiff

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"regexp"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/jmgilman/go/errors"

	"catport/pkg/contract"
)

// Head: 默认比较目标，仅取工作区状态。
const Head = "HEAD"

var reRef = regexp.MustCompile(`^[a-zA-Z0-9_./@^~: -]+$`)

// ValidRef 报告 ref 是否只包含允许的字符。
func ValidRef(ref string) bool { return reRef.MatchString(ref) }

// Changed 返回 dir 所在仓库中相对 target 变化的文件（绝对路径，已排序去重）。
//   - HEAD：工作区与暂存区中修改、新增、重命名及未跟踪（遵循 .gitignore）的文件；
//   - 其他引用：该提交与 HEAD 之间的树差异，并上工作区状态。
//
// 已删除的文件不在结果中。
func Changed(ctx context.Context, dir, target string) ([]string, error) {
	if target == "" {
		target = Head
	}
	if !ValidRef(target) {
		return nil, errors.Wrapf(contract.ErrInvalidConfig, errors.CodeInvalidConfig, "invalid git reference: %q", target)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if stderrors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, errors.Wrapf(contract.ErrNotRepository, errors.CodeNotFound, "%s is not inside a git repository", dir)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "open git repository")
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "open git worktree")
	}
	root := wt.Filesystem.Root()

	set := map[string]struct{}{}
	if target != Head {
		names, err := treeDiff(ctx, repo, target)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			set[n] = struct{}{}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "git status")
	}
	for name, st := range status {
		if changed(st) {
			set[name] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, filepath.Join(root, filepath.FromSlash(name)))
	}
	sort.Strings(out)
	return out, nil
}

// changed 排除删除项与未变化项。
func changed(st *gogit.FileStatus) bool {
	if st.Worktree == gogit.Deleted {
		return false
	}
	if st.Staging == gogit.Deleted && st.Worktree == gogit.Unmodified {
		return false
	}
	return st.Worktree != gogit.Unmodified || st.Staging != gogit.Unmodified
}

// treeDiff 返回 target 提交与 HEAD 之间新增或修改的路径。
func treeDiff(ctx context.Context, repo *gogit.Repository, target string) ([]string, error) {
	from, err := commitTree(repo, target)
	if err != nil {
		return nil, err
	}
	to, err := commitTree(repo, Head)
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTreeWithOptions(ctx, from, to, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "diff %s..HEAD", target)
	}
	var names []string
	for _, ch := range changes {
		action, err := ch.Action()
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "classify git change")
		}
		if action == merkletrie.Delete {
			continue
		}
		names = append(names, ch.To.Name)
	}
	return names, nil
}

func commitTree(repo *gogit.Repository, rev string) (*object.Tree, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, errors.Wrapf(contract.ErrInvalidConfig, errors.CodeInvalidConfig, "unknown git revision %q: %v", rev, err)
	}
	c, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "load commit %s", rev)
	}
	t, err := c.Tree()
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "load tree %s", rev)
	}
	return t, nil
}
