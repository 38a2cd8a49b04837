package bundle

import (
	"strconv"
	"strings"

	"github.com/jmgilman/go/errors"

	"catport/pkg/contract"
	rfs "catport/plugins/reader/filesystem"
)

// DefaultScore: 未命中任何规则时的优先级。
const DefaultScore = 1

// Rule: glob:score 形式的优先级规则。
type Rule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Score   int    `json:"score" yaml:"score"`
}

// ParseRule 解析 "glob:score"；以最后一个冒号分割，score 为整数。
func ParseRule(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, ":")
	if i <= 0 {
		return Rule{}, errors.Wrapf(contract.ErrInvalidConfig, errors.CodeInvalidConfig, "priority %q: want glob:score", s)
	}
	pat := strings.TrimSpace(s[:i])
	score, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
	if err != nil || pat == "" {
		return Rule{}, errors.Wrapf(contract.ErrInvalidConfig, errors.CodeInvalidConfig, "priority %q: want glob:score", s)
	}
	return Rule{Pattern: pat, Score: score}, nil
}

// Scorer 按规则顺序打分，首个命中者生效。
type Scorer struct {
	rules  []*rfs.Matcher
	scores []int
}

// NewScorer 编译规则；与忽略规则共用同一套 glob 语义。
func NewScorer(rules []Rule) *Scorer {
	s := &Scorer{}
	for _, r := range rules {
		m := rfs.NewMatcher([]string{strings.TrimPrefix(r.Pattern, "!")})
		if m.Len() == 0 {
			continue
		}
		s.rules = append(s.rules, m)
		s.scores = append(s.scores, r.Score)
	}
	return s
}

// Score 返回 rel 的优先级。
func (s *Scorer) Score(rel string) int {
	for i, m := range s.rules {
		if m.Match(rel, false) {
			return s.scores[i]
		}
	}
	return DefaultScore
}
