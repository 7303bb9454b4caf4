// Package keyword provides the immutable keyword index used to locate
// grading placeholders. Each annotation category holds an ordered set of
// label keywords, sorted by descending length so that a composite phrase
// ("Teacher Comments") is tested before any substring of it ("Comments").
//
// Matching is literal substring containment: case-sensitive for Latin
// script and exact for CJK. No regular expressions, no fuzzy matching.
package keyword

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tsawler/redpen/model"
)

// Config supplies the keyword lists for one index. The lists are copied
// at construction; callers may reuse or discard them afterwards.
type Config struct {
	Score     []string
	Comment   []string
	Signature []string
}

// DefaultConfig returns the built-in English and Chinese grading labels.
func DefaultConfig() Config {
	return Config{
		Score: []string{
			"Score", "Grade", "Marks",
			"成绩", "评分", "得分", "分数", "总分",
		},
		Comment: []string{
			"Teacher Comments", "Instructor Comments", "Comments", "Feedback",
			"教师评语", "导师评语", "评语", "批语", "评价",
		},
		Signature: []string{
			"Instructor Signature", "Signature", "Instructor",
			"教师签名", "批改人", "签名",
		},
	}
}

// Index is an immutable, priority-ordered keyword index. It is safe to
// share one Index across concurrent annotation invocations.
type Index struct {
	byCategory [3][]string
}

// NewIndex builds an index from cfg. Within each category, keywords are
// ordered by descending rune length; equal-length keywords keep their
// configured order. Empty keywords are dropped.
func NewIndex(cfg Config) *Index {
	idx := &Index{}
	idx.byCategory[model.CategoryScore] = normalize(cfg.Score)
	idx.byCategory[model.CategoryComment] = normalize(cfg.Comment)
	idx.byCategory[model.CategorySignature] = normalize(cfg.Signature)
	return idx
}

// normalize copies, filters, and length-sorts one keyword list.
func normalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw != "" {
			out = append(out, kw)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}

// Categories lists all annotation categories in scan order.
func (idx *Index) Categories() []model.Category {
	return []model.Category{model.CategoryScore, model.CategoryComment, model.CategorySignature}
}

// Keywords returns the ordered keyword list for one category. The
// returned slice must not be modified.
func (idx *Index) Keywords(cat model.Category) []string {
	if int(cat) < 0 || int(cat) >= len(idx.byCategory) {
		return nil
	}
	return idx.byCategory[cat]
}

// Match tests text against cat's keywords in priority order and returns
// the first (most specific) keyword contained in it.
func (idx *Index) Match(cat model.Category, text string) (model.PlaceholderMatch, bool) {
	for _, kw := range idx.Keywords(cat) {
		if strings.Contains(text, kw) {
			return model.PlaceholderMatch{
				Category: cat,
				Keyword:  kw,
				Priority: utf8.RuneCountInString(kw),
			}, true
		}
	}
	return model.PlaceholderMatch{}, false
}

// MatchAny tests text against every category in scan order and returns
// the first categorized match.
func (idx *Index) MatchAny(text string) (model.PlaceholderMatch, bool) {
	for _, cat := range idx.Categories() {
		if m, ok := idx.Match(cat, text); ok {
			return m, true
		}
	}
	return model.PlaceholderMatch{}, false
}
