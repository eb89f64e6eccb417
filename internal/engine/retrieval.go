package engine

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aethra/krishi/internal/models"
)

// Keyword weights used to rank articles against a question
const (
	titleWeight   = 3
	tagWeight     = 2
	summaryWeight = 1
	contentWeight = 1
)

// maxKeywords bounds the LIKE prefilter built from a question
const maxKeywords = 12

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "what": true,
	"how": true, "why": true, "when": true, "which": true, "who": true, "with": true,
	"can": true, "should": true, "does": true, "did": true, "this": true, "that": true,
	"from": true, "have": true, "has": true, "into": true, "about": true, "there": true,
	"my": true, "our": true, "your": true, "you": true, "use": true, "get": true,
	"will": true, "would": true, "could": true, "any": true, "some": true, "best": true,
}

// Keywords splits a question into lowercase search terms. Letters and
// combining marks are kept together so Malayalam words stay whole.
func Keywords(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsMark(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 3 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
		if len(terms) == maxKeywords {
			break
		}
	}
	return terms
}

// Score rates how well an article matches the terms
func Score(a *models.KnowledgeArticle, terms []string) int {
	title := strings.ToLower(a.Title)
	content := strings.ToLower(a.Content)
	var summary string
	if a.Summary != nil {
		summary = strings.ToLower(*a.Summary)
	}
	tags := a.TagList()
	for i := range tags {
		tags[i] = strings.ToLower(tags[i])
	}

	score := 0
	for _, term := range terms {
		if strings.Contains(title, term) {
			score += titleWeight
		}
		for _, tag := range tags {
			if strings.Contains(tag, term) {
				score += tagWeight
				break
			}
		}
		if strings.Contains(summary, term) {
			score += summaryWeight
		}
		if strings.Contains(content, term) {
			score += contentWeight
		}
	}
	return score
}

// Rank orders articles by score, dropping those that do not match, and
// returns at most k of them. Ties go to the most recently updated.
func Rank(articles []models.KnowledgeArticle, terms []string, k int) []models.KnowledgeArticle {
	type scored struct {
		article models.KnowledgeArticle
		score   int
	}

	candidates := make([]scored, 0, len(articles))
	for i := range articles {
		if s := Score(&articles[i], terms); s > 0 {
			candidates = append(candidates, scored{articles[i], s})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.article.UpdatedAt.Equal(b.article.UpdatedAt) {
			return a.article.UpdatedAt.After(b.article.UpdatedAt)
		}
		return a.article.Title < b.article.Title
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	if k < 0 {
		k = 0
	}
	out := make([]models.KnowledgeArticle, 0, k)
	for _, c := range candidates[:k] {
		out = append(out, c.article)
	}
	return out
}
