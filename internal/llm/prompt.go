package llm

import (
	"fmt"
	"strings"

	"github.com/aethra/krishi/internal/models"
)

const maxArticleChars = 2000

// SystemPrompt builds the instruction given to the model
func SystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are Krishi, an agricultural assistant for smallholder farmers in Kerala. ")
	b.WriteString("Give practical, safe and concise advice. ")
	b.WriteString("Prefer the reference articles below when they are relevant and say so when they do not cover the question. ")
	if req.Language == models.LanguageMalayalam {
		b.WriteString("Answer in Malayalam.")
	} else {
		b.WriteString("Answer in English.")
	}

	if len(req.Articles) > 0 {
		b.WriteString("\n\nReference articles:\n")
		for i, a := range req.Articles {
			fmt.Fprintf(&b, "\n[%d] %s (%s)\n%s\n", i+1, a.Title, a.Category, truncate(articleBody(a), maxArticleChars))
		}
	}
	return b.String()
}

func articleBody(a models.KnowledgeArticle) string {
	if a.Summary != nil && *a.Summary != "" {
		return *a.Summary + "\n" + a.Content
	}
	return a.Content
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
