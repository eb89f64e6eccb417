package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aethra/krishi/internal/models"
)

// Extractive answers from the retrieved articles without a model
type Extractive struct{}

// NewExtractive creates the offline generator
func NewExtractive() *Extractive {
	return &Extractive{}
}

func (e *Extractive) Name() string {
	return "extractive"
}

func (e *Extractive) Generate(_ context.Context, req Request) (*Response, error) {
	if len(req.Articles) == 0 {
		return &Response{Text: noAnswer(req.Language), Provider: e.Name()}, nil
	}

	var b strings.Builder
	b.WriteString(intro(req.Language))
	for i, a := range req.Articles {
		fmt.Fprintf(&b, "\n\n%d. %s\n%s", i+1, a.Title, excerpt(a))
	}
	return &Response{Text: b.String(), Provider: e.Name()}, nil
}

func excerpt(a models.KnowledgeArticle) string {
	if a.Summary != nil && *a.Summary != "" {
		return *a.Summary
	}
	return truncate(strings.TrimSpace(a.Content), 400)
}

func intro(lang models.Language) string {
	if lang == models.LanguageMalayalam {
		return "നിങ്ങളുടെ ചോദ്യവുമായി ബന്ധപ്പെട്ട വിവരങ്ങൾ:"
	}
	return "Here is what the knowledge base says about your question:"
}

func noAnswer(lang models.Language) string {
	if lang == models.LanguageMalayalam {
		return "ക്ഷമിക്കണം, ഈ ചോദ്യത്തിന് ഇപ്പോൾ വിവരങ്ങൾ ലഭ്യമല്ല. ദയവായി നിങ്ങളുടെ കൃഷി ഓഫീസറെ ബന്ധപ്പെടുക."
	}
	return "Sorry, I could not find information about this yet. Please contact your local Krishi Bhavan officer."
}
