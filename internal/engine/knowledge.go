// Package engine - Knowledge Engine
// Handles administration of knowledge articles
package engine

import (
	"context"

	"github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/security"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// KnowledgeEngine manages knowledge articles
type KnowledgeEngine struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewKnowledgeEngine creates a new knowledge engine
func NewKnowledgeEngine(db *gorm.DB, log *zap.Logger) *KnowledgeEngine {
	return &KnowledgeEngine{db: db, log: log.Named("knowledge")}
}

// ArticleInput is the full set of article fields
type ArticleInput struct {
	Title    string
	Content  string
	Summary  *string
	Category models.ArticleCategory
	Language models.Language
	Tags     *string
	Source   *string
	IsActive bool
}

// ArticleFilter narrows an article listing
type ArticleFilter struct {
	PageParams
	Category        models.ArticleCategory
	Language        models.Language
	Search          string
	IncludeInactive bool
}

// List returns articles, most recently updated first
func (e *KnowledgeEngine) List(ctx context.Context, f ArticleFilter) (*Page[models.KnowledgeArticle], error) {
	query := e.db.WithContext(ctx).Model(&models.KnowledgeArticle{})
	if !f.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Language != "" {
		query = query.Where("language = ?", f.Language)
	}
	if f.Search != "" {
		if cond, params := security.ContainsAny([]string{"title", "tags"}, []string{f.Search}); cond != "" {
			query = query.Where(cond, params...)
		}
	}
	return paginate[models.KnowledgeArticle](query, f.PageParams, "updated_at DESC")
}

// Get returns one article, active or not
func (e *KnowledgeEngine) Get(ctx context.Context, id uuid.UUID) (*models.KnowledgeArticle, error) {
	var article models.KnowledgeArticle
	if err := e.db.WithContext(ctx).First(&article, "id = ?", id).Error; err != nil {
		return nil, storeError(err, "article")
	}
	return &article, nil
}

// Create stores a new article
func (e *KnowledgeEngine) Create(ctx context.Context, in ArticleInput) (*models.KnowledgeArticle, error) {
	article := &models.KnowledgeArticle{}
	in.applyTo(article)
	if err := e.db.WithContext(ctx).Create(article).Error; err != nil {
		return nil, storeError(err, "article")
	}
	e.log.Info("article created", zap.String("article_id", article.ID.String()), zap.String("title", article.Title))
	return article, nil
}

// Update replaces the fields of an article
func (e *KnowledgeEngine) Update(ctx context.Context, id uuid.UUID, in ArticleInput) (*models.KnowledgeArticle, error) {
	article, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(article)
	if err := e.db.WithContext(ctx).Save(article).Error; err != nil {
		return nil, storeError(err, "article")
	}
	return article, nil
}

// Deactivate hides an article from retrieval. Messages that used it keep
// their reference.
func (e *KnowledgeEngine) Deactivate(ctx context.Context, id uuid.UUID) error {
	article, err := e.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := e.db.WithContext(ctx).Model(article).UpdateColumn("is_active", false).Error; err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

func (in ArticleInput) applyTo(article *models.KnowledgeArticle) {
	article.Title = in.Title
	article.Content = in.Content
	article.Summary = in.Summary
	article.Category = in.Category
	article.Language = in.Language
	article.Tags = in.Tags
	article.Source = in.Source
	article.IsActive = in.IsActive
}
