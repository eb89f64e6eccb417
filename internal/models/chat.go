// Package models - knowledge base and chat
package models

import (
	"strings"
	"time"

	"github.com/aethra/krishi/internal/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// =============================================================================
// KNOWLEDGE BASE
// =============================================================================

// KnowledgeArticle is a knowledge-base entry used as retrieval context
type KnowledgeArticle struct {
	ID        uuid.UUID       `json:"id" gorm:"primaryKey;size:36"`
	Title     string          `json:"title" gorm:"size:200;not null"`
	Content   string          `json:"content" gorm:"type:text;not null"`
	Summary   *string         `json:"summary" gorm:"type:text"`
	Category  ArticleCategory `json:"category" gorm:"size:50;not null;index:idx_article_category_language,priority:1"`
	Language  Language        `json:"language" gorm:"size:5;not null;index:idx_article_category_language,priority:2;index:idx_article_active_language,priority:2"`
	Tags      *string         `json:"tags" gorm:"size:200"`
	Source    *string         `json:"source" gorm:"size:200"`
	IsActive  bool            `json:"is_active" gorm:"not null;index:idx_article_active_language,priority:1"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (KnowledgeArticle) TableName() string {
	return "knowledge_articles"
}

func (a *KnowledgeArticle) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

func (a *KnowledgeArticle) BeforeSave(tx *gorm.DB) error {
	return a.Validate()
}

func (a *KnowledgeArticle) Validate() error {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return errors.NewValidationError("title", "title is required")
	}
	if len(a.Title) > 200 {
		return errors.NewValidationError("title", "title must be at most 200 characters")
	}
	if strings.TrimSpace(a.Content) == "" {
		return errors.NewValidationError("content", "content is required")
	}
	if !a.Category.Valid() {
		return errors.NewValidationError("category", "category is not a recognised knowledge category")
	}
	if a.Language == "" {
		a.Language = LanguageEnglish
	}
	if !a.Language.Valid() {
		return errors.NewValidationError("language", "language must be one of: en, ml")
	}
	a.Summary = trimOptional(a.Summary)
	a.Tags = trimOptional(a.Tags)
	a.Source = trimOptional(a.Source)
	if a.Tags != nil && len(*a.Tags) > 200 {
		return errors.NewValidationError("tags", "tags must be at most 200 characters")
	}
	if a.Source != nil && len(*a.Source) > 200 {
		return errors.NewValidationError("source", "source must be at most 200 characters")
	}
	return nil
}

// TagList splits the comma-separated tags
func (a *KnowledgeArticle) TagList() []string {
	if a.Tags == nil {
		return []string{}
	}
	return SplitList(*a.Tags)
}

// =============================================================================
// CHAT
// =============================================================================

// ChatSession is one conversation owned by an account
type ChatSession struct {
	ID           uuid.UUID `json:"-" gorm:"primaryKey;size:36"`
	AccountID    uuid.UUID `json:"account_id" gorm:"index;not null;size:36"`
	SessionID    string    `json:"session_id" gorm:"uniqueIndex;size:100;not null"`
	Language     Language  `json:"language" gorm:"size:5;not null"`
	StartedAt    time.Time `json:"started_at" gorm:"not null"`
	LastActivity time.Time `json:"last_activity" gorm:"index;not null"`
	IsActive     bool      `json:"is_active" gorm:"not null"`

	// Relations
	Messages []ChatMessage `json:"messages,omitempty" gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	now := time.Now().UTC()
	if s.StartedAt.IsZero() {
		s.StartedAt = now
	}
	if s.LastActivity.IsZero() {
		s.LastActivity = s.StartedAt
	}
	if s.Language == "" {
		s.Language = LanguageEnglish
	}
	return nil
}

// ChatMessage is one message in a session, ordered by timestamp
type ChatMessage struct {
	ID          uuid.UUID   `json:"id" gorm:"primaryKey;size:36"`
	SessionID   uuid.UUID   `json:"-" gorm:"index:idx_message_session_ts,priority:1;not null;size:36"`
	MessageType MessageType `json:"message_type" gorm:"size:10;not null"`
	Content     string      `json:"content" gorm:"type:text;not null"`
	Timestamp   time.Time   `json:"timestamp" gorm:"index:idx_message_session_ts,priority:2;not null"`

	// Relations
	Contexts []ChatMessageContext `json:"-" gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if !m.MessageType.Valid() {
		return errors.NewValidationError("message_type", "message_type must be one of: user, bot, system")
	}
	return nil
}

// ContextArticles returns the linked articles in rank order
func (m *ChatMessage) ContextArticles() []KnowledgeArticle {
	articles := make([]KnowledgeArticle, 0, len(m.Contexts))
	for _, c := range m.Contexts {
		if c.Article != nil {
			articles = append(articles, *c.Article)
		}
	}
	return articles
}

// ChatMessageContext links a bot message to a knowledge article it used
type ChatMessageContext struct {
	MessageID uuid.UUID `json:"message_id" gorm:"primaryKey;size:36"`
	ArticleID uuid.UUID `json:"article_id" gorm:"primaryKey;size:36;index"`
	Rank      int       `json:"rank" gorm:"not null"`

	// Relations
	Article *KnowledgeArticle `json:"article,omitempty" gorm:"foreignKey:ArticleID"`
}

func (ChatMessageContext) TableName() string {
	return "chat_message_contexts"
}
