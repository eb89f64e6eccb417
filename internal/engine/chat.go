// Package engine - Chat Engine
// Handles chat sessions and answers grounded on the knowledge base
package engine

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aethra/krishi/internal/auth"
	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/llm"
	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/security"
	"github.com/aethra/krishi/internal/usage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxQuestionLength is the longest accepted chat message in characters
const MaxQuestionLength = 2000

// candidateLimit bounds the articles loaded for ranking
const candidateLimit = 200

// Chat timestamps are kept at millisecond precision so that ordering
// survives every supported database
const timestampPrecision = time.Millisecond

// ChatEngine answers questions and keeps the conversation history
type ChatEngine struct {
	db       *gorm.DB
	gen      llm.Generator
	fallback llm.Generator
	cfg      *config.ConfigService
	log      *zap.Logger
	now      func() time.Time
}

// NewChatEngine creates a new chat engine
func NewChatEngine(db *gorm.DB, gen llm.Generator, cfg *config.ConfigService, log *zap.Logger) *ChatEngine {
	return &ChatEngine{
		db:       db,
		gen:      gen,
		fallback: llm.NewExtractive(),
		cfg:      cfg,
		log:      log.Named("chat"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// QueryInput is one question from the caller
type QueryInput struct {
	Message   string
	SessionID string
	Language  models.Language
	Category  models.ArticleCategory
}

// ArticleRef is the summary of an article used as answer context
type ArticleRef struct {
	ID       uuid.UUID              `json:"id"`
	Title    string                 `json:"title"`
	Category models.ArticleCategory `json:"category"`
	Summary  *string                `json:"summary"`
	Source   *string                `json:"source"`
	Rank     int                    `json:"rank"`
}

// ChatReply is the result of a query
type ChatReply struct {
	SessionID       string              `json:"session_id"`
	Language        models.Language     `json:"language"`
	UserMessage     *models.ChatMessage `json:"user_message"`
	BotMessage      *models.ChatMessage `json:"bot_message"`
	ContextArticles []ArticleRef        `json:"context_articles"`
	Provider        string              `json:"provider"`
}

// SessionSummary is a session with its message count
type SessionSummary struct {
	models.ChatSession
	MessageCount int64 `json:"message_count"`
}

// MessageView is a stored message with its context articles
type MessageView struct {
	models.ChatMessage
	ContextArticles []ArticleRef `json:"context_articles"`
}

// SessionDetail is a session with its full history, oldest first
type SessionDetail struct {
	models.ChatSession
	Messages []MessageView `json:"messages"`
}

// Query answers the question from the knowledge base. The new session, the
// question, the answer and the session activity are stored together once
// the answer exists, so a failed query leaves nothing behind. A session id
// of another account is reported as not found; an empty one starts a new
// session.
func (e *ChatEngine) Query(ctx context.Context, p auth.Principal, in QueryInput) (*ChatReply, error) {
	question := strings.TrimSpace(in.Message)
	if question == "" {
		return nil, errors.NewValidationError("message", "message is required")
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return nil, errors.NewValidationError("message", "message must be at most 2000 characters")
	}
	if in.Language != "" && !in.Language.Valid() {
		return nil, errors.NewValidationError("language", "language must be one of: en, ml")
	}
	if in.Category != "" && !in.Category.Valid() {
		return nil, errors.NewValidationError("category", "category is not a recognised knowledge category")
	}

	session, isNew, err := e.openSession(ctx, p, in)
	if err != nil {
		return nil, err
	}
	language := session.Language
	if in.Language != "" {
		language = in.Language
	}

	var history []llm.Turn
	if !isNew {
		history, err = e.history(ctx, session.ID, e.cfg.GetInt(config.KeyChatHistoryLimit, 10))
		if err != nil {
			return nil, err
		}
	}

	userMsg := &models.ChatMessage{
		SessionID:   session.ID,
		MessageType: models.MessageUser,
		Content:     question,
		Timestamp:   after(e.now(), session.LastActivity),
	}

	articles, err := e.Retrieve(ctx, language, in.Category, question, e.cfg.GetInt(config.KeyRAGTopK, 3))
	if err != nil {
		return nil, err
	}

	answer := e.generate(usage.WithAccount(ctx, p.AccountID), llm.Request{
		Language: language,
		Question: question,
		History:  history,
		Articles: articles,
	})

	botMsg := &models.ChatMessage{
		SessionID:   session.ID,
		MessageType: models.MessageBot,
		Content:     answer.Text,
		Timestamp:   after(e.now(), userMsg.Timestamp),
	}
	for i := range articles {
		botMsg.Contexts = append(botMsg.Contexts, models.ChatMessageContext{
			ArticleID: articles[i].ID,
			Rank:      i + 1,
		})
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if isNew {
			session.Language = language
			session.LastActivity = botMsg.Timestamp
			if err := tx.Create(session).Error; err != nil {
				return err
			}
		} else {
			err := tx.Model(session).UpdateColumns(map[string]interface{}{
				"last_activity": botMsg.Timestamp,
				"language":      language,
			}).Error
			if err != nil {
				return err
			}
		}
		if err := tx.Create(userMsg).Error; err != nil {
			return err
		}
		return tx.Create(botMsg).Error
	})
	if err != nil {
		return nil, storeError(err, "chat message")
	}

	return &ChatReply{
		SessionID:       session.SessionID,
		Language:        language,
		UserMessage:     userMsg,
		BotMessage:      botMsg,
		ContextArticles: articleRefs(articles),
		Provider:        answer.Provider,
	}, nil
}

// generate asks the configured generator and falls back to an extractive
// answer when the provider fails
func (e *ChatEngine) generate(ctx context.Context, req llm.Request) *llm.Response {
	answer, err := e.gen.Generate(ctx, req)
	if err == nil && strings.TrimSpace(answer.Text) != "" {
		return answer
	}
	if err != nil {
		e.log.Warn("answer generation failed, using extractive answer",
			zap.String("provider", e.gen.Name()),
			zap.Error(err))
	}
	answer, _ = e.fallback.Generate(ctx, req)
	return answer
}

// openSession finds the caller's session, or prepares a new unsaved one
// when no session id is given
func (e *ChatEngine) openSession(ctx context.Context, p auth.Principal, in QueryInput) (*models.ChatSession, bool, error) {
	if id := strings.TrimSpace(in.SessionID); id != "" {
		session, err := e.findSession(ctx, p, id)
		return session, false, err
	}

	language := in.Language
	if language == "" {
		var profile models.UserProfile
		err := e.db.WithContext(ctx).Scopes(auth.OwnedBy(p)).First(&profile).Error
		switch {
		case err == nil:
			language = profile.PreferredLanguage
		case !isNotFound(err):
			return nil, false, errors.NewInternalError(err)
		}
	}
	if language == "" {
		language = models.LanguageEnglish
	}

	started := e.now().Truncate(timestampPrecision)
	return &models.ChatSession{
		ID:           uuid.New(),
		AccountID:    p.AccountID,
		SessionID:    uuid.New().String(),
		Language:     language,
		StartedAt:    started,
		LastActivity: started,
		IsActive:     true,
	}, true, nil
}

func (e *ChatEngine) findSession(ctx context.Context, p auth.Principal, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := e.db.WithContext(ctx).Scopes(auth.OwnedBy(p)).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		First(&session).Error
	if err != nil {
		return nil, storeError(err, "chat session")
	}
	return &session, nil
}

// history returns the last limit messages of a session, oldest first
func (e *ChatEngine) history(ctx context.Context, sessionID uuid.UUID, limit int) ([]llm.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	var messages []models.ChatMessage
	err := e.db.WithContext(ctx).
		Where("session_id = ? AND message_type IN ?", sessionID, []models.MessageType{models.MessageUser, models.MessageBot}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	turns := make([]llm.Turn, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		role := llm.RoleUser
		if messages[i].MessageType == models.MessageBot {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Turn{Role: role, Content: messages[i].Content})
	}
	return turns, nil
}

// Retrieve returns up to k active articles in language that best match
// the question. A non-empty category restricts the search to it.
func (e *ChatEngine) Retrieve(ctx context.Context, language models.Language, category models.ArticleCategory, question string, k int) ([]models.KnowledgeArticle, error) {
	terms := Keywords(question)
	if len(terms) == 0 || k <= 0 {
		return []models.KnowledgeArticle{}, nil
	}

	query := e.db.WithContext(ctx).Where("is_active = ? AND language = ?", true, language)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if cond, params := security.ContainsAny([]string{"title", "tags", "summary", "content"}, terms); cond != "" {
		query = query.Where(cond, params...)
	}

	var candidates []models.KnowledgeArticle
	if err := query.Order("updated_at DESC").Limit(candidateLimit).Find(&candidates).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return Rank(candidates, terms, k), nil
}

// ListSessions returns the caller's active sessions, most recent first
func (e *ChatEngine) ListSessions(ctx context.Context, p auth.Principal) ([]SessionSummary, error) {
	var sessions []models.ChatSession
	err := e.db.WithContext(ctx).Scopes(auth.OwnedBy(p)).
		Where("is_active = ?", true).
		Order("last_activity DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	if len(sessions) == 0 {
		return summaries, nil
	}

	ids := make([]uuid.UUID, len(sessions))
	for i := range sessions {
		ids[i] = sessions[i].ID
	}

	var counts []struct {
		SessionID uuid.UUID
		Total     int64
	}
	err = e.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Select("session_id, COUNT(*) AS total").
		Where("session_id IN ?", ids).
		Group("session_id").
		Scan(&counts).Error
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	byID := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byID[c.SessionID] = c.Total
	}
	for _, s := range sessions {
		summaries = append(summaries, SessionSummary{ChatSession: s, MessageCount: byID[s.ID]})
	}
	return summaries, nil
}

// GetSession returns one of the caller's sessions with its messages
func (e *ChatEngine) GetSession(ctx context.Context, p auth.Principal, sessionID string) (*SessionDetail, error) {
	var session models.ChatSession
	err := e.db.WithContext(ctx).Scopes(auth.OwnedBy(p)).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}})
		}).
		Preload("Messages.Contexts", func(db *gorm.DB) *gorm.DB {
			return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "rank"}})
		}).
		Preload("Messages.Contexts.Article").
		Where("session_id = ? AND is_active = ?", sessionID, true).
		First(&session).Error
	if err != nil {
		return nil, storeError(err, "chat session")
	}

	detail := &SessionDetail{ChatSession: session, Messages: make([]MessageView, 0, len(session.Messages))}
	for _, m := range session.Messages {
		detail.Messages = append(detail.Messages, MessageView{
			ChatMessage:     m,
			ContextArticles: articleRefs(m.ContextArticles()),
		})
	}
	detail.ChatSession.Messages = nil
	return detail, nil
}

// DeactivateSession hides one of the caller's sessions
func (e *ChatEngine) DeactivateSession(ctx context.Context, p auth.Principal, sessionID string) error {
	session, err := e.findSession(ctx, p, sessionID)
	if err != nil {
		return err
	}
	if err := e.db.WithContext(ctx).Model(session).UpdateColumn("is_active", false).Error; err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

// after returns now at stored precision, moved past prev when needed so
// that messages of a session sort in the order they were written
func after(now, prev time.Time) time.Time {
	now = now.Truncate(timestampPrecision)
	if !now.After(prev) {
		return prev.Truncate(timestampPrecision).Add(timestampPrecision)
	}
	return now
}

func articleRefs(articles []models.KnowledgeArticle) []ArticleRef {
	refs := make([]ArticleRef, 0, len(articles))
	for i, a := range articles {
		refs = append(refs, ArticleRef{
			ID:       a.ID,
			Title:    a.Title,
			Category: a.Category,
			Summary:  a.Summary,
			Source:   a.Source,
			Rank:     i + 1,
		})
	}
	return refs
}
