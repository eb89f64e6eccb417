package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aethra/krishi/internal/auth"
	apperrors "github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/llm"
	"github.com/aethra/krishi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingGenerator struct{}

func (failingGenerator) Name() string { return "failing" }

func (failingGenerator) Generate(context.Context, llm.Request) (*llm.Response, error) {
	return nil, errors.New("model unavailable")
}

type recordingGenerator struct {
	requests []llm.Request
}

func (g *recordingGenerator) Name() string { return "recording" }

func (g *recordingGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	g.requests = append(g.requests, req)
	return &llm.Response{Text: "Spray tricyclazole at tillering.", Provider: g.Name()}, nil
}

// cancellingGenerator answers and then cancels the request context, so
// the store that follows fails
type cancellingGenerator struct {
	cancel context.CancelFunc
}

func (g *cancellingGenerator) Name() string { return "cancelling" }

func (g *cancellingGenerator) Generate(_ context.Context, _ llm.Request) (*llm.Response, error) {
	g.cancel()
	return &llm.Response{Text: "Irrigate in the evening.", Provider: g.Name()}, nil
}

func seedArticles(t *testing.T, env *testEnv) map[string]*models.KnowledgeArticle {
	t.Helper()
	knowledge := NewKnowledgeEngine(env.db, nopLog())
	inputs := map[string]ArticleInput{
		"blast": {
			Title:    "Managing rice blast",
			Content:  "Blast is a fungal disease of rice. Use resistant varieties and balanced nitrogen.",
			Summary:  strPtr("Control blast with resistant varieties and fungicide."),
			Category: models.CategoryPestManagement,
			Language: models.LanguageEnglish,
			Tags:     strPtr("rice, blast, fungicide"),
			IsActive: true,
		},
		"banana": {
			Title:    "Banana irrigation schedule",
			Content:  "Banana needs regular irrigation during summer. Rice straw mulch keeps moisture.",
			Category: models.CategoryIrrigation,
			Language: models.LanguageEnglish,
			IsActive: true,
		},
		"malayalam": {
			Title:    "നെല്ലിലെ ബ്ലാസ്റ്റ് രോഗം",
			Content:  "ബ്ലാസ്റ്റ് ഒരു കുമിൾ രോഗമാണ്.",
			Category: models.CategoryPestManagement,
			Language: models.LanguageMalayalam,
			IsActive: true,
		},
		"retired": {
			Title:    "Old rice blast advice",
			Content:  "Outdated rice blast recommendations.",
			Category: models.CategoryPestManagement,
			Language: models.LanguageEnglish,
			IsActive: true,
		},
	}

	articles := make(map[string]*models.KnowledgeArticle, len(inputs))
	for name, in := range inputs {
		a, err := knowledge.Create(context.Background(), in)
		require.NoError(t, err)
		articles[name] = a
	}
	require.NoError(t, knowledge.Deactivate(context.Background(), articles["retired"].ID))
	return articles
}

func TestChatQuery_ExtractiveAnswer(t *testing.T) {
	env := newTestEnv(t)
	articles := seedArticles(t, env)
	chat := NewChatEngine(env.db, llm.NewExtractive(), env.cfg, nopLog())
	p := env.signup(t, "farmer")

	reply, err := chat.Query(context.Background(), p, QueryInput{Message: "How do I control blast in my rice?"})
	require.NoError(t, err)
	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, "extractive", reply.Provider)
	assert.Equal(t, models.LanguageEnglish, reply.Language)
	require.NotEmpty(t, reply.ContextArticles)
	assert.Equal(t, articles["blast"].ID, reply.ContextArticles[0].ID)
	assert.Equal(t, 1, reply.ContextArticles[0].Rank)
	for _, ref := range reply.ContextArticles {
		assert.NotEqual(t, articles["retired"].ID, ref.ID, "inactive articles are not retrieved")
		assert.NotEqual(t, articles["malayalam"].ID, ref.ID, "other languages are not retrieved")
	}
	assert.Contains(t, reply.BotMessage.Content, "Managing rice blast")
	assert.True(t, reply.BotMessage.Timestamp.After(reply.UserMessage.Timestamp))

	var contexts []models.ChatMessageContext
	require.NoError(t, env.db.Where("message_id = ?", reply.BotMessage.ID).Find(&contexts).Error)
	assert.Len(t, contexts, len(reply.ContextArticles))
}

func TestChatQuery_HistoryAndOrdering(t *testing.T) {
	env := newTestEnv(t)
	seedArticles(t, env)
	gen := &recordingGenerator{}
	chat := NewChatEngine(env.db, gen, env.cfg, nopLog())
	// A frozen clock still yields ordered messages
	frozen := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	chat.now = func() time.Time { return frozen }
	p := env.signup(t, "farmer")
	ctx := context.Background()

	first, err := chat.Query(ctx, p, QueryInput{Message: "rice blast symptoms"})
	require.NoError(t, err)
	_, err = chat.Query(ctx, p, QueryInput{Message: "which fungicide?", SessionID: first.SessionID})
	require.NoError(t, err)

	require.Len(t, gen.requests, 2)
	assert.Empty(t, gen.requests[0].History)
	require.Len(t, gen.requests[1].History, 2)
	assert.Equal(t, llm.RoleUser, gen.requests[1].History[0].Role)
	assert.Equal(t, llm.RoleAssistant, gen.requests[1].History[1].Role)

	detail, err := chat.GetSession(ctx, p, first.SessionID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 4)
	for i := 1; i < len(detail.Messages); i++ {
		assert.False(t, detail.Messages[i].Timestamp.Before(detail.Messages[i-1].Timestamp),
			"messages are ordered by timestamp")
	}
	assert.Equal(t, models.MessageUser, detail.Messages[0].MessageType)
	assert.Equal(t, models.MessageBot, detail.Messages[1].MessageType)
	assert.NotEmpty(t, detail.Messages[1].ContextArticles)
}

func TestChatQuery_FallbackOnProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	seedArticles(t, env)
	chat := NewChatEngine(env.db, failingGenerator{}, env.cfg, nopLog())
	p := env.signup(t, "farmer")

	reply, err := chat.Query(context.Background(), p, QueryInput{Message: "banana irrigation in summer"})
	require.NoError(t, err)
	assert.Equal(t, "extractive", reply.Provider)
	assert.Contains(t, reply.BotMessage.Content, "Banana irrigation schedule")
}

func TestChatQuery_SessionLanguageFromProfile(t *testing.T) {
	env := newTestEnv(t)
	articles := seedArticles(t, env)
	chat := NewChatEngine(env.db, llm.NewExtractive(), env.cfg, nopLog())
	ctx := context.Background()

	account, err := env.accounts.CreateAccount(ctx, RegisterInput{
		Username:          "meera",
		Password:          "correct-horse",
		PreferredLanguage: models.LanguageMalayalam,
	})
	require.NoError(t, err)

	reply, err := chat.Query(ctx, principalOf(account), QueryInput{Message: "ബ്ലാസ്റ്റ് രോഗം"})
	require.NoError(t, err)
	assert.Equal(t, models.LanguageMalayalam, reply.Language)
	require.Len(t, reply.ContextArticles, 1)
	assert.Equal(t, articles["malayalam"].ID, reply.ContextArticles[0].ID)
}

func TestChatQuery_ForeignSessionNotFound(t *testing.T) {
	env := newTestEnv(t)
	chat := NewChatEngine(env.db, llm.NewExtractive(), env.cfg, nopLog())
	owner := env.signup(t, "owner")
	intruder := env.signup(t, "intruder")
	ctx := context.Background()

	reply, err := chat.Query(ctx, owner, QueryInput{Message: "hello there"})
	require.NoError(t, err)

	_, err = chat.Query(ctx, intruder, QueryInput{Message: "hi", SessionID: reply.SessionID})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = chat.GetSession(ctx, intruder, reply.SessionID)
	assert.True(t, apperrors.IsNotFound(err))

	assert.True(t, apperrors.IsNotFound(chat.DeactivateSession(ctx, intruder, reply.SessionID)))
}

func TestChatQuery_Validation(t *testing.T) {
	env := newTestEnv(t)
	chat := NewChatEngine(env.db, llm.NewExtractive(), env.cfg, nopLog())
	p := env.signup(t, "farmer")
	ctx := context.Background()

	_, err := chat.Query(ctx, p, QueryInput{Message: "   "})
	assert.Error(t, err)
	_, err = chat.Query(ctx, p, QueryInput{Message: "hi", Language: "fr"})
	assert.Error(t, err)
	_, err = chat.Query(ctx, p, QueryInput{Message: "hi", Category: "astrology"})
	assert.Error(t, err)
}

func TestListSessions_OrderedByLastActivity(t *testing.T) {
	env := newTestEnv(t)
	chat := NewChatEngine(env.db, llm.NewExtractive(), env.cfg, nopLog())
	chat.now = stepClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), time.Minute)
	p := env.signup(t, "farmer")
	ctx := context.Background()

	older, err := chat.Query(ctx, p, QueryInput{Message: "first question"})
	require.NoError(t, err)
	newer, err := chat.Query(ctx, p, QueryInput{Message: "second question"})
	require.NoError(t, err)

	sessions, err := chat.ListSessions(ctx, p)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer.SessionID, sessions[0].SessionID)
	assert.Equal(t, int64(2), sessions[0].MessageCount)

	// Activity in the older session moves it to the top
	_, err = chat.Query(ctx, p, QueryInput{Message: "follow up", SessionID: older.SessionID})
	require.NoError(t, err)

	sessions, err = chat.ListSessions(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, older.SessionID, sessions[0].SessionID)
	assert.Equal(t, int64(4), sessions[0].MessageCount)
	for i := 1; i < len(sessions); i++ {
		assert.False(t, sessions[i].LastActivity.After(sessions[i-1].LastActivity))
	}

	require.NoError(t, chat.DeactivateSession(ctx, p, newer.SessionID))
	sessions, err = chat.ListSessions(ctx, p)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	others, err := chat.ListSessions(ctx, auth.Principal{AccountID: env.signup(t, "other").AccountID})
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestChatQuery_FailedStoreLeavesNothing(t *testing.T) {
	env := newTestEnv(t)
	p := env.signup(t, "farmer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chat := NewChatEngine(env.db, &cancellingGenerator{cancel: cancel}, env.cfg, nopLog())

	_, err := chat.Query(ctx, p, QueryInput{Message: "When should I irrigate banana?"})
	require.Error(t, err)

	var sessions, messages int64
	require.NoError(t, env.db.Model(&models.ChatSession{}).Where("account_id = ?", p.AccountID).Count(&sessions).Error)
	require.NoError(t, env.db.Model(&models.ChatMessage{}).Count(&messages).Error)
	assert.Zero(t, sessions)
	assert.Zero(t, messages)

	// an existing session keeps its activity and gains no orphan question
	chat = NewChatEngine(env.db, llm.NewExtractive(), env.cfg, nopLog())
	reply, err := chat.Query(context.Background(), p, QueryInput{Message: "When should I irrigate banana?"})
	require.NoError(t, err)

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	chat = NewChatEngine(env.db, &cancellingGenerator{cancel: cancel}, env.cfg, nopLog())
	_, err = chat.Query(ctx, p, QueryInput{Message: "And in the monsoon?", SessionID: reply.SessionID})
	require.Error(t, err)

	require.NoError(t, env.db.Model(&models.ChatMessage{}).Count(&messages).Error)
	assert.Equal(t, int64(2), messages)

	var session models.ChatSession
	require.NoError(t, env.db.Where("session_id = ?", reply.SessionID).First(&session).Error)
	assert.True(t, session.LastActivity.Equal(reply.BotMessage.Timestamp))
}
