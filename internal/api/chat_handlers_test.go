package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryResponse struct {
	SessionID   string `json:"session_id"`
	Language    string `json:"language"`
	UserMessage struct {
		Content string `json:"content"`
	} `json:"user_message"`
	BotMessage struct {
		Content     string `json:"content"`
		MessageType string `json:"message_type"`
	} `json:"bot_message"`
	ContextArticles []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Rank  int    `json:"rank"`
	} `json:"context_articles"`
}

func (s *testServer) article(t *testing.T, token string, body gin.H) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/chatbot/articles/", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)
	return created.ID
}

func (s *testServer) ask(t *testing.T, token, sessionID, message string) queryResponse {
	t.Helper()
	body := gin.H{"message": message}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	w := s.do(t, http.MethodPost, "/api/chatbot/query/", token, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp queryResponse
	decode(t, w, &resp)
	return resp
}

func TestChat_QueryAndHistory(t *testing.T) {
	s := newTestServer(t)
	admin := s.staff(t, "admin")
	farmer := s.register(t, "meera")

	blastID := s.article(t, admin, gin.H{
		"title":    "Managing rice blast",
		"content":  "Rice blast spreads in humid weather. Spray tricyclazole at the first sign of lesions.",
		"summary":  "Spray tricyclazole early.",
		"category": "pest_management",
		"tags":     "rice, blast, fungicide",
	})
	s.article(t, admin, gin.H{
		"title":    "Banana bunch care",
		"content":  "Prop banana plants before the bunch matures.",
		"category": "crop_cultivation",
	})

	first := s.ask(t, farmer, "", "How do I control blast on my rice?")
	require.NotEmpty(t, first.SessionID)
	assert.Equal(t, "en", first.Language)
	assert.Equal(t, "bot", first.BotMessage.MessageType)
	assert.NotEmpty(t, first.BotMessage.Content)
	require.NotEmpty(t, first.ContextArticles)
	assert.Equal(t, blastID, first.ContextArticles[0].ID)
	assert.Equal(t, 1, first.ContextArticles[0].Rank)

	second := s.ask(t, farmer, first.SessionID, "Which fungicide for rice blast?")
	assert.Equal(t, first.SessionID, second.SessionID)

	w := s.do(t, http.MethodGet, "/api/chatbot/sessions/"+first.SessionID+"/", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detail struct {
		SessionID string `json:"session_id"`
		Messages  []struct {
			MessageType     string    `json:"message_type"`
			Content         string    `json:"content"`
			Timestamp       time.Time `json:"timestamp"`
			ContextArticles []struct {
				Title string `json:"title"`
			} `json:"context_articles"`
		} `json:"messages"`
	}
	decode(t, w, &detail)
	require.Len(t, detail.Messages, 4)

	types := make([]string, 0, len(detail.Messages))
	for i, m := range detail.Messages {
		types = append(types, m.MessageType)
		if i > 0 {
			assert.True(t, m.Timestamp.After(detail.Messages[i-1].Timestamp), "messages are oldest first")
		}
	}
	assert.Equal(t, []string{"user", "bot", "user", "bot"}, types)
	assert.Equal(t, "How do I control blast on my rice?", detail.Messages[0].Content)
	require.NotEmpty(t, detail.Messages[1].ContextArticles)
	assert.Equal(t, "Managing rice blast", detail.Messages[1].ContextArticles[0].Title)
}

func TestChat_SessionsBelongToCaller(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "meera")
	other := s.register(t, "ravi")

	reply := s.ask(t, owner, "", "When should I sow paddy?")
	path := "/api/chatbot/sessions/" + reply.SessionID + "/"

	w := s.do(t, http.MethodGet, path, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/chatbot/query/", other, gin.H{"message": "hello", "session_id": reply.SessionID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, path, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/chatbot/sessions/", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 0, list.Count)
}

func TestChat_ListAndDeleteSessions(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "meera")

	older := s.ask(t, token, "", "How much water does paddy need?")
	newer := s.ask(t, token, "", "When do I harvest banana?")
	s.ask(t, token, newer.SessionID, "And how do I store it?")

	w := s.do(t, http.MethodGet, "/api/chatbot/sessions/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []struct {
			SessionID    string `json:"session_id"`
			MessageCount int64  `json:"message_count"`
		} `json:"data"`
		Count int `json:"count"`
	}
	decode(t, w, &list)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, newer.SessionID, list.Data[0].SessionID)
	assert.Equal(t, int64(4), list.Data[0].MessageCount)
	assert.Equal(t, older.SessionID, list.Data[1].SessionID)
	assert.Equal(t, int64(2), list.Data[1].MessageCount)

	w = s.do(t, http.MethodDelete, "/api/chatbot/sessions/"+older.SessionID+"/", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/chatbot/sessions/", token, nil)
	decode(t, w, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, newer.SessionID, list.Data[0].SessionID)
}

func TestChat_Validation(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "meera")

	w := s.do(t, http.MethodPost, "/api/chatbot/query/", token, gin.H{"message": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "message", errorBody(t, w)["field"])

	w = s.do(t, http.MethodPost, "/api/chatbot/query/", token, gin.H{"message": "hi", "language": "de"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "language", errorBody(t, w)["field"])
}

func TestArticles_Deactivate(t *testing.T) {
	s := newTestServer(t)
	admin := s.staff(t, "admin")

	id := s.article(t, admin, gin.H{
		"title":    "Drip irrigation basics",
		"content":  "Drip lines deliver water to the root zone.",
		"category": "irrigation",
	})

	w := s.do(t, http.MethodDelete, "/api/chatbot/articles/"+id+"/", admin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/chatbot/articles/"+id+"/", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var article struct {
		IsActive bool `json:"is_active"`
	}
	decode(t, w, &article)
	assert.False(t, article.IsActive)

	w = s.do(t, http.MethodGet, "/api/chatbot/articles/", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
	}
	decode(t, w, &page)
	assert.Equal(t, int64(0), page.Total)

	w = s.do(t, http.MethodGet, "/api/chatbot/articles/?include_inactive=true", admin, nil)
	decode(t, w, &page)
	assert.Equal(t, int64(1), page.Total)
}
