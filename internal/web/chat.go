package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bull/semantic-search/internal/chat"
	"github.com/bull/semantic-search/internal/rag"
)

const sessionCookie = "session_id"

// sessionID returns the caller's session, issuing a new one when the cookie is
// absent. The cookie has no Max-Age; the session ends when the browser drops it.
func (h *handler) sessionID(c *gin.Context) string {
	if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
		return id
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
	return id
}

func (h *handler) turnViews(history []rag.Turn) []chatTurnView {
	views := make([]chatTurnView, 0, len(history))
	for _, t := range history {
		views = append(views, chatTurnView{User: t.User, Assistant: h.markdown.render(t.Assistant)})
	}
	return views
}

// chatForm resumes the caller's session from the stored turns.
func (h *handler) chatForm(c *gin.Context) {
	data := chatPage{
		page: page{
			Title:       "Chat",
			Collections: h.collections(c),
			Collection:  h.deps.DefaultCollection,
		},
		SessionID: h.sessionID(c),
	}

	turns, err := h.deps.Chat.Store().Replay(c.Request.Context(), data.SessionID)
	if err != nil {
		h.log(c).Warn("replay session failed", zap.String("session_id", data.SessionID), zap.Error(err))
	} else if len(turns) > 0 {
		history := chat.TurnsToHistory(turns)
		data.Turns = h.turnViews(history)
		data.History = chat.EncodeHistory(history)
		data.Collection = turns[len(turns)-1].Collection
	}
	c.HTML(http.StatusOK, "chat.html", data)
}

func (h *handler) chat(c *gin.Context) {
	sessionID := h.sessionID(c)
	collection := h.formCollection(c)
	message := strings.TrimSpace(c.PostForm("user_message"))
	rawHistory := c.PostForm("history")

	history, err := chat.DecodeHistory(rawHistory)
	if err != nil {
		h.log(c).Warn("discarding malformed chat history", zap.String("session_id", sessionID), zap.Error(err))
		history, rawHistory = nil, ""
	}

	data := chatPage{
		page: page{
			Title:       "Chat",
			Collections: h.collections(c),
			Collection:  collection,
		},
		SessionID: sessionID,
		Turns:     h.turnViews(history),
		History:   rawHistory,
	}

	if message == "" {
		data.Message = "Please enter a message."
		c.HTML(http.StatusOK, "chat.html", data)
		return
	}

	reply, err := h.deps.Chat.Reply(c.Request.Context(), sessionID, collection, message, history)
	if err != nil {
		h.log(c).Error("chat reply failed",
			zap.String("session_id", sessionID),
			zap.String("collection", collection),
			zap.Error(err))
		data.Message = UnavailableMessage
		c.HTML(http.StatusServiceUnavailable, "chat.html", data)
		return
	}

	data.Turns = h.turnViews(reply.History)
	data.History = chat.EncodeHistory(reply.History)
	c.HTML(http.StatusOK, "chat.html", data)
}

func (h *handler) chatHistory(c *gin.Context) {
	data := chatHistoryPage{page: page{Title: "Chat History"}}

	sessions, err := h.deps.Chat.Store().ListSessions(c.Request.Context())
	if err != nil {
		h.log(c).Error("list chat sessions failed", zap.Error(err))
		data.Message = UnavailableMessage
		c.HTML(http.StatusServiceUnavailable, "chat_history.html", data)
		return
	}

	for _, s := range sessions {
		data.Sessions = append(data.Sessions, sessionRow{
			SessionID:    s.SessionID,
			FirstMessage: s.FirstMessage,
			Turns:        s.Turns,
			LastActive:   s.LastActive,
		})
	}
	c.HTML(http.StatusOK, "chat_history.html", data)
}

func (h *handler) chatSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	data := chatSessionPage{page: page{Title: "Chat Session"}, SessionID: sessionID}

	turns, err := h.deps.Chat.Store().Replay(c.Request.Context(), sessionID)
	if err != nil {
		h.log(c).Error("replay session failed", zap.String("session_id", sessionID), zap.Error(err))
		data.Message = UnavailableMessage
		c.HTML(http.StatusServiceUnavailable, "chat_session.html", data)
		return
	}

	for _, t := range turns {
		data.Turns = append(data.Turns, replayTurnView{
			chatTurnView: chatTurnView{User: t.UserMessage, Assistant: h.markdown.render(t.BotReply)},
			Collection:   t.Collection,
			CreatedAt:    t.CreatedAt,
		})
	}
	c.HTML(http.StatusOK, "chat_session.html", data)
}
