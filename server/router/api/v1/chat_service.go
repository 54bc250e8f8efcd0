package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/lithammer/shortuuid/v4"

	"github.com/openseek/openseek/engine"
	"github.com/openseek/openseek/store"
)

type chatRequest struct {
	Title string `json:"title"`
}

type chatResponse struct {
	UID       string `json:"uid"`
	Title     string `json:"title"`
	CreatedTs int64  `json:"createdTs"`
	UpdatedTs int64  `json:"updatedTs"`
}

type turnRequest struct {
	Content string `json:"content"`
	// IsRelated marks content picked from the previous turn's related
	// questions.
	IsRelated bool `json:"isRelated"`
	// Skip bypasses the ambiguity classifier.
	Skip bool `json:"skip"`
}

func (s *APIV1Service) registerChatRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/chats")
	g.GET("", s.listChats)
	g.POST("", s.createChat)
	g.PATCH("/:uid", s.updateChat)
	g.DELETE("/:uid", s.deleteChat)
	g.GET("/:uid/view", s.getChatView)
	g.POST("/:uid/turns", s.runTurn)
}

func toChatResponse(chat *store.Chat) chatResponse {
	return chatResponse{
		UID:       chat.UID,
		Title:     chat.Title,
		CreatedTs: chat.CreatedTs,
		UpdatedTs: chat.UpdatedTs,
	}
}

func (s *APIV1Service) listChats(c *echo.Context) error {
	chats, err := s.Store.ListChats(c.Request().Context(), &store.FindChat{})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]chatResponse, 0, len(chats))
	for _, chat := range chats {
		resp = append(resp, toChatResponse(chat))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) createChat(c *echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		req.Title = ""
	}
	chat, err := s.Store.CreateChat(c.Request().Context(), &store.Chat{
		UID:   shortuuid.New(),
		Title: req.Title,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toChatResponse(chat))
}

func (s *APIV1Service) updateChat(c *echo.Context) error {
	uid := c.Param("uid")
	if _, err := s.findChat(c, uid); err != nil {
		return err
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}
	updated, err := s.Store.UpdateChat(c.Request().Context(), &store.UpdateChat{
		UID:   uid,
		Title: &req.Title,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toChatResponse(updated))
}

func (s *APIV1Service) deleteChat(c *echo.Context) error {
	uid := c.Param("uid")
	if _, err := s.findChat(c, uid); err != nil {
		return err
	}
	if err := s.Store.DeleteChat(c.Request().Context(), uid); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// getChatView returns the renderable projection of a chat's message log,
// with citation markers resolved against the persisted search results.
func (s *APIV1Service) getChatView(c *echo.Context) error {
	chat, err := s.findChat(c, c.Param("uid"))
	if err != nil {
		return err
	}
	msgs, err := s.Store.ListMessages(c.Request().Context(), &store.FindMessage{ChatID: chat.ID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, engine.RenderView(msgs))
}

// runTurn executes one turn and streams its events over SSE. The turn runs
// on a detached context so a dropped connection never leaves a half-written
// log; the stream simply stops being read.
func (s *APIV1Service) runTurn(c *echo.Context) error {
	if s.Profile.OpenRouterAPIKey == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "engine is not configured (missing OPENSEEK_OPENROUTER_API_KEY)")
	}

	chat, err := s.findChat(c, c.Param("uid"))
	if err != nil {
		return err
	}

	var req turnRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content required")
	}

	ctx := c.Request().Context()

	history, err := s.Store.ListMessages(ctx, &store.FindMessage{ChatID: chat.ID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(history) == 0 {
		go s.Engine.AutoTitle(context.Background(), chat, req.Content)
	}

	rw := c.Response()
	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.Header().Set("X-Accel-Buffering", "no")
	rw.WriteHeader(http.StatusOK)

	em := engine.NewStreamEmitter()
	sub, unsubscribe := em.Subscribe()
	defer unsubscribe()

	turnCtx := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.Engine.RunTurn(turnCtx, chat, engine.TurnInput{
			Content:   req.Content,
			IsRelated: req.IsRelated,
			Skip:      req.Skip,
			TraceID:   uuid.NewString(),
		}, em); err != nil {
			slog.Warn("turn failed", "chat", chat.UID, "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev.Value)
			if err != nil {
				continue
			}
			fmt.Fprintf(rw, "data: %s\n\n", data)
			if f, ok := rw.(http.Flusher); ok {
				f.Flush()
			}
			if ev.Final {
				return nil
			}
		}
	}
}

func (s *APIV1Service) findChat(c *echo.Context, uid string) (*store.Chat, error) {
	chat, err := s.Store.GetChat(c.Request().Context(), &store.FindChat{UID: &uid})
	if err != nil || chat == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	return chat, nil
}
