package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openseek/openseek/server/profile"
	"github.com/openseek/openseek/store"
)

func TestChatCRUD(t *testing.T) {
	_, e, _ := newTestService(&profile.Profile{})

	// create
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats", strings.NewReader(`{"title":"research"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.UID)
	assert.Equal(t, "research", created.Title)

	// list
	req = httptest.NewRequest(http.MethodGet, "/api/v1/chats", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var chats []chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chats))
	require.Len(t, chats, 1)

	// rename
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/chats/"+created.UID, strings.NewReader(`{"title":"renamed"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "renamed", updated.Title)

	// delete
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/chats/"+created.UID, nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/chats/"+created.UID, nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateChatRequiresTitle(t *testing.T) {
	svc, e, _ := newTestService(&profile.Profile{})
	chat, err := svc.Store.CreateChat(context.Background(), &store.Chat{UID: "c1", Title: "t"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/chats/"+chat.UID, strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChatView(t *testing.T) {
	svc, e, _ := newTestService(&profile.Profile{})
	ctx := context.Background()
	chat, err := svc.Store.CreateChat(ctx, &store.Chat{UID: "c1"})
	require.NoError(t, err)

	searchResult := `{"results":[{"title":"Go","url":"https://go.dev","content":"..."}]}`
	for _, create := range []*store.CreateMessage{
		{ChatID: chat.ID, UID: "m1", Role: store.RoleUser, Type: store.MessageInput, Content: "question"},
		{ChatID: chat.ID, UID: "m2", Role: store.RoleTool, Type: store.MessageTool, GroupID: "g1", ToolName: "search", ToolCallID: "t1", Content: searchResult},
		{ChatID: chat.ID, UID: "m3", Role: store.RoleAssistant, Type: store.MessageAnswer, GroupID: "g1", Content: "answer [1](#t1)"},
		{ChatID: chat.ID, UID: "m4", Role: store.RoleAssistant, Type: store.MessageRelated, GroupID: "g1", Content: `["next?"]`},
		{ChatID: chat.ID, UID: "m5", Role: store.RoleAssistant, Type: store.MessageFollowup, GroupID: "g1"},
		{ChatID: chat.ID, UID: "m6", Role: store.RoleAssistant, Type: store.MessageEnd, GroupID: "g1"},
	} {
		_, err := svc.Store.CreateMessage(ctx, create)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/c1/view", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var view store.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Complete)
	require.Len(t, view.Blocks, 2)
	assert.Equal(t, []string{"next?"}, view.Blocks[1].Related)
	// citation markers resolve on the way out
	assert.Equal(t, "answer [go](https://go.dev)", view.Blocks[1].Text)
}

func TestRunTurnRequiresConfiguration(t *testing.T) {
	svc, e, _ := newTestService(&profile.Profile{})
	_, err := svc.Store.CreateChat(context.Background(), &store.Chat{UID: "c1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/c1/turns", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunTurnRequiresContent(t *testing.T) {
	svc, e, _ := newTestService(&profile.Profile{OpenRouterAPIKey: "key"})
	_, err := svc.Store.CreateChat(context.Background(), &store.Chat{UID: "c1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/c1/turns", strings.NewReader(`{"content":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvancedSearchRequiresQuery(t *testing.T) {
	_, e, _ := newTestService(&profile.Profile{})
	req := httptest.NewRequest(http.MethodPost, "/api/advanced-search", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
