package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openseek/openseek/server/profile"
	"github.com/openseek/openseek/store"
)

// memDriver is an in-memory store.Driver for engine tests.
type memDriver struct {
	mu     sync.Mutex
	nextID int32
	chats  []*store.Chat
	msgs   []*store.Message
}

func (d *memDriver) GetDB() any                    { return nil }
func (d *memDriver) Close() error                  { return nil }
func (d *memDriver) Migrate(context.Context) error { return nil }

func (d *memDriver) CreateChat(_ context.Context, create *store.Chat) (*store.Chat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	chat := *create
	chat.ID = d.nextID
	chat.CreatedTs = time.Now().Unix()
	chat.UpdatedTs = chat.CreatedTs
	d.chats = append(d.chats, &chat)
	return &chat, nil
}

func (d *memDriver) ListChats(_ context.Context, _ *store.FindChat) ([]*store.Chat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*store.Chat(nil), d.chats...), nil
}

func (d *memDriver) GetChat(_ context.Context, find *store.FindChat) (*store.Chat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, chat := range d.chats {
		if find.UID != nil && chat.UID == *find.UID {
			return chat, nil
		}
	}
	return nil, nil
}

func (d *memDriver) UpdateChat(_ context.Context, update *store.UpdateChat) (*store.Chat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, chat := range d.chats {
		if chat.UID == update.UID {
			if update.Title != nil {
				chat.Title = *update.Title
			}
			if update.Visibility != nil {
				chat.Visibility = *update.Visibility
			}
			return chat, nil
		}
	}
	return nil, errors.New("chat not found")
}

func (d *memDriver) DeleteChat(_ context.Context, uid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, chat := range d.chats {
		if chat.UID == uid {
			d.chats = append(d.chats[:i], d.chats[i+1:]...)
			return nil
		}
	}
	return nil
}

func (d *memDriver) CreateMessage(_ context.Context, create *store.CreateMessage) (*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	msg := &store.Message{
		ID:         d.nextID,
		ChatID:     create.ChatID,
		UID:        create.UID,
		Role:       create.Role,
		Type:       create.Type,
		Content:    create.Content,
		ToolName:   create.ToolName,
		ToolCallID: create.ToolCallID,
		GroupID:    create.GroupID,
		TraceID:    create.TraceID,
		CreatedTs:  time.Now().Unix(),
	}
	d.msgs = append(d.msgs, msg)
	return msg, nil
}

func (d *memDriver) ListMessages(_ context.Context, find *store.FindMessage) ([]*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Message
	for _, m := range d.msgs {
		if m.ChatID != find.ChatID {
			continue
		}
		if find.TraceID != nil && m.TraceID != *find.TraceID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (d *memDriver) UpdateMessageFeedback(_ context.Context, update *store.UpdateMessageFeedback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.msgs {
		if m.UID == update.MessageUID {
			m.FeedbackScore = update.Score
			m.FeedbackComment = update.Comment
			return nil
		}
	}
	return errors.New("message not found")
}

// fakeStep is one scripted model response.
type fakeStep struct {
	comp   *Completion
	err    error
	deltas []string
}

// fakeClient replays scripted completions in order and records every request
// it receives.
type fakeClient struct {
	mu    sync.Mutex
	steps []fakeStep
	calls []Request
}

func (f *fakeClient) pop(req Request) (fakeStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.steps) == 0 {
		return fakeStep{}, errors.New("no scripted response left")
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	return step, nil
}

func (f *fakeClient) Complete(_ context.Context, req Request) (*Completion, error) {
	step, err := f.pop(req)
	if err != nil {
		return nil, err
	}
	return step.comp, step.err
}

func (f *fakeClient) StreamComplete(_ context.Context, req Request, onDelta func(string)) (*Completion, error) {
	step, err := f.pop(req)
	if err != nil {
		return nil, err
	}
	for _, d := range step.deltas {
		onDelta(d)
	}
	return step.comp, step.err
}

func (f *fakeClient) requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}

func text(s string) fakeStep {
	return fakeStep{comp: &Completion{Text: s, FinishReason: "stop"}, deltas: []string{s}}
}

func proceed() fakeStep {
	return fakeStep{comp: &Completion{Text: `{"next":"proceed"}`, FinishReason: "stop"}}
}

func inquire() fakeStep {
	return fakeStep{comp: &Completion{Text: `{"next":"inquire"}`, FinishReason: "stop"}}
}

func relatedQuestions() fakeStep {
	return fakeStep{comp: &Completion{Text: `{"questions":["q1","q2","q3"]}`, FinishReason: "stop"}}
}

func newTestEngine(t *testing.T, client Client, mode OperatingMode) (*Engine, *store.Store, *store.Chat) {
	t.Helper()
	st := store.New(&memDriver{})
	chat, err := st.CreateChat(context.Background(), &store.Chat{UID: "c1", Title: "test"})
	require.NoError(t, err)

	strategy := Strategy{
		Mode:               mode,
		LoopTransform:      TransformIdentity,
		FinalizerTransform: TransformIdentity,
		RelatedTransform:   TransformIdentity,
		MaxRounds:          6,
	}
	models := profile.ModelSet{Research: "m-research", Classifier: "m-classifier", Related: "m-related"}
	return New(client, st, nil, nil, models, strategy), st, chat
}

func messageTypes(msgs []*store.Message) []store.MessageType {
	out := make([]store.MessageType, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func TestRunTurnAnswer(t *testing.T) {
	client := &fakeClient{steps: []fakeStep{proceed(), text("The capital of France is Paris."), relatedQuestions()}}
	eng, st, chat := newTestEngine(t, client, ModeStandard)

	result, err := eng.RunTurn(context.Background(), chat, TurnInput{Content: "capital of France?"}, NopEmitter{})
	require.NoError(t, err)
	assert.Equal(t, TurnAnswer, result.Kind)
	assert.Equal(t, "The capital of France is Paris.", result.Answer)
	assert.Equal(t, []string{"q1", "q2", "q3"}, result.Related)

	msgs, err := st.ListMessages(context.Background(), &store.FindMessage{ChatID: chat.ID})
	require.NoError(t, err)
	assert.Equal(t, []store.MessageType{
		store.MessageInput, store.MessageAnswer, store.MessageRelated,
		store.MessageFollowup, store.MessageEnd,
	}, messageTypes(msgs))

	// the research-phase messages share one group id; the input does not
	assert.Empty(t, msgs[0].GroupID)
	for _, m := range msgs[1:] {
		assert.Equal(t, result.GroupID, m.GroupID)
	}

	view := store.Project(msgs)
	assert.True(t, view.Complete)
}

func TestRunTurnPersistsRawCitationMarkers(t *testing.T) {
	client := &fakeClient{steps: []fakeStep{proceed(), text("Known [1](#t1) fact."), relatedQuestions()}}
	eng, st, chat := newTestEngine(t, client, ModeStandard)

	result, err := eng.RunTurn(context.Background(), chat, TurnInput{Content: "q"}, NopEmitter{})
	require.NoError(t, err)

	// No search ran this turn, so the live result elides the marker, but the
	// log keeps it raw for read-time resolution.
	assert.Equal(t, "Known  fact.", result.Answer)
	msgs, err := st.ListMessages(context.Background(), &store.FindMessage{ChatID: chat.ID})
	require.NoError(t, err)
	assert.Equal(t, "Known [1](#t1) fact.", msgs[1].Content)
}

func TestRunTurnInquiry(t *testing.T) {
	client := &fakeClient{steps: []fakeStep{
		inquire(),
		{comp: &Completion{Text: `{"question":"Which Paris?","options":["France","Texas"],"allowsInput":true,"inputLabel":"Other","inputPlaceholder":"city"}`, FinishReason: "stop"}},
	}}
	eng, st, chat := newTestEngine(t, client, ModeStandard)

	result, err := eng.RunTurn(context.Background(), chat, TurnInput{Content: "tell me about Paris"}, NopEmitter{})
	require.NoError(t, err)
	assert.Equal(t, TurnInquiry, result.Kind)
	require.NotNil(t, result.Inquiry)
	assert.Equal(t, "Which Paris?", result.Inquiry.Question)
	assert.Equal(t, []string{"France", "Texas"}, result.Inquiry.Options)

	msgs, err := st.ListMessages(context.Background(), &store.FindMessage{ChatID: chat.ID})
	require.NoError(t, err)
	assert.Equal(t, []store.MessageType{store.MessageInput, store.MessageInquiry}, messageTypes(msgs))
	assert.Equal(t, "inquiry: Which Paris?", msgs[1].Content)

	// an inquiry turn never carries the end sentinel
	view := store.Project(msgs)
	assert.False(t, view.Complete)
}

func TestRunTurnSkipBypassesClassifier(t *testing.T) {
	client := &fakeClient{steps: []fakeStep{text("direct answer"), relatedQuestions()}}
	eng, _, chat := newTestEngine(t, client, ModeStandard)

	result, err := eng.RunTurn(context.Background(), chat, TurnInput{Content: "hi", Skip: true}, NopEmitter{})
	require.NoError(t, err)
	assert.Equal(t, TurnAnswer, result.Kind)

	// first model call must be the research loop, not the classifier
	reqs := client.requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "m-research", reqs[0].Model)
}

func TestRunTurnClassifierFailsOpen(t *testing.T) {
	client := &fakeClient{steps: []fakeStep{
		{err: errors.New("model unavailable")},
		text("answer anyway"),
		relatedQuestions(),
	}}
	eng, _, chat := newTestEngine(t, client, ModeStandard)

	result, err := eng.RunTurn(context.Background(), chat, TurnInput{Content: "hi"}, NopEmitter{})
	require.NoError(t, err)
	assert.Equal(t, TurnAnswer, result.Kind)
	assert.Equal(t, "answer anyway", result.Answer)
}

func TestRunTurnToolLoop(t *testing.T) {
	toolRound := fakeStep{comp: &Completion{
		FinishReason: "tool_calls",
		ToolCalls: []ToolCall{
			{ID: "t1", Name: toolTodo, Arguments: `{"todos":[{"content":"look it up","status":"pending"}]}`},
		},
	}}
	client := &fakeClient{steps: []fakeStep{proceed(), toolRound, text("researched answer"), relatedQuestions()}}
	eng, st, chat := newTestEngine(t, client, ModeStandard)

	result, err := eng.RunTurn(context.Background(), chat, TurnInput{Content: "research this"}, NopEmitter{})
	require.NoError(t, err)
	assert.Equal(t, TurnAnswer, result.Kind)

	msgs, err := st.ListMessages(context.Background(), &store.FindMessage{ChatID: chat.ID})
	require.NoError(t, err)
	assert.Equal(t, []store.MessageType{
		store.MessageInput, store.MessageTool, store.MessageAnswer,
		store.MessageRelated, store.MessageFollowup, store.MessageEnd,
	}, messageTypes(msgs))
	assert.Equal(t, toolTodo, msgs[1].ToolName)
	assert.Equal(t, "t1", msgs[1].ToolCallID)
	assert.Equal(t, result.GroupID, msgs[1].GroupID)
}

func TestRunTurnDeduplicatesToolCallIDs(t *testing.T) {
	toolRound := fakeStep{comp: &Completion{
		FinishReason: "tool_calls",
		ToolCalls: []ToolCall{
			{ID: "t1", Name: toolTodo, Arguments: `{"todos":[]}`},
			{ID: "t1", Name: toolTodo, Arguments: `{"todos":[]}`},
		},
	}}
	client := &fakeClient{steps: []fakeStep{proceed(), toolRound, text("done"), relatedQuestions()}}
	eng, st, chat := newTestEngine(t, client, ModeStandard)

	_, err := eng.RunTurn(context.Background(), chat, TurnInput{Content: "go"}, NopEmitter{})
	require.NoError(t, err)

	msgs, err := st.ListMessages(context.Background(), &store.FindMessage{ChatID: chat.ID})
	require.NoError(t, err)
	toolCount := 0
	for _, m := range msgs {
		if m.Type == store.MessageTool {
			toolCount++
		}
	}
	assert.Equal(t, 1, toolCount)
}

func TestRunTurnErrorCommitsPartialAnswer(t *testing.T) {
	client := &fakeClient{steps: []fakeStep{
		proceed(),
		{deltas: []string{"partial "}, err: errors.New("stream cut")},
	}}
	eng, st, chat := newTestEngine(t, client, ModeStandard)

	result, err := eng.RunTurn(context.Background(), chat, TurnInput{Content: "hi"}, NopEmitter{})
	require.Error(t, err)
	assert.Equal(t, TurnError, result.Kind)

	// errored turns keep the streamed partial text and seal the log with the
	// sentinel, skipping related/followup
	msgs, lerr := st.ListMessages(context.Background(), &store.FindMessage{ChatID: chat.ID})
	require.NoError(t, lerr)
	assert.Equal(t, []store.MessageType{store.MessageInput, store.MessageAnswer, store.MessageEnd}, messageTypes(msgs))
	assert.Equal(t, "partial ", msgs[1].Content)
}

func TestRunTurnToolCallOnlyFinalizes(t *testing.T) {
	toolRound := fakeStep{comp: &Completion{
		FinishReason: "tool_calls",
		ToolCalls: []ToolCall{
			{ID: "t1", Name: toolTodo, Arguments: `{"todos":[]}`},
		},
	}}
	client := &fakeClient{steps: []fakeStep{proceed(), toolRound, text("finalized answer"), relatedQuestions()}}
	eng, _, chat := newTestEngine(t, client, ModeToolCallOnly)

	result, err := eng.RunTurn(context.Background(), chat, TurnInput{Content: "hi"}, NopEmitter{})
	require.NoError(t, err)
	assert.Equal(t, TurnAnswer, result.Kind)
	assert.Equal(t, "finalized answer", result.Answer)
}

func TestRunTurnSingleShotStopsAfterOneRound(t *testing.T) {
	client := &fakeClient{steps: []fakeStep{proceed(), text("one and done"), relatedQuestions()}}
	eng, _, chat := newTestEngine(t, client, ModeSingleShot)

	result, err := eng.RunTurn(context.Background(), chat, TurnInput{Content: "hi"}, NopEmitter{})
	require.NoError(t, err)
	assert.Equal(t, "one and done", result.Answer)

	// exactly one research round: classifier + loop + related
	assert.Len(t, client.requests(), 3)
}

func TestRunTurnMaxRoundsCeiling(t *testing.T) {
	toolStep := func(id string) fakeStep {
		return fakeStep{comp: &Completion{
			FinishReason: "tool_calls",
			ToolCalls:    []ToolCall{{ID: id, Name: toolTodo, Arguments: `{"todos":[]}`}},
		}}
	}
	// a model that never stops calling tools must be cut off at MaxRounds
	client := &fakeClient{steps: []fakeStep{
		proceed(),
		toolStep("a"), toolStep("b"), toolStep("c"),
		toolStep("d"), toolStep("e"), toolStep("f"),
		text("ceiling finalizer"), relatedQuestions(),
	}}
	eng, _, chat := newTestEngine(t, client, ModeStandard)

	result, err := eng.RunTurn(context.Background(), chat, TurnInput{Content: "loop forever"}, NopEmitter{})
	require.NoError(t, err)
	// the loop ran out of rounds with tool output but no text, so the
	// finalizer produced the answer
	assert.Equal(t, "ceiling finalizer", result.Answer)
}

func TestWindowFromLog(t *testing.T) {
	msgs := []*store.Message{
		{Type: store.MessageInput, Content: "question"},
		{Type: store.MessageTool, Content: "tool noise", ToolName: "search"},
		{Type: store.MessageAnswer, Content: "answer"},
		{Type: store.MessageRelated, Content: `["a"]`},
		{Type: store.MessageFollowup},
		{Type: store.MessageEnd},
		{Type: store.MessageInputRelated, Content: "a"},
		{Type: store.MessageInquiry, Content: "inquiry: which one?"},
	}
	window := windowFromLog(msgs)
	require.Len(t, window, 4)
	assert.Equal(t, ChatMessage{Role: "user", Content: "question"}, window[0])
	assert.Equal(t, ChatMessage{Role: "assistant", Content: "answer"}, window[1])
	assert.Equal(t, ChatMessage{Role: "user", Content: "a"}, window[2])
	assert.Equal(t, ChatMessage{Role: "assistant", Content: "which one?"}, window[3])
}
