package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/openseek/openseek/plugin/sourceindex"
	"github.com/openseek/openseek/plugin/websearch"
	"github.com/openseek/openseek/server/profile"
	"github.com/openseek/openseek/store"
)

// Engine runs conversation turns: classify, research or inquire, finalize,
// propose follow-ups, commit.
type Engine struct {
	client   Client
	store    *store.Store
	searcher *websearch.Client
	index    *sourceindex.Index
	models   profile.ModelSet
	strategy Strategy
}

func New(client Client, s *store.Store, searcher *websearch.Client, index *sourceindex.Index, models profile.ModelSet, strategy Strategy) *Engine {
	return &Engine{
		client:   client,
		store:    s,
		searcher: searcher,
		index:    index,
		models:   models,
		strategy: strategy,
	}
}

// TurnInput is one user submission.
type TurnInput struct {
	Content string
	// IsRelated marks a submission picked from the previous turn's related
	// questions.
	IsRelated bool
	// Skip bypasses the task classifier; the turn goes straight to research.
	Skip    bool
	TraceID string
}

// TurnKind tells how a turn terminated.
type TurnKind string

const (
	TurnInquiry TurnKind = "inquiry"
	TurnAnswer  TurnKind = "answer"
	TurnError   TurnKind = "error"
)

// TurnResult is the terminal outcome of a turn. Errored turns still carry
// whatever answer text survived.
type TurnResult struct {
	Kind    TurnKind
	Inquiry *PartialInquiry
	Answer  string
	Related []string
	GroupID string
}

// RunTurn executes one full turn against the given chat. Every persisted
// side effect goes through a single turn writer; em receives streaming
// events as they happen. The returned result mirrors the committed state.
func (e *Engine) RunTurn(ctx context.Context, chat *store.Chat, input TurnInput, em Emitter) (*TurnResult, error) {
	history, err := e.store.ListMessages(ctx, &store.FindMessage{ChatID: chat.ID})
	if err != nil {
		return nil, errors.Wrap(err, "load chat history")
	}

	w := newTurnWriter(e.store, chat, input.TraceID)
	if _, err := w.AppendInput(ctx, input.Content, input.IsRelated); err != nil {
		return nil, err
	}

	window := append(windowFromLog(history), ChatMessage{Role: "user", Content: input.Content})

	if d := e.classifyTask(ctx, window, input.Skip); d.Next == NextInquire {
		return e.runInquiry(ctx, window, w, em)
	}

	tt := e.newTurnTools(chat.UID)
	res, loopErr := e.runResearchLoop(ctx, window, tt, w, em)

	answer := res.Answer
	if loopErr == nil && answer == "" {
		answer, loopErr = e.finalizeAnswer(ctx, res.Window, res.Answer, em)
	}

	// The log keeps answer text with raw citation markers; resolution is a
	// read-time concern. Only the result handed to the live client is
	// rendered here.
	if loopErr != nil {
		if err := w.CommitError(ctx, answer); err != nil {
			slog.Error("failed to commit errored turn", "chat", chat.UID, "err", err)
		}
		em.Error(loopErr)
		result := &TurnResult{Kind: TurnError, Answer: ResolveCitations(answer, tt.citations), GroupID: w.GroupID()}
		em.Done(result)
		return result, loopErr
	}
	if answer == "" {
		err := errors.New("research produced no answer")
		if cerr := w.CommitError(ctx, ""); cerr != nil {
			slog.Error("failed to commit errored turn", "chat", chat.UID, "err", cerr)
		}
		em.Error(err)
		result := &TurnResult{Kind: TurnError, GroupID: w.GroupID()}
		em.Done(result)
		return result, err
	}

	relatedView := ApplyTransform(e.strategy.RelatedTransform, append(window, ChatMessage{Role: "assistant", Content: answer}), answer)
	related, err := e.generateRelated(ctx, capWindow(relatedView, e.strategy.Mode.WindowCap()))
	if err != nil {
		// Related questions are an enrichment, never a reason to fail the
		// turn.
		slog.Warn("related question generation failed", "chat", chat.UID, "err", err)
		related = nil
	}
	em.Related(related)

	if err := w.CommitAnswer(ctx, answer, related); err != nil {
		return nil, err
	}
	result := &TurnResult{Kind: TurnAnswer, Answer: ResolveCitations(answer, tt.citations), Related: related, GroupID: w.GroupID()}
	em.Done(result)
	return result, nil
}

func (e *Engine) runInquiry(ctx context.Context, window []ChatMessage, w *turnWriter, em Emitter) (*TurnResult, error) {
	inq, err := e.generateInquiry(ctx, window, em)
	if err != nil {
		if cerr := w.CommitError(ctx, ""); cerr != nil {
			slog.Error("failed to commit errored turn", "err", cerr)
		}
		em.Error(err)
		result := &TurnResult{Kind: TurnError, GroupID: w.GroupID()}
		em.Done(result)
		return result, err
	}
	if _, err := w.AppendInquiry(ctx, inquiryPrefix+inq.Question); err != nil {
		return nil, err
	}
	result := &TurnResult{Kind: TurnInquiry, Inquiry: inq, GroupID: w.GroupID()}
	em.Done(result)
	return result, nil
}

// AutoTitle names a chat after its first message when the title is still
// empty. Best effort; failures only log.
func (e *Engine) AutoTitle(ctx context.Context, chat *store.Chat, firstMessage string) {
	if chat.Title != "" {
		return
	}
	title, err := e.generateTitle(ctx, firstMessage)
	if err != nil || strings.TrimSpace(title) == "" {
		slog.Warn("auto-title failed", "chat", chat.UID, "err", err)
		return
	}
	if _, err := e.store.UpdateChat(ctx, &store.UpdateChat{UID: chat.UID, Title: &title}); err != nil {
		slog.Warn("auto-title update failed", "chat", chat.UID, "err", err)
	}
}

const inquiryPrefix = "inquiry: "

// windowFromLog rebuilds the model-visible conversation from the persisted
// log. Tool traffic and terminal markers of past turns stay out of the
// window; only user submissions, answers and inquiry questions carry over.
func windowFromLog(msgs []*store.Message) []ChatMessage {
	var window []ChatMessage
	for _, m := range msgs {
		switch m.Type {
		case store.MessageInput, store.MessageInputRelated:
			window = append(window, ChatMessage{Role: "user", Content: m.Content})
		case store.MessageAnswer:
			window = append(window, ChatMessage{Role: "assistant", Content: m.Content})
		case store.MessageInquiry:
			window = append(window, ChatMessage{Role: "assistant", Content: strings.TrimPrefix(m.Content, inquiryPrefix)})
		}
	}
	return window
}
