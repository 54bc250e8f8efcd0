package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/tools"

	"github.com/openseek/openseek/plugin/sourceindex"
	"github.com/openseek/openseek/plugin/websearch"
)

// Tool names the research model may invoke.
const (
	toolSearch   = "search"
	toolRetrieve = "retrieve"
	toolTodo     = "todo_write"
)

// turnTools is the per-turn tool registry plus the state tools accumulate:
// citation maps and the research todo list live exactly as long as the turn.
type turnTools struct {
	registry  map[string]tools.Tool
	defs      []map[string]any
	citations CitationMaps
}

func (e *Engine) newTurnTools(chatUID string) *turnTools {
	todo := &todoTool{}
	tt := &turnTools{
		registry: map[string]tools.Tool{
			toolSearch:   &searchTool{client: e.searcher, index: e.index, chatUID: chatUID},
			toolRetrieve: &retrieveTool{client: e.searcher},
			toolTodo:     todo,
		},
		citations: CitationMaps{},
	}
	tt.defs = []map[string]any{
		buildToolDef(toolSearch, "Search the web for current information. Returns ranked results with content. Cite sources in the answer as [N](#toolCallId).", map[string]any{
			"query":        map[string]any{"type": "string", "description": "The search query"},
			"max_results":  map[string]any{"type": "integer", "description": "Maximum results to return (default 10)"},
			"search_depth": map[string]any{"type": "string", "enum": []any{"basic", "advanced"}, "description": "advanced crawls result pages for full content"},
		}, []string{"query"}),
		buildToolDef(toolRetrieve, "Fetch a specific web page and return its content as markdown.", map[string]any{
			"url": map[string]any{"type": "string", "description": "The URL to fetch"},
		}, []string{"url"}),
		buildToolDef(toolTodo, "Track the research plan. Replaces the todo list and returns the updated snapshot.", map[string]any{
			"todos": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content": map[string]any{"type": "string"},
						"status":  map[string]any{"type": "string", "enum": []any{"pending", "in_progress", "done"}},
					},
					"required": []any{"content", "status"},
				},
			},
		}, []string{"todos"}),
	}
	return tt
}

// execute dispatches one tool call. Tool failures become result text, never
// errors: a failed tool must not abort the loop.
func (tt *turnTools) execute(ctx context.Context, call ToolCall) string {
	tool, ok := tt.registry[call.Name]
	if !ok {
		return "Unknown tool: " + call.Name
	}
	slog.Info("[TOOL CALL]", "tool", call.Name, "input", call.Arguments)
	result, err := tool.Call(ctx, call.Arguments)
	if err != nil {
		result = "Error: " + err.Error()
	}
	if call.Name == toolSearch {
		tt.recordCitations(call.ID, result)
	}
	return result
}

// recordCitations builds the citation map for a completed search tool call.
// Index space is 1..N in result order.
func (tt *turnTools) recordCitations(callID, result string) {
	if entries := searchCitationEntries(result); entries != nil {
		tt.citations[callID] = entries
	}
}

// buildToolDef constructs an OpenAI-compatible tool definition map.
func buildToolDef(name, description string, properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        name,
			"description": description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// Thresholds for answering a search from the semantic source index instead
// of the live provider.
const (
	indexMinHits  = 3
	indexMinScore = 0.75
)

// searchTool performs a web search and indexes the sources it finds. When
// the chat's source index already holds enough confident matches for a
// query, those are returned without hitting the live provider.
type searchTool struct {
	client  *websearch.Client
	index   *sourceindex.Index
	chatUID string
}

func (t *searchTool) Name() string { return toolSearch }
func (t *searchTool) Description() string {
	return "Search the web for information. Input is a JSON object with keys `query`, optional `max_results` and `search_depth`."
}

func (t *searchTool) Call(ctx context.Context, input string) (string, error) {
	var payload struct {
		Query       string `json:"query"`
		MaxResults  int    `json:"max_results"`
		SearchDepth string `json:"search_depth"`
	}
	if err := json.Unmarshal([]byte(input), &payload); err != nil {
		return "Error: failed to parse input JSON.", nil
	}

	var resp *websearch.Response
	if t.index != nil {
		resp = t.consultIndex(ctx, payload.Query, payload.MaxResults)
	}
	if resp == nil {
		live, err := t.client.Search(ctx, websearch.Request{
			Query:       payload.Query,
			MaxResults:  payload.MaxResults,
			SearchDepth: payload.SearchDepth,
		})
		if err != nil {
			return "", err
		}
		resp = live

		if t.index != nil {
			for _, r := range resp.Results {
				if err := t.index.Upsert(ctx, t.chatUID, sourceindex.Source{
					URL: r.URL, Title: r.Title, Content: r.Content,
				}); err != nil {
					slog.Warn("source indexing failed", "url", r.URL, "err", err)
				}
			}
		}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// consultIndex tries to satisfy a query from sources indexed in earlier
// searches of this chat. Only a confident, sufficiently large hit set
// short-circuits the live provider; anything less returns nil.
func (t *searchTool) consultIndex(ctx context.Context, query string, maxResults int) *websearch.Response {
	if maxResults <= 0 {
		maxResults = 10
	}
	sources, err := t.index.SearchSimilar(ctx, t.chatUID, query, maxResults)
	if err != nil {
		slog.Debug("source index query failed", "query", query, "err", err)
		return nil
	}
	var results []websearch.Result
	for _, s := range sources {
		if s.Score < indexMinScore {
			continue
		}
		results = append(results, websearch.Result{Title: s.Title, URL: s.URL, Content: s.Content})
	}
	if len(results) < indexMinHits {
		return nil
	}
	return &websearch.Response{
		Results:         results,
		Query:           query,
		Images:          []string{},
		NumberOfResults: len(results),
	}
}

// retrieveTool fetches a single page as markdown.
type retrieveTool struct {
	client *websearch.Client
}

func (t *retrieveTool) Name() string { return toolRetrieve }
func (t *retrieveTool) Description() string {
	return "Fetch a web page and return its content as markdown. Input is a JSON object with key `url`."
}

func (t *retrieveTool) Call(ctx context.Context, input string) (string, error) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(input), &payload); err != nil {
		return "Error: failed to parse input JSON.", nil
	}
	if strings.TrimSpace(payload.URL) == "" {
		return "Error: url is required.", nil
	}
	return t.client.FetchMarkdown(ctx, payload.URL, 10000)
}

// todoItem is one entry in the research plan.
type todoItem struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

// todoTool tracks the research plan for the current turn. State is scoped to
// the turn: each turn starts with an empty list.
type todoTool struct {
	items []todoItem
}

func (t *todoTool) Name() string { return toolTodo }
func (t *todoTool) Description() string {
	return "Replace the research todo list. Input is a JSON object with key `todos`, an array of {content, status}."
}

func (t *todoTool) Call(_ context.Context, input string) (string, error) {
	var payload struct {
		Todos []todoItem `json:"todos"`
	}
	if err := json.Unmarshal([]byte(input), &payload); err != nil {
		return "Error: failed to parse input JSON.", nil
	}
	t.items = payload.Todos

	data, err := json.Marshal(map[string]any{"todos": t.items})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
