package engine

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/openseek/openseek/plugin/websearch"
	"github.com/openseek/openseek/store"
)

// CitationSource is one entry in a per-tool citation map.
type CitationSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// CitationMaps maps toolCallId -> citation index -> source. Index space is
// 1..maxCitationIndex.
type CitationMaps map[string]map[int]CitationSource

// maxCitationIndex bounds index resolution for safety.
const maxCitationIndex = 100

// citationPattern matches inline markers of the form [N](#toolCallId).
var citationPattern = regexp.MustCompile(`\[(\d+)\]\(#([A-Za-z0-9_-]+)\)`)

// ResolveCitations rewrites [N](#toolCallId) markers in answer text into
// labeled links. Markers with an out-of-range index, an unknown tool call, a
// missing entry or an invalid URL are elided entirely.
func ResolveCitations(text string, maps CitationMaps) string {
	return citationPattern.ReplaceAllStringFunc(text, func(token string) string {
		groups := citationPattern.FindStringSubmatch(token)
		index, err := strconv.Atoi(groups[1])
		if err != nil || index < 1 || index > maxCitationIndex {
			return ""
		}
		entries, ok := maps[groups[2]]
		if !ok {
			return ""
		}
		source, ok := entries[index]
		if !ok {
			return ""
		}
		u, err := url.Parse(source.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ""
		}
		return "[" + domainLabel(u) + "](" + u.String() + ")"
	})
}

// domainLabel extracts the registrable domain minus its TLD, e.g.
// https://www.google.com -> "google".
func domainLabel(u *url.URL) string {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if idx := strings.Index(host, "."); idx > 0 {
		return host[:idx]
	}
	return host
}

// searchCitationEntries builds the 1..N citation entries from one search
// tool result. Results that are not a search response yield nil.
func searchCitationEntries(result string) map[int]CitationSource {
	var resp websearch.Response
	if err := json.Unmarshal([]byte(result), &resp); err != nil {
		return nil
	}
	entries := make(map[int]CitationSource, len(resp.Results))
	for i, r := range resp.Results {
		if i >= maxCitationIndex {
			break
		}
		entries[i+1] = CitationSource{Title: r.Title, URL: r.URL, Content: r.Content}
	}
	return entries
}

// CitationMapsFromLog rebuilds the citation maps of a chat from its
// persisted search tool messages, keyed by the stored tool-call id.
func CitationMapsFromLog(msgs []*store.Message) CitationMaps {
	maps := CitationMaps{}
	for _, m := range msgs {
		if m.Type != store.MessageTool || m.ToolName != toolSearch || m.ToolCallID == "" {
			continue
		}
		if entries := searchCitationEntries(m.Content); entries != nil {
			maps[m.ToolCallID] = entries
		}
	}
	return maps
}

// RenderView projects a message log and resolves the citation markers in
// each turn block's answer text. The log itself keeps the raw markers;
// rendering never writes back.
func RenderView(msgs []*store.Message) store.View {
	maps := CitationMapsFromLog(msgs)
	view := store.Project(msgs)
	for i := range view.Blocks {
		if view.Blocks[i].Kind == store.BlockTurn {
			view.Blocks[i].Text = ResolveCitations(view.Blocks[i].Text, maps)
		}
	}
	return view
}
