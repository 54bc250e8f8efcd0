// Package sourceindex keeps a persistent semantic index of sources gathered
// during research, so repeated or rephrased questions can be answered from
// already-fetched material.
package sourceindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/pkg/errors"
)

// Source is one indexed search hit.
type Source struct {
	URL     string
	Title   string
	Content string
	Score   float32
}

// Index wraps chromem-go with per-chat collections and disk persistence.
type Index struct {
	mu      sync.RWMutex
	db      *chromem.DB
	embedFn chromem.EmbeddingFunc
}

// New creates (or opens) the persistent index at dataDir/sourceindex/.
func New(dataDir string, embedFn chromem.EmbeddingFunc) (*Index, error) {
	dir := filepath.Join(dataDir, "sourceindex")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrap(err, "create sourceindex dir")
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, errors.Wrap(err, "open sourceindex")
	}
	return &Index{db: db, embedFn: embedFn}, nil
}

func collectionName(chatUID string) string {
	return fmt.Sprintf("chat_%s_sources", chatUID)
}

func (x *Index) getOrCreateCollection(chatUID string) *chromem.Collection {
	name := collectionName(chatUID)
	col := x.db.GetCollection(name, x.embedFn)
	if col == nil {
		var err error
		col, err = x.db.CreateCollection(name, nil, x.embedFn)
		if err != nil {
			slog.Error("failed to create source collection", "chat", chatUID, "err", err)
			return nil
		}
	}
	return col
}

// Upsert indexes (or re-indexes) a source for a chat. The URL doubles as the
// document id so re-fetching a page replaces its entry.
func (x *Index) Upsert(ctx context.Context, chatUID string, src Source) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	col := x.getOrCreateCollection(chatUID)
	if col == nil {
		return errors.Errorf("sourceindex: nil collection for chat %s", chatUID)
	}
	return col.AddDocument(ctx, chromem.Document{
		ID:      src.URL,
		Content: src.Content,
		Metadata: map[string]string{
			"title": src.Title,
			"url":   src.URL,
		},
	})
}

// SearchSimilar returns the top-k sources most similar to the query.
func (x *Index) SearchSimilar(ctx context.Context, chatUID, query string, k int) ([]Source, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	col := x.getOrCreateCollection(chatUID)
	if col == nil {
		return nil, nil
	}
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	var results []chromem.Result
	var err error
	// chromem-go sometimes rejects nResults despite the Count check; step k
	// down until the query succeeds.
	for attemptK := k; attemptK > 0; attemptK-- {
		results, err = col.Query(ctx, query, attemptK, nil, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]Source, 0, len(results))
	for _, r := range results {
		out = append(out, Source{
			URL:     r.Metadata["url"],
			Title:   r.Metadata["title"],
			Content: r.Content,
			Score:   r.Similarity,
		})
	}
	return out, nil
}
