package retrieval

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richinex/theseus/embedding"
	"github.com/richinex/theseus/model"
	"github.com/richinex/theseus/storage"
)

// ToolResultScheme prefixes identifiers of auto-indexed tool observations.
const ToolResultScheme = "tool://"

// Writer stores resources.
type Writer interface {
	Upsert(ctx context.Context, r storage.Resource) error
}

// Indexer embeds text and writes it to the index, priming the cache so
// freshly indexed resources are served without another read.
type Indexer struct {
	index    Writer
	embedder embedding.Embedder
	cache    *ResourceCache
	catalog  *Catalog
	skip     map[string]bool
	logger   *zap.Logger
}

// NewIndexer creates an indexer. cache and logger may be nil.
func NewIndexer(index Writer, embedder embedding.Embedder, cache *ResourceCache, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		index:    index,
		embedder: embedder,
		cache:    cache,
		skip:     map[string]bool{SearchToolName: true, ListToolName: true},
		logger:   logger,
	}
}

// SkipTools excludes the named tools from IndexToolResult. Tools whose
// output is read back from the index belong here; the built-in search and
// list tools are excluded already.
func (x *Indexer) SkipTools(names ...string) *Indexer {
	for _, name := range names {
		x.skip[name] = true
	}
	return x
}

// WithCatalog records every indexed identifier in c.
func (x *Indexer) WithCatalog(c *Catalog) *Indexer {
	x.catalog = c
	return x
}

// IndexResource embeds text and stores it under id, replacing any prior row.
func (x *Indexer) IndexResource(ctx context.Context, id, text string, metadata map[string]any) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("resource %s has no text", id)
	}

	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", id, err)
	}

	if err := x.index.Upsert(ctx, storage.Resource{
		ID:         id,
		Embedding:  vec,
		Text:       text,
		Metadata:   metadata,
		InsertedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to index %s: %w", id, err)
	}

	if x.cache != nil {
		x.cache.Put(id, text)
	}
	if x.catalog != nil {
		x.catalog.Add(id, titleFor(text, metadata))
	}
	x.logger.Debug("resource indexed", zap.String("id", id), zap.Int("bytes", len(text)))
	return nil
}

// ToolResultID derives a stable identifier for a tool observation.
// The same tool, arguments and output always map to the same id.
func ToolResultID(tool string, args []byte, observation string) string {
	name := tool + "\x00" + string(args) + "\x00" + observation
	return ToolResultScheme + tool + "/" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// IndexToolResult stores the observation of a successful tool step.
// Steps without a result, and results of skipped tools, are ignored and
// report false.
func (x *Indexer) IndexToolResult(ctx context.Context, step model.Step) (string, bool, error) {
	if !step.HasResult() || strings.TrimSpace(*step.Observation) == "" {
		return "", false, nil
	}
	if x.skip[step.Action.Tool] {
		return "", false, nil
	}

	id := ToolResultID(step.Action.Tool, step.Action.Args, *step.Observation)
	meta := map[string]any{
		"source": "tool",
		"tool":   step.Action.Tool,
		"args":   string(step.Action.Args),
	}
	if err := x.IndexResource(ctx, id, *step.Observation, meta); err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Queue returns a ResultQueue feeding this indexer.
func (x *Indexer) Queue() *ResultQueue {
	return &ResultQueue{indexer: x}
}

// ResultQueue collects tool steps from a step observer and indexes them
// later. Observe only appends, so the reasoning loop never waits on an
// embedding call; call Flush once the run has finished. Safe for
// concurrent use.
type ResultQueue struct {
	indexer *Indexer
	mu      sync.Mutex
	pending []model.Step
}

// Observe queues step if it carries a tool result. It has the
// agent.StepObserver signature.
func (q *ResultQueue) Observe(step model.Step) {
	if !step.HasResult() {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, step)
	q.mu.Unlock()
}

// Len returns the number of queued steps.
func (q *ResultQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush indexes and clears the queued steps. Individual failures are
// logged and skipped; only a canceled context stops the flush early, in
// which case the remaining steps stay queued.
func (q *ResultQueue) Flush(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	steps := q.pending
	q.pending = nil
	q.mu.Unlock()

	var ids []string
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			q.mu.Lock()
			q.pending = append(steps[i:], q.pending...)
			q.mu.Unlock()
			return ids, err
		}
		id, ok, err := q.indexer.IndexToolResult(ctx, step)
		if err != nil {
			q.indexer.logger.Warn("tool result not indexed", zap.String("tool", step.Action.Tool), zap.Error(err))
			continue
		}
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// textExtensions are the file types IndexDir reads.
var textExtensions = map[string]bool{
	".md": true, ".txt": true, ".json": true, ".yaml": true, ".yml": true, ".csv": true,
}

// IndexDir indexes every text file under root as res://<relative path
// without extension>, using forward slashes. It returns the indexed ids.
func (x *Indexer) IndexDir(ctx context.Context, root string) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !textExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
		id := ResourceScheme + rel

		if err := x.IndexResource(ctx, id, string(data), map[string]any{"source": "file", "path": path}); err != nil {
			x.logger.Warn("file not indexed", zap.String("path", path), zap.Error(err))
			return nil
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return ids, fmt.Errorf("failed to index %s: %w", root, err)
	}
	return ids, nil
}
