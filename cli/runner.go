// Command execution for CLI commands.
//
// Information Hiding:
// - Provider, embedder, index and MCP setup hidden
// - Wiring of retrieval and auto-indexing into the agent hidden
// - Output formatting hidden behind Printer

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/theseus/agent"
	"github.com/richinex/theseus/config"
	"github.com/richinex/theseus/embedding"
	"github.com/richinex/theseus/llm"
	"github.com/richinex/theseus/mcp"
	"github.com/richinex/theseus/retrieval"
	"github.com/richinex/theseus/storage"
	"github.com/richinex/theseus/tools"
)

// Options holds CLI execution options. Non-zero values override settings.
type Options struct {
	ConfigPath  string
	Provider    string
	MaxSteps    int
	ResourceDir string
	IndexPath   string
	MCPServers  []string
	MCPConfig   string
	Prompt      string
	Verbose     bool
	Plain       bool
	Out         io.Writer
	Logger      *zap.Logger
}

// App holds a fully wired question answering stack.
type App struct {
	settings  config.Settings
	logger    *zap.Logger
	printer   *Printer
	index     *storage.VectorIndex
	assembler *retrieval.Assembler
	indexer   *retrieval.Indexer
	results   *retrieval.ResultQueue
	registry  *tools.Registry
	mcp       *mcp.Group
	caller    tools.Caller
	agent     *agent.Agent
	verbose   bool
}

// Setup loads settings, creates the provider and wires the stack.
func Setup(ctx context.Context, opts Options) (*App, error) {
	settings, err := loadSettings(opts)
	if err != nil {
		return nil, err
	}
	provider, err := createProvider(settings)
	if err != nil {
		return nil, err
	}
	return NewApp(ctx, settings, provider, opts)
}

// NewApp wires the stack around an existing provider.
func NewApp(ctx context.Context, settings config.Settings, provider llm.Provider, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	app := &App{
		settings: settings,
		logger:   logger,
		printer:  NewPrinter(out, opts.Plain),
		registry: tools.NewRegistry(),
		verbose:  opts.Verbose,
	}

	embedder, err := createEmbedder(settings.Embedding)
	if err != nil {
		return nil, err
	}

	if settings.Storage.IndexPath != "" {
		app.index, err = storage.OpenVectorIndex(settings.Storage.IndexPath, storage.WithIndexLogger(logger))
	} else {
		app.index, err = storage.NewVectorIndex(storage.WithIndexLogger(logger))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	servers, err := mcpServers(opts.MCPServers, settings.Storage.MCPConfig)
	if err != nil {
		app.Close()
		return nil, err
	}
	if len(servers) > 0 {
		app.mcp, err = mcp.ConnectAll(ctx, servers, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect MCP servers: %w", err)
		}
	}

	rcfg := retrievalConfig(settings.Context)
	cache := retrieval.NewResourceCache(rcfg.CacheSize, rcfg.CacheTTL)
	asmOpts := []retrieval.Option{retrieval.WithCache(cache), retrieval.WithLogger(logger)}
	if app.mcp != nil {
		asmOpts = append(asmOpts, retrieval.WithResourceReader(app.mcp))
	}
	app.assembler = retrieval.NewAssembler(app.index, embedder, rcfg, asmOpts...)
	catalog := retrieval.NewCatalog()
	app.indexer = retrieval.NewIndexer(app.index, embedder, cache, logger).WithCatalog(catalog)
	if err := loadCatalog(ctx, app.index, catalog); err != nil {
		app.Close()
		return nil, err
	}

	if err := app.registry.Register(tools.NewFetchTool(tools.DefaultToolTimeout)); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.registry.Register(retrieval.NewSearchTool(app.assembler)); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.registry.Register(retrieval.NewListTool(catalog)); err != nil {
		app.Close()
		return nil, err
	}

	if err := app.populate(ctx, settings.Storage.ResourceDir); err != nil {
		app.Close()
		return nil, err
	}

	sources := []tools.Caller{app.registry}
	if app.mcp != nil {
		sources = append(sources, app.mcp)
	}
	app.caller = tools.Merge(sources...)

	app.results = app.indexer.Queue()
	agentOpts := []agent.Option{
		agent.WithContextProvider(app.assembler),
		agent.WithObserver(app.results.Observe),
		agent.WithLogger(logger),
	}
	if opts.Verbose {
		agentOpts = append(agentOpts, agent.WithObserver(app.printer.Step))
	}

	cfg := agent.NewBuilder("theseus").
		MaxSteps(settings.Agent.MaxSteps).
		DisplayField(settings.Agent.DisplayField)
	if settings.Agent.SystemPrompt != "" {
		cfg = cfg.SystemPrompt(settings.Agent.SystemPrompt)
	}
	if opts.Prompt != "" {
		if app.mcp == nil {
			app.Close()
			return nil, fmt.Errorf("prompt %q needs an MCP server", opts.Prompt)
		}
		text, err := resolveSystemPrompt(ctx, app.mcp, opts.Prompt)
		if err != nil {
			app.Close()
			return nil, err
		}
		cfg = cfg.SystemPrompt(text)
		logger.Info("using MCP prompt", zap.String("prompt", opts.Prompt))
	}
	app.agent = agent.New(cfg.Build(), provider, app.caller, agentOpts...)
	return app, nil
}

// populate indexes the resource directory and MCP resources.
func (a *App) populate(ctx context.Context, dir string) error {
	if dir != "" {
		ids, err := a.indexer.IndexDir(ctx, dir)
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", dir, err)
		}
		a.logger.Info("indexed resource directory", zap.String("dir", dir), zap.Int("resources", len(ids)))
	}
	if a.mcp != nil {
		ids, err := a.mcp.SyncResources(ctx, a.indexer)
		if err != nil {
			return fmt.Errorf("failed to sync MCP resources: %w", err)
		}
		a.logger.Info("indexed MCP resources", zap.Int("resources", len(ids)))
	}
	return nil
}

// Close releases MCP sessions and the index.
func (a *App) Close() error {
	var errs []error
	if a.mcp != nil {
		errs = append(errs, a.mcp.Close())
	}
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	return errors.Join(errs...)
}

// Ask answers a single question.
func (a *App) Ask(ctx context.Context, query string) error {
	result, err := a.agent.Run(ctx, query, nil)
	a.indexResults(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	a.printer.Answer(result)
	if a.verbose {
		a.printer.Stats(result)
	}
	return nil
}

// Chat runs an interactive session reading questions from in. History is
// persisted under sessionID in store.
func (a *App) Chat(ctx context.Context, in io.Reader, store storage.HistoryStore, sessionID string) error {
	if sessionID == "" {
		sessionID = "default"
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.printer.w, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.printer.w)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/reset":
			if err := store.Reset(ctx, sessionID); err != nil {
				return err
			}
			fmt.Fprintln(a.printer.w, "History cleared.")
			continue
		}

		history, err := store.Load(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		result, err := a.agent.Run(ctx, line, history)
		a.indexResults(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.printer.Errorf("Error: %v", err)
			continue
		}
		a.printer.Answer(result)
		if a.verbose {
			a.printer.Stats(result)
		}

		if err := store.Append(ctx, sessionID,
			llm.UserMessage(line),
			llm.AssistantMessage(result.Answer),
		); err != nil {
			return fmt.Errorf("failed to save history: %w", err)
		}
	}
}

// indexResults stores the tool results of the last run so later turns can
// retrieve them.
func (a *App) indexResults(ctx context.Context) {
	ids, err := a.results.Flush(ctx)
	if err != nil {
		a.logger.Warn("tool results not indexed", zap.Error(err))
		return
	}
	if len(ids) > 0 {
		a.logger.Debug("indexed tool results", zap.Int("results", len(ids)))
	}
}

// Search prints what retrieval would feed the model for query.
func (a *App) Search(ctx context.Context, query string) {
	bundle := a.assembler.Build(ctx, query, nil, nil)
	if bundle.EnhancedQuery != query {
		a.printer.dim.Fprintf(a.printer.w, "query: %s\n", bundle.EnhancedQuery)
	}
	if a.verbose {
		a.printer.Candidates(a.assembler.Retrieve(ctx, query, nil))
		fmt.Fprintln(a.printer.w)
	}
	a.printer.Resources(bundle.Resources)
}

// ListTools prints every tool the agent can call.
func (a *App) ListTools(verbose bool) {
	a.printer.Tools(a.caller.Descriptors(), verbose)
}

// ListPrompts prints the prompt templates of the connected MCP servers.
func (a *App) ListPrompts(ctx context.Context) error {
	if a.mcp == nil {
		a.printer.Prompts(nil)
		return nil
	}
	prompts, err := a.mcp.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list prompts: %w", err)
	}
	a.printer.Prompts(prompts)
	return nil
}

type promptSource interface {
	GetPrompt(ctx context.Context, name string, args map[string]string) (mcp.Prompt, error)
}

// resolveSystemPrompt renders an MCP prompt into agent instructions.
func resolveSystemPrompt(ctx context.Context, src promptSource, name string) (string, error) {
	p, err := src.GetPrompt(ctx, name, nil)
	if err != nil {
		return "", err
	}
	text := p.SystemText()
	if text == "" {
		return "", fmt.Errorf("prompt %q has no text", name)
	}
	return text, nil
}

// OpenHistory opens the SQLite history at path, or an in-memory store when path is empty.
func OpenHistory(path string) (storage.HistoryStore, func() error, error) {
	if path == "" {
		return storage.NewMemoryHistory(), func() error { return nil }, nil
	}
	h, err := storage.OpenSqliteHistory(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	return h, h.Close, nil
}

// Helper functions

// loadCatalog lists resources already present in a persistent index.
func loadCatalog(ctx context.Context, index *storage.VectorIndex, catalog *retrieval.Catalog) error {
	ids, err := index.IDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexed resources: %w", err)
	}
	for _, id := range ids {
		catalog.Add(id, "")
	}
	return nil
}

func loadSettings(opts Options) (config.Settings, error) {
	settings, err := config.Load(opts.ConfigPath, opts.Provider)
	if err != nil {
		return config.Settings{}, err
	}
	if opts.MaxSteps > 0 {
		settings.Agent.MaxSteps = opts.MaxSteps
	}
	if opts.ResourceDir != "" {
		settings.Storage.ResourceDir = opts.ResourceDir
	}
	if opts.IndexPath != "" {
		settings.Storage.IndexPath = opts.IndexPath
	}
	if opts.MCPConfig != "" {
		settings.Storage.MCPConfig = opts.MCPConfig
	}
	return settings, nil
}

func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	b := providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature))
	if settings.LLM.BaseURL != "" {
		b = b.BaseURL(settings.LLM.BaseURL)
	}
	return b.APIKey(apiKey)
}

func createEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	var apiKey string
	switch strings.ToLower(cfg.Provider) {
	case "openai", "gemini", "google":
		key, err := config.APIKeyFor(cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		apiKey = key
	}
	return embedding.New(embedding.Options{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		APIKey:     apiKey,
		Dimensions: cfg.Dimensions,
	})
}

func retrievalConfig(c config.ContextConfig) retrieval.Config {
	cfg := retrieval.DefaultConfig()
	cfg.TopK = c.TopK
	cfg.Threshold = c.Threshold
	cfg.ResourceBudget = c.ResourceBudget
	cfg.HistoryBudget = c.HistoryBudget
	cfg.Reserve = c.Reserve
	cfg.CacheSize = c.CacheSize
	cfg.CacheTTL = c.CacheTTL
	return cfg
}

// mcpServers merges servers from the config file with explicit command lines.
func mcpServers(commands []string, configPath string) ([]mcp.NamedServer, error) {
	var servers []mcp.NamedServer
	if configPath != "" {
		cfg, err := mcp.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load MCP config: %w", err)
		}
		servers = append(servers, cfg.Servers()...)
	}
	for _, line := range commands {
		s, err := mcp.ParseCommand(line)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, nil
}
