// Package server wires all components and creates the MCP server
// instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools that depend on them. No business logic
// lives here — only wiring.
package server

import (
	"context"
	"log"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/trellis-dev/trellis/internal/chunker"
	"github.com/trellis-dev/trellis/internal/config"
	"github.com/trellis-dev/trellis/internal/embedding"
	"github.com/trellis-dev/trellis/internal/health"
	"github.com/trellis-dev/trellis/internal/journal"
	"github.com/trellis-dev/trellis/internal/pipeline"
	"github.com/trellis-dev/trellis/internal/prompts"
	"github.com/trellis-dev/trellis/internal/resolver"
	"github.com/trellis-dev/trellis/internal/resources"
	"github.com/trellis-dev/trellis/internal/scanner"
	"github.com/trellis-dev/trellis/internal/skeleton"
	"github.com/trellis-dev/trellis/internal/tools"
	"github.com/trellis-dev/trellis/internal/vectorstore"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function stops background workers and closes the
// journal database, and must be called on shutdown (typically via
// defer). It is always non-nil and safe to call even when the indexing
// subsystem failed to initialize.
func New() (*server.MCPServer, func(), error) {
	cfg := config.Load()

	// --- Hierarchy subsystem: scanner, cache, resolver ---

	fileScanner := scanner.NewFileScanner(cfg.ScanRoot)
	cache := skeleton.NewCache(fileScanner, skeleton.WithStaleness(cfg.Staleness))
	hier := resolver.NewService(cache, resolver.Options{
		PrefixLen:  cfg.PrefixLen,
		StrictMode: cfg.StrictResolve,
	})

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Filesystem watcher marks the cache dirty so the next query
	// rescans immediately instead of waiting out the staleness window.
	// Watch failures degrade to time-based freshness only.
	if cfg.Watch {
		watcher, err := scanner.Watch(cfg.ScanRoot, cache.MarkDirty, cache.Invalidate)
		if err != nil {
			log.Printf("WARNING: filesystem watch disabled: %v", err)
		} else {
			cleanups = append(cleanups, func() {
				if err := watcher.Close(); err != nil {
					log.Printf("WARNING: watcher close: %v", err)
				}
			})
		}
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"trellis",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register hierarchy tools ---

	childrenTool := tools.NewTaskChildrenTool(hier)
	s.AddTool(childrenTool.Definition(), childrenTool.Handle)

	parentTool := tools.NewTaskParentTool(hier)
	s.AddTool(parentTool.Definition(), parentTool.Handle)

	treeTool := tools.NewTaskTreeTool(hier)
	s.AddTool(treeTool.Definition(), treeTool.Handle)

	// --- Indexing subsystem ---
	//
	// Indexing is independent: if the embedding credentials are missing
	// or the journal cannot open, hierarchy tools continue working. We
	// log a warning and skip indexing tool registration.

	var jrnl *journal.Journal
	if cfg.IndexingEnabled() {
		var err error
		jrnl, err = journal.New(journal.Config{DataDir: cfg.DataDir})
		if err != nil {
			log.Printf("WARNING: indexing subsystem disabled: %v", err)
		} else {
			cleanups = append(cleanups, func() {
				if err := jrnl.Close(); err != nil {
					log.Printf("WARNING: journal close: %v", err)
				}
			})

			embedder := embedding.NewClient(embedding.Config{
				BaseURL:   cfg.EmbeddingBaseURL,
				APIKey:    cfg.EmbeddingAPIKey,
				Model:     cfg.EmbeddingModel,
				Dimension: cfg.EmbeddingDim,
			})
			store := vectorstore.NewClient(vectorstore.Config{
				BaseURL:    cfg.StoreURL,
				APIKey:     cfg.StoreAPIKey,
				Collection: cfg.StoreCollection,
			})
			// Create the collection up front so the first upsert never
			// races collection creation. Failure is logged, not fatal —
			// the store may simply not be up yet.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := store.EnsureCollection(ctx, cfg.EmbeddingDim); err != nil {
					log.Printf("WARNING: ensuring collection %s: %v", store.Collection(), err)
				}
			}()

			limiter := vectorstore.NewLimiter(vectorstore.DefaultMinInterval)
			cleanups = append(cleanups, limiter.Close)
			upserter := vectorstore.NewUpserter(store, limiter)

			extractor := chunker.NewExtractor(cache)
			pipe := pipeline.New(extractor, cache, embedder, upserter, jrnl, hier.ParentsOf)

			monitor := health.NewMonitor(store)
			monitor.Start(0)
			cleanups = append(cleanups, monitor.Stop)

			indexTool := tools.NewTaskIndexTool(pipe, hier)
			s.AddTool(indexTool.Definition(), indexTool.Handle)

			searchTool := tools.NewTaskSearchTool(embedder, store)
			s.AddTool(searchTool.Definition(), searchTool.Handle)

			resetTool := tools.NewIndexResetTool(store, jrnl, cfg.EmbeddingDim)
			s.AddTool(resetTool.Definition(), resetTool.Handle)

			statsTool := tools.NewIndexStatsTool(jrnl, monitor)
			s.AddTool(statsTool.Definition(), statsTool.Handle)

			healthTool := tools.NewStoreHealthTool(monitor)
			s.AddTool(healthTool.Definition(), healthTool.Handle)
		}
	} else {
		log.Printf("WARNING: indexing subsystem disabled: TRELLIS_EMBEDDING_API_KEY not set")
	}

	// --- Register prompts and resources ---

	explorePrompt := prompts.NewExplorePrompt()
	s.AddPrompt(explorePrompt.Definition(), explorePrompt.Handle)

	resourceHandler := resources.NewHandler(cache, jrnl)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	return s, cleanup, nil
}

// serverInstructions returns the system instructions that tell the AI
// how to use trellis effectively.
func serverInstructions() string {
	return `You have access to Trellis, an MCP server that reconstructs and indexes
agent task hierarchies from transcript files.

## What Trellis does

Agent frameworks spawn subtasks whose transcripts often lose the explicit
parent/child link. Trellis rebuilds that hierarchy: it scans transcript files,
extracts the delegation text each task declared, and matches every task's
opening instruction against those declarations. Each reconstructed link
carries a resolution method and confidence:

- explicit (1.00): the transcript recorded the parent directly
- exact_prefix_unique (0.85): exactly one declared delegation matched
- exact_prefix_disambiguated (0.65): several matched; heuristics picked one
- root_fallback (0.30): nothing matched; the task is treated as a root

Treat confidence as provenance, not truth: a 0.30 link means "unknown", not
"weakly related".

## Hierarchy tools (always available)

- task_tree: render the forest or one subtree as an outline
- task_parent: show one task's resolved parent with method and confidence
- task_children: list a task's children in delegation order

## Indexing tools (require embedding credentials)

- task_index: chunk, embed, and upsert one task's content. The result always
  says how many chunks were indexed — zero always comes with a reason.
- task_search: semantic search over indexed chunks, filterable by task or
  workspace
- index_stats: journal aggregates plus the live point count
- index_reset: drop and recreate the collection (requires confirm=true)
- store_health: the vector store's own view of the collection

## Usage guidance

1. Start with task_tree to orient yourself in the forest
2. Question low-confidence links before relying on them — task_parent shows
   how each link was established
3. Index tasks before searching: task_search only sees indexed content
4. Re-running task_index is safe — chunk IDs are deterministic, so
   re-indexing replaces rather than duplicates`
}
