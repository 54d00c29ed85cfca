package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/amanmcp-core/amanmcp-core/internal/chunk"
	"github.com/amanmcp-core/amanmcp-core/internal/corpus"
	"github.com/amanmcp-core/amanmcp-core/internal/daemon"
	"github.com/amanmcp-core/amanmcp-core/internal/embed"
	"github.com/amanmcp-core/amanmcp-core/internal/meaningpack"
	"github.com/amanmcp-core/amanmcp-core/internal/modelindex"
	"github.com/amanmcp-core/amanmcp-core/internal/scanner"
	"github.com/amanmcp-core/amanmcp-core/internal/search"
)

// dataDirName is the per-project directory holding the corpus snapshot and
// every model's vector index.
const dataDirName = ".amanmcp-core"

// pingTTL is how long a daemon-side worker is told to stay warm after this
// process touches its project, giving other CLI invocations (status,
// concurrent searches) a resident copy without paying reconciliation cost.
const pingTTL = 10 * time.Minute

// Resolver is the concrete mcp.ProjectResolver: one project bundle per
// resolved root, built and reconciled lazily on first use. A daemon client
// is pinged fire-and-forget each time Engine resolves a root so a separately running
// daemon process (if any) keeps a warm copy resident; the daemon's wire
// protocol never carries the search itself (see internal/daemon/protocol.go).
type Resolver struct {
	daemonClient *daemon.Client

	mu      sync.Mutex
	bundles map[string]*projectBundle
}

// NewResolver constructs a Resolver. daemonClient may be nil, which simply
// disables the warm-daemon ping.
func NewResolver(daemonClient *daemon.Client) *Resolver {
	return &Resolver{
		daemonClient: daemonClient,
		bundles:      make(map[string]*projectBundle),
	}
}

// projectBundle holds one root's indexer and query engine, plus the
// embedder they share. Meaning-pack generators are not cached here; the
// Resolver builds a fresh one per Generator call.
type projectBundle struct {
	root     string
	indexer  *modelindex.MultiModelProjectIndexer
	engine   *search.QueryEngine
	embedder embed.Embedder

	once     sync.Once
	indexErr error
}

// Engine implements mcp.ProjectResolver.
func (r *Resolver) Engine(root string) (search.Engine, error) {
	b, err := r.bundleFor(root)
	if err != nil {
		return nil, err
	}
	b.once.Do(func() {
		_, b.indexErr = b.indexer.Reconcile(context.Background())
	})
	if b.indexErr != nil {
		return nil, fmt.Errorf("amanmcpcore: initial index of %s: %w", root, b.indexErr)
	}
	r.pingDaemon(root, b.indexer.ActiveModels())
	return b.engine, nil
}

// Generator implements mcp.ProjectResolver. Unlike Engine, it does not
// force a reconciliation: meaning-pack tools read the project tree
// directly rather than the chunk corpus.
func (r *Resolver) Generator(root string) (*meaningpack.Generator, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("amanmcpcore: new scanner: %w", err)
	}
	return meaningpack.NewGenerator(root, root, sc), nil
}

// bundleFor returns root's cached bundle, building one on first request.
func (r *Resolver) bundleFor(root string) (*projectBundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bundles[root]; ok {
		return b, nil
	}

	b, err := newProjectBundle(root)
	if err != nil {
		return nil, err
	}
	r.bundles[root] = b
	return b, nil
}

// pingDaemon best-effort notifies a separately running daemon that root is
// active, widening its resident model roster. Failures are logged at debug
// level only: the daemon is an optimization, never a dependency of search.
func (r *Resolver) pingDaemon(root string, models []string) {
	if r.daemonClient == nil || !r.daemonClient.IsRunning() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.daemonClient.Ping(ctx, root, pingTTL.Milliseconds(), models); err != nil {
			slog.Debug("daemon ping failed", slog.String("root", root), slog.String("error", err.Error()))
		}
	}()
}

// newProjectBundle wires one project's corpus, multi-model indexer, and
// query engine around the default embedder, grounded on
// internal/daemon/testing_helpers_test.go's WorkerFactory wiring pattern.
func newProjectBundle(root string) (*projectBundle, error) {
	ctx := context.Background()

	embedder, err := embed.NewDefaultEmbedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("amanmcpcore: new embedder: %w", err)
	}

	dataDir := filepath.Join(root, dataDirName)
	corpusPath := filepath.Join(dataDir, "corpus.json")
	chunkCorpus, err := corpus.Load(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("amanmcpcore: load corpus: %w", err)
	}

	modelID := embedder.ModelName()
	provider := func(string) (modelindex.Embedder, error) { return embedder, nil }

	idx := modelindex.New(root, dataDir, chunkCorpus, chunk.NewCodeChunker(), chunk.NewMarkdownChunker(), provider)
	if err := idx.SetModels([]modelindex.ModelIndexSpec{
		{ModelID: modelID, Templates: modelindex.DefaultTemplates()},
	}); err != nil {
		return nil, fmt.Errorf("amanmcpcore: set models: %w", err)
	}

	profile := search.DefaultProfile([]string{modelID})
	engine := search.NewQueryEngine(idx, provider, profile)

	return &projectBundle{
		root:     root,
		indexer:  idx,
		engine:   engine,
		embedder: embedder,
	}, nil
}

// newWorkerFactory builds the daemon pool's WorkerFactory around the same
// indexer construction newProjectBundle uses for the in-process resolver,
// so a root reconciled by the daemon and one reconciled cold by a CLI
// invocation build byte-identical on-disk snapshots.
func newWorkerFactory() daemon.WorkerFactory {
	return daemon.WorkerFactory{
		NewIndexer: func(root string) (*modelindex.MultiModelProjectIndexer, error) {
			b, err := newProjectBundle(root)
			if err != nil {
				return nil, err
			}
			return b.indexer, nil
		},
		PrimaryModel: func() modelindex.ModelIndexSpec {
			embedder, err := embed.NewDefaultEmbedder(context.Background())
			if err != nil {
				return modelindex.ModelIndexSpec{ModelID: "static768", Templates: modelindex.DefaultTemplates()}
			}
			return modelindex.ModelIndexSpec{ModelID: embedder.ModelName(), Templates: modelindex.DefaultTemplates()}
		},
		ModelNeedsRefresh: func(root, modelID string) bool {
			dataDir := filepath.Join(root, dataDirName)
			_, err := os.Stat(modelindex.SnapshotPath(dataDir, modelID))
			return os.IsNotExist(err)
		},
	}
}

// saveCorpus persists the bundle's chunk corpus, used by the index command
// after a successful reconciliation so the next cold start skips reparsing
// unchanged files.
func (b *projectBundle) saveCorpus() error {
	dataDir := filepath.Join(b.root, dataDirName)
	return b.indexer.Corpus.Save(filepath.Join(dataDir, "corpus.json"))
}
