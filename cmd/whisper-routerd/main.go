// Command whisper-routerd serves the query classification and memory
// retrieval API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/classifier"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/config"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/fusion"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/knowledge"
	knowledgepg "github.com/whisperengine-ai/whisperengine-v2-sub000/internal/knowledge/postgres"
	knowledgesqlite "github.com/whisperengine-ai/whisperengine-v2-sub000/internal/knowledge/sqlite"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/memory"
	memorypg "github.com/whisperengine-ai/whisperengine-v2-sub000/internal/memory/postgres"
	memorysqlite "github.com/whisperengine-ai/whisperengine-v2-sub000/internal/memory/sqlite"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/ports"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/router"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/server"
)

func main() {
	tuningPath := flag.String("tuning", "", "Path to classifier tuning YAML (overrides WHISPER_TUNING_PATH)")
	flag.Parse()

	logger := log.WithPrefix("routerd")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("load config", "err", err)
	}
	if *tuningPath != "" {
		cfg.Router.TuningPath = *tuningPath
	}

	tuning := config.DefaultTuning()
	if cfg.Router.TuningPath != "" {
		tuning, err = config.LoadTuning(cfg.Router.TuningPath)
		if err != nil {
			logger.Fatal("load tuning", "path", cfg.Router.TuningPath, "err", err)
		}
	}

	memStore, graphStore, err := openStores(cfg)
	if err != nil {
		logger.Fatal("open stores", "err", err)
	}
	defer memStore.Close()
	defer graphStore.Close()

	embedder, err := ports.NewCachingEmbedder(ports.StubEmbedder{}, 0)
	if err != nil {
		logger.Fatal("init embedder", "err", err)
	}

	engine := fusion.NewEngine(memStore, embedder)
	rt := router.New(classifier.New(tuning), engine, memStore, graphStore, cfg.Router)

	if cfg.Router.TuningPath != "" {
		watcher := config.NewTuningWatcher(cfg.Router.TuningPath, func(t config.Tuning) {
			rt.SetClassifier(classifier.New(t))
			logger.Info("classifier tuning reloaded", "path", cfg.Router.TuningPath)
		})
		if err := watcher.Start(); err != nil {
			logger.Warn("tuning watcher unavailable", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, rt)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server", "err", err)
	}
	logger.Info("shutdown complete")
}

// openStores builds the memory and knowledge stores for the configured
// engine. Both stores share one engine choice so a deployment never
// splits its data across backends.
func openStores(cfg *config.Config) (memory.Store, knowledge.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		memStore, err := memorypg.Open(cfg.Storage.PostgresDSN, cfg.Storage.Collection)
		if err != nil {
			return nil, nil, err
		}
		graphStore, err := knowledgepg.Open(cfg.Storage.PostgresDSN)
		if err != nil {
			_ = memStore.Close()
			return nil, nil, err
		}
		return memStore, graphStore, nil
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, nil, err
		}
		memStore, err := memorysqlite.Open(filepath.Join(cfg.Storage.DataPath, "memories.db"), cfg.Storage.Collection)
		if err != nil {
			return nil, nil, err
		}
		graphStore, err := knowledgesqlite.Open(filepath.Join(cfg.Storage.DataPath, "knowledge.db"))
		if err != nil {
			_ = memStore.Close()
			return nil, nil, err
		}
		return memStore, graphStore, nil
	}
}
