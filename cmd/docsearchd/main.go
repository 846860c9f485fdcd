package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mywind/docsearch/internal/types"
	cfgPkg "github.com/mywind/docsearch/pkg/config"
	"github.com/mywind/docsearch/pkg/extract"
	"github.com/mywind/docsearch/pkg/llm"
	"github.com/mywind/docsearch/pkg/ocr"
	"github.com/mywind/docsearch/pkg/pdfrender"
	"github.com/mywind/docsearch/pkg/rag"
	"github.com/mywind/docsearch/pkg/store"
	"github.com/mywind/docsearch/server"
)

func main() {
	var (
		configPath string
		host       string
		port       int
		dbURL      string
		ollamaURL  string
		storePath  string
		backend    string
		debug      bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&host, "host", "", "Listen host")
	flag.IntVar(&port, "port", 0, "Listen port")
	flag.StringVar(&dbURL, "db-url", "", "PostgreSQL connection string (pgvector backend)")
	flag.StringVar(&ollamaURL, "ollama-url", "", "Ollama server URL")
	flag.StringVar(&storePath, "store-path", "", "chromem persist directory")
	flag.StringVar(&backend, "store", "", "Vector store backend (chromem|pgvector)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; environment wins over file either way
	_ = godotenv.Load()

	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Command line flags override file and environment
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dbURL != "" {
		cfg.Store.URL = dbURL
	}
	if ollamaURL != "" {
		cfg.Embedding.BaseURL = ollamaURL
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	if backend != "" {
		cfg.Store.Backend = backend
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config: %v", e)
		}
		os.Exit(1)
	}

	logger, err := newLogger(debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *cfgPkg.Config, logger *zap.Logger) error {
	engine := ocr.NewTesseractEngine(ocr.TesseractConfig{
		Languages: cfg.OCR.Languages,
	})
	renderer := pdfrender.New(pdfrender.Config{DPI: cfg.OCR.DPI})

	extractor := extract.New(extract.Config{
		MaxPages: cfg.OCR.MaxPages,
	}, engine, renderer, logger)

	// The embedder and store are optional collaborators: without them the
	// OCR endpoints still work and retrieval degrades per its contract.
	var embedder types.Embedder
	if emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   cfg.Embedding.Model,
		BaseURL: cfg.Embedding.BaseURL,
	}); err != nil {
		logger.Warn("embedding model unavailable", zap.Error(err))
	} else {
		embedder = emb
	}

	var vectorStore types.VectorStore
	if vs, err := store.NewWithConfig(store.Config{
		Backend:    cfg.Store.Backend,
		Path:       cfg.Store.Path,
		Collection: cfg.Store.Collection,
		ConnString: cfg.Store.URL,
		TableName:  cfg.Store.TableName,
		VectorDim:  cfg.Embedding.VectorDim,
	}, logger); err != nil {
		logger.Warn("vector store unavailable", zap.Error(err))
	} else {
		vectorStore = vs
		defer vs.Close()
	}

	ragService, err := rag.NewService(rag.ServiceConfig{
		ChunkSize:        cfg.Processor.ChunkSize,
		ChunkOverlap:     cfg.Processor.ChunkOverlap,
		MinContentLength: cfg.Processor.MinContentLength,
	}, embedder, vectorStore, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Host:     cfg.Server.Host,
		Port:     cfg.Server.Port,
		MaxPages: cfg.OCR.MaxPages,
	}, extractor, ragService, nil, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("docsearchd started",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Backend),
		zap.Bool("rag", ragService.Available()),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
