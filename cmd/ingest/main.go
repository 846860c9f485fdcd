// Command ingest OCRs and indexes documents in bulk: every PDF and image
// under a directory, or a single announcement page fetched by URL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/mywind/docsearch/internal/models"
	cfgPkg "github.com/mywind/docsearch/pkg/config"
	"github.com/mywind/docsearch/pkg/extract"
	"github.com/mywind/docsearch/pkg/fetcher"
	"github.com/mywind/docsearch/pkg/llm"
	"github.com/mywind/docsearch/pkg/ocr"
	"github.com/mywind/docsearch/pkg/pdfrender"
	"github.com/mywind/docsearch/pkg/rag"
	"github.com/mywind/docsearch/pkg/store"
)

func main() {
	var (
		configPath string
		dir        string
		pageURL    string
		source     string
		docType    string
	)

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&dir, "dir", "", "Directory of PDFs/images to ingest")
	flag.StringVar(&pageURL, "url", "", "Announcement page URL to fetch and index")
	flag.StringVar(&source, "source", "", "Source label for indexed documents")
	flag.StringVar(&docType, "type", "report", "Document type for indexed documents")
	flag.Parse()

	_ = godotenv.Load()

	if dir == "" && pageURL == "" {
		log.Fatal("either -dir or -url is required")
	}

	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config: %v", e)
		}
		os.Exit(1)
	}

	if err := run(cfg, dir, pageURL, source, docType); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func run(cfg *cfgPkg.Config, dir, pageURL, source, docType string) error {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   cfg.Embedding.Model,
		BaseURL: cfg.Embedding.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	vectorStore, err := store.NewWithConfig(store.Config{
		Backend:    cfg.Store.Backend,
		Path:       cfg.Store.Path,
		Collection: cfg.Store.Collection,
		ConnString: cfg.Store.URL,
		TableName:  cfg.Store.TableName,
		VectorDim:  cfg.Embedding.VectorDim,
	}, zap.NewNop())
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	ragService, err := rag.NewService(rag.ServiceConfig{
		ChunkSize:        cfg.Processor.ChunkSize,
		ChunkOverlap:     cfg.Processor.ChunkOverlap,
		MinContentLength: cfg.Processor.MinContentLength,
	}, embedder, vectorStore, zap.NewNop())
	if err != nil {
		return err
	}

	ctx := context.Background()

	if pageURL != "" {
		if err := ingestURL(ctx, cfg, ragService, pageURL, source, docType); err != nil {
			return err
		}
	}

	if dir != "" {
		if err := ingestDir(ctx, cfg, ragService, dir, source, docType); err != nil {
			return err
		}
	}

	return nil
}

func ingestURL(ctx context.Context, cfg *cfgPkg.Config, ragService *rag.Service, pageURL, source, docType string) error {
	f := fetcher.NewWithConfig(fetcher.Config{
		RateLimit: cfg.Fetcher.RateLimit,
	})

	color.Blue("Fetching %s", pageURL)
	doc, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to fetch page: %v", err)
	}

	if source == "" {
		source = doc.Source
	}
	metadata := doc.Metadata
	if doc.Title != "" {
		metadata["title"] = doc.Title
	}

	result := ragService.Index(ctx, rag.IndexRequest{
		Content:  doc.Content,
		Source:   source,
		DocType:  docType,
		Metadata: metadata,
	})
	if !result.Success {
		return fmt.Errorf("failed to index page: %s", result.Error)
	}

	color.Green("✓ Indexed %s into %d chunks (%d chars)", pageURL, result.ChunksIndexed, result.TotalChars)
	return nil
}

func ingestDir(ctx context.Context, cfg *cfgPkg.Config, ragService *rag.Service, dir, source, docType string) error {
	files, err := collectFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No PDFs or images found under %s", dir)
		return nil
	}

	engine := ocr.NewTesseractEngine(ocr.TesseractConfig{Languages: cfg.OCR.Languages})
	renderer := pdfrender.New(pdfrender.Config{DPI: cfg.OCR.DPI})
	extractor := extract.New(extract.Config{MaxPages: cfg.OCR.MaxPages}, engine, renderer, zap.NewNop())

	if source == "" {
		source = filepath.Base(dir)
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription(color.BlueString("Indexing documents...")),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)

	var indexed, failed int
	for _, path := range files {
		if err := ingestFile(ctx, extractor, ragService, path, source, docType); err != nil {
			failed++
			color.Red("\n%s: %v", path, err)
		} else {
			indexed++
		}
		bar.Add(1)
	}
	bar.Finish()

	color.Green("\n✓ Indexed %d documents, %d failed", indexed, failed)
	return nil
}

func ingestFile(ctx context.Context, extractor *extract.Extractor, ragService *rag.Service, path, source, docType string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var result models.ExtractionResult
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		result, err = extractor.ExtractPDF(ctx, data, 0)
	} else {
		result, err = extractor.ExtractImage(ctx, data)
	}
	if err != nil {
		return err
	}

	indexResult := ragService.Index(ctx, rag.IndexRequest{
		Content: result.Text,
		Source:  source,
		DocType: docType,
		Metadata: map[string]interface{}{
			"file":       filepath.Base(path),
			"pages":      result.Pages,
			"confidence": result.Confidence,
		},
	})
	if !indexResult.Success {
		return fmt.Errorf("index failed: %s", indexResult.Error)
	}
	return nil
}

func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
