// Package server exposes the extraction and retrieval pipeline over HTTP:
// multipart OCR endpoints and JSON index/search endpoints.
package server

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mywind/docsearch/internal/models"
	"github.com/mywind/docsearch/internal/types"
	"github.com/mywind/docsearch/pkg/extract"
	"github.com/mywind/docsearch/pkg/rag"
)

type Config struct {
	Host     string
	Port     int
	MaxPages int
}

type Server struct {
	echo      *echo.Echo
	config    Config
	extractor *extract.Extractor
	rag       *rag.Service
	table     types.TableEngine
	logger    *zap.Logger
}

// New wires the HTTP surface. The table engine is optional: when nil the
// capability is reported as absent and /ocr/table answers 501.
func New(config Config, extractor *extract.Extractor, ragService *rag.Service, table types.TableEngine, logger *zap.Logger) (*Server, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if ragService == nil {
		return nil, fmt.Errorf("rag service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Host == "" {
		config.Host = "0.0.0.0"
	}
	if config.Port == 0 {
		config.Port = 9000
	}
	if config.MaxPages == 0 {
		config.MaxPages = 20
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		config:    config,
		extractor: extractor,
		rag:       ragService,
		table:     table,
		logger:    logger,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/ocr/image", s.handleOCRImage)
	s.echo.POST("/ocr/pdf", s.handleOCRPDF)
	s.echo.POST("/ocr/table", s.handleOCRTable)
	s.echo.POST("/index", s.handleIndex)
	s.echo.POST("/search", s.handleSearch)
	s.echo.GET("/rag/stats", s.handleStats)
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf("%s:%d", s.config.Host, s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routed handler for serving through a custom listener.
func (s *Server) Handler() http.Handler {
	return s.echo
}

type healthResponse struct {
	Status       string `json:"status"`
	OCREngine    string `json:"ocr_engine"`
	TableSupport bool   `json:"table_support"`
	PDFSupport   bool   `json:"pdf_support"`
	RAGSupport   bool   `json:"rag_support"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:       "ok",
		OCREngine:    s.extractor.EngineName(),
		TableSupport: s.table != nil,
		PDFSupport:   s.extractor.PDFSupported(),
		RAGSupport:   s.rag.Available(),
	})
}

type ocrImageResponse struct {
	Success    bool    `json:"success"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Elapse     float64 `json:"elapse"`
}

func (s *Server) handleOCRImage(c echo.Context) error {
	data, err := readUpload(c, func(fh *multipart.FileHeader) error {
		if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
			return echo.NewHTTPError(http.StatusBadRequest, "an image file is required")
		}
		return nil
	})
	if err != nil {
		return err
	}

	result, err := s.extractor.ExtractImage(c.Request().Context(), data)
	if err != nil {
		s.logger.Error("image extraction failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, ocrImageResponse{
		Success:    true,
		Text:       result.Text,
		Confidence: result.Confidence,
		Elapse:     result.Elapse.Seconds(),
	})
}

type ocrPDFResponse struct {
	Success    bool    `json:"success"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Pages      int     `json:"pages"`
}

func (s *Server) handleOCRPDF(c echo.Context) error {
	data, err := readUpload(c, func(fh *multipart.FileHeader) error {
		if fh.Header.Get("Content-Type") != "application/pdf" && !strings.HasSuffix(fh.Filename, ".pdf") {
			return echo.NewHTTPError(http.StatusBadRequest, "a PDF file is required")
		}
		return nil
	})
	if err != nil {
		return err
	}

	maxPages := s.config.MaxPages
	if v := c.FormValue("max_pages"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxPages = n
		}
	}

	result, err := s.extractor.ExtractPDF(c.Request().Context(), data, maxPages)
	if err != nil {
		s.logger.Error("pdf extraction failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, ocrPDFResponse{
		Success:    true,
		Text:       result.Text,
		Confidence: result.Confidence,
		Pages:      result.Pages,
	})
}

type ocrTableResponse struct {
	Success  bool    `json:"success"`
	Markdown string  `json:"markdown"`
	HTML     string  `json:"html"`
	Elapse   float64 `json:"elapse"`
}

func (s *Server) handleOCRTable(c echo.Context) error {
	if s.table == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "table recognition not available")
	}

	data, err := readUpload(c, func(fh *multipart.FileHeader) error {
		if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
			return echo.NewHTTPError(http.StatusBadRequest, "an image file is required")
		}
		return nil
	})
	if err != nil {
		return err
	}

	result, err := s.table.RecognizeTable(c.Request().Context(), data)
	if err != nil {
		s.logger.Error("table recognition failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, ocrTableResponse{
		Success:  true,
		Markdown: result.Markdown,
		HTML:     result.HTML,
		Elapse:   result.Elapse.Seconds(),
	})
}

func (s *Server) handleIndex(c echo.Context) error {
	var req rag.IndexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	return c.JSON(http.StatusOK, s.rag.Index(c.Request().Context(), req))
}

type searchResponse struct {
	Success bool               `json:"success"`
	Query   string             `json:"query"`
	Results []models.SearchHit `json:"results"`
	Count   int                `json:"count"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var req rag.SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	results := s.rag.Search(c.Request().Context(), req)
	if results == nil {
		results = []models.SearchHit{}
	}

	return c.JSON(http.StatusOK, searchResponse{
		Success: true,
		Query:   req.Query,
		Results: results,
		Count:   len(results),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.rag.Stats(c.Request().Context()))
}

// readUpload pulls the multipart "file" field, letting validate reject it by
// header before the body is read.
func readUpload(c echo.Context, validate func(*multipart.FileHeader) error) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if err := validate(fh); err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to open upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read upload")
	}
	return data, nil
}
