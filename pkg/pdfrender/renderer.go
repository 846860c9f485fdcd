// Package pdfrender rasterizes PDF pages for OCR using MuPDF via go-fitz.
// Pages are rendered one at a time so the extractor can bound peak memory on
// large documents.
package pdfrender

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"github.com/mywind/docsearch/internal/types"
)

type Config struct {
	DPI float64
}

type Renderer struct {
	dpi float64
}

func New(config Config) *Renderer {
	if config.DPI == 0 {
		config.DPI = 150 // balances quality against render time
	}
	return &Renderer{dpi: config.DPI}
}

// Open parses the PDF and returns a handle for page-by-page rendering. A
// malformed or unsupported document fails here, before any OCR work starts.
func (r *Renderer) Open(data []byte) (types.RenderedDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &renderedPDF{doc: doc, dpi: r.dpi}, nil
}

type renderedPDF struct {
	doc *fitz.Document
	dpi float64
}

func (d *renderedPDF) PageCount() int {
	return d.doc.NumPage()
}

// RenderPage rasterizes one zero-indexed page and returns it PNG-encoded,
// ready for the OCR engine.
func (d *renderedPDF) RenderPage(page int) ([]byte, error) {
	img, err := d.doc.ImageDPI(page, d.dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page+1, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", page+1, err)
	}
	return buf.Bytes(), nil
}

func (d *renderedPDF) Close() error {
	return d.doc.Close()
}
