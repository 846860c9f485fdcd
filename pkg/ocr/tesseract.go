package ocr

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/mywind/docsearch/internal/models"
)

// TesseractConfig selects the recognition languages, e.g. {"chi_sim", "eng"}
// for the Hong Kong filings corpus.
type TesseractConfig struct {
	Languages []string
}

// TesseractEngine recognizes text with a fresh gosseract client per call.
// Clients are not safe for concurrent use, so per-call construction keeps the
// engine itself stateless and concurrency-safe.
type TesseractEngine struct {
	config        TesseractConfig
	clientFactory func() *gosseract.Client
}

func NewTesseractEngine(config TesseractConfig) *TesseractEngine {
	if len(config.Languages) == 0 {
		config.Languages = []string{"eng"}
	}
	return &TesseractEngine{
		config:        config,
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs OCR over one encoded image and reports the recognized text
// with the mean word confidence as a percentage. An image with no recognized
// text yields an empty result with zero confidence, not an error.
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte) (models.Recognition, error) {
	select {
	case <-ctx.Done():
		return models.Recognition{}, ctx.Err()
	default:
	}

	start := time.Now()

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return models.Recognition{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(e.config.Languages...); err != nil {
		return models.Recognition{}, fmt.Errorf("set languages: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return models.Recognition{}, fmt.Errorf("recognize text: %w", err)
	}
	plain := strings.TrimSpace(text)

	var confidence float64
	if plain != "" {
		confidence = wordConfidence(c)
	}

	return models.Recognition{
		Text:       plain,
		Confidence: confidence,
		Elapse:     time.Since(start),
	}, nil
}

// wordConfidence averages per-word confidences, already on the 0-100 scale.
func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return math.Round(sum/float64(len(boxes))*10) / 10
}
