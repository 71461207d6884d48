// Package llm computes bill splits with a Gemini model reading the receipt
// image.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/mmynk/receiptsplit/internal/calculator"
	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/internal/splitter"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 60 * time.Second

	maxImageBytes = 20 << 20
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("model returned no content")

	// ErrInvalidOutput wraps responses that do not match the schema.
	ErrInvalidOutput = errors.New("model output does not match the split schema")
)

var _ splitter.Computer = (*GeminiComputer)(nil)

// contentGenerator is the part of the genai client used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options configures a GeminiComputer.
type Options struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// GeminiComputer asks a Gemini model to split a receipt.
type GeminiComputer struct {
	gen     contentGenerator
	http    *http.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGeminiComputer creates a computer backed by the Gemini API.
func NewGeminiComputer(ctx context.Context, opts Options) (*GeminiComputer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGeminiComputer(client.Models, opts), nil
}

func newGeminiComputer(gen contentGenerator, opts Options) *GeminiComputer {
	c := &GeminiComputer{
		gen:     gen,
		http:    opts.HTTPClient,
		model:   opts.Model,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Compute fetches the receipt image, asks the model for a split and checks
// the answer. Structural problems in the answer are errors; conservation
// problems are attached as warnings.
func (c *GeminiComputer) Compute(ctx context.Context, req splitter.Request) (*calculator.BillSplitResult, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, splitter.ErrMissingImage
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	image, mimeType, err := c.fetchImage(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(req.Instruction),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    splitSchema(),
		Temperature:       genai.Ptr[float32](0),
	}

	resp, err := c.gen.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	result, err := DecodeSplit([]byte(text))
	if err != nil {
		return nil, err
	}

	// The model reports no receipt figures, so the aggregate checks reduce
	// to per-person consistency and the structural checks.
	report := calculator.Validate(result, calculator.ImpliedAggregate(result))
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}
	result.Warnings = report.Warnings

	c.logger.Info("split computed",
		"model", c.model,
		"people", len(result.People),
		"warnings", len(result.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// modelOutput is the JSON document the model returns.
type modelOutput struct {
	Items       []models.SplitLine `json:"items"`
	Explanation string             `json:"explanation"`
}

// DecodeSplit parses model output strictly: unknown fields are rejected and
// every person needs a name. A person without a breakdown is kept as
// unitemized.
func DecodeSplit(data []byte) (*calculator.BillSplitResult, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var out modelOutput
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}
	if out.Items == nil {
		return nil, fmt.Errorf("%w: missing items", ErrInvalidOutput)
	}
	for i, line := range out.Items {
		if strings.TrimSpace(line.Name) == "" {
			return nil, fmt.Errorf("%w: item %d has no name", ErrInvalidOutput, i+1)
		}
		if line.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: %s has a negative amount", ErrInvalidOutput, line.Name)
		}
	}
	return models.ResultFromLines(out.Items, out.Explanation), nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func (c *GeminiComputer) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image URL: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
