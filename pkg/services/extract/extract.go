package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"soa-extract/pkg/models"
	"soa-extract/pkg/services/vision"
)

// Generator is the vision-language model the service talks to
type Generator interface {
	GenerateJSON(ctx context.Context, img *models.Image, prompt string) (string, error)
}

// Resolver maps an image reference path onto a file on disk
type Resolver interface {
	Resolve(ref string) (string, error)
}

// ModelError is returned when the model call itself fails
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model invocation failed: %v", e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// ResponseError is returned when the model answer is not valid JSON
type ResponseError struct {
	Raw string
	Err error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("model returned invalid JSON: %v", e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// Service runs the extraction pipeline for one request at a time. It holds no
// per-request state and may be shared between handlers.
type Service struct {
	resolver     Resolver
	generator    Generator
	maxDimension int
}

// NewService creates an extraction service. maxDimension of 0 sends images
// at their stored size.
func NewService(resolver Resolver, generator Generator, maxDimension int) *Service {
	return &Service{
		resolver:     resolver,
		generator:    generator,
		maxDimension: maxDimension,
	}
}

// Extract pulls the rows described by req out of its image and returns the
// model's JSON unchanged.
func (s *Service) Extract(ctx context.Context, req models.ExtractionRequest) (json.RawMessage, error) {
	// 1. Resolve the image reference, nothing else runs if it is missing
	path, err := s.resolver.Resolve(req.ImagePath)
	if err != nil {
		return nil, err
	}

	// 2. Load the image
	img, err := vision.LoadImage(path, s.maxDimension)
	if err != nil {
		return nil, err
	}

	// 3. Compose the prompt from the boxes and rules
	prompt := BuildPrompt(req)

	// 4. Ask the model
	start := time.Now()
	raw, err := s.generator.GenerateJSON(ctx, img, prompt)
	if err != nil {
		return nil, &ModelError{Err: err}
	}
	slog.DebugContext(ctx, "model responded",
		"image", path,
		"boxes", len(req.UserBoxes),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	// 5. Normalize and parse
	return NormalizeResponse(raw)
}

// NormalizeResponse strips markdown code fences around the model output and
// checks that what remains is JSON.
func NormalizeResponse(raw string) (json.RawMessage, error) {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	var out json.RawMessage
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, &ResponseError{Raw: raw, Err: err}
	}
	return out, nil
}
