package vision

import (
	"context"
	"errors"
	"fmt"

	"soa-extract/pkg/models"

	"google.golang.org/genai"
)

// VertexClient sends document images to a Gemini model hosted on Vertex AI
type VertexClient struct {
	client *genai.Client
	model  string
}

// NewVertexClient creates a Vertex AI backed client for model. Credentials
// come from the environment's application default credentials.
func NewVertexClient(ctx context.Context, project, region, model string) (*VertexClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  project,
		Location: region,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex ai client: %w", err)
	}

	return &VertexClient{
		client: client,
		model:  model,
	}, nil
}

// Model returns the model name requests are sent to
func (v *VertexClient) Model() string {
	return v.model
}

// GenerateJSON asks the model to answer prompt about img with JSON output
// and returns the raw response text.
func (v *VertexClient) GenerateJSON(ctx context.Context, img *models.Image, prompt string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(img.Data, img.MIMEType),
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := v.client.Models.GenerateContent(ctx, v.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", v.model, err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("model returned no text")
	}
	return text, nil
}
