package explain

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

const (
	defaultVertexModel = "gemini-1.5-flash"
	systemInstruction  = "You explain event search results to ticket buyers in a friendly, concise way."
)

// VertexGenerator answers prompts with a Gemini model on Vertex AI.
type VertexGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewVertexGenerator connects to Vertex AI. Credentials come from the
// environment (application default credentials).
func NewVertexGenerator(ctx context.Context, projectID, location, modelName string) (*VertexGenerator, error) {
	c, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	if modelName == "" {
		modelName = defaultVertexModel
	}

	m := c.GenerativeModel(modelName)
	m.SetTemperature(0.3)
	m.SetMaxOutputTokens(512)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}

	return &VertexGenerator{client: c, model: m, name: modelName}, nil
}

// Name returns the model name.
func (v *VertexGenerator) Name() string { return v.name }

// Generate returns the concatenated text parts of the first candidate.
func (v *VertexGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// Close releases the client.
func (v *VertexGenerator) Close() error { return v.client.Close() }
