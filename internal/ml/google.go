package ml

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

// GoogleConfig holds configuration for the Vertex AI text model
type GoogleConfig struct {
	BaseConfig
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsFile string `json:"credentials_file"`
	Model           string `json:"model"`
}

// Load loads the Google configuration
func (c *GoogleConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "google", c); err != nil {
		return err
	}

	// Fall back to environment variables if not set
	c.ProjectID = envOr(c.ProjectID, "GOOGLE_CLOUD_PROJECT", envOr("", "GOOGLE_PROJECT_ID", ""))
	c.Location = envOr(c.Location, "GOOGLE_CLOUD_LOCATION", "us-central1")
	c.CredentialsFile = envOr(c.CredentialsFile, "GOOGLE_CREDENTIALS_FILE", "")
	c.Model = geminiModelName(c.Model)

	if c.ProjectID == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT is not set")
	}
	return nil
}

// GoogleModel generates text with Gemini through the Vertex AI SDK.
type GoogleModel struct {
	config GoogleConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// GoogleModelFactory implements TextModelFactory for Google models
type GoogleModelFactory struct {
	config GoogleConfig
}

// NewGoogleModelFactory creates a new Google model factory
func NewGoogleModelFactory(config GoogleConfig) *GoogleModelFactory {
	return &GoogleModelFactory{config: config}
}

// CreateTextModel creates a new Google model instance
func (f *GoogleModelFactory) CreateTextModel() (TextModel, error) {
	return &GoogleModel{config: f.config}, nil
}

// Load initializes the Google model
func (m *GoogleModel) Load(ctx context.Context) error {
	opts := []option.ClientOption{}
	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.config.Model)
	return nil
}

// Name implements TextModel.
func (m *GoogleModel) Name() string {
	return "gemini:" + m.config.Model
}

// Generate implements TextModel.
func (m *GoogleModel) Generate(ctx context.Context, prompt string) (string, error) {
	if m.model == nil {
		return "", fmt.Errorf("model not loaded")
	}

	resp, err := m.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to call ai: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response generated")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// Close releases the client.
func (m *GoogleModel) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}
