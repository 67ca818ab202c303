package ml

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAIConfig configures the unified Gen AI SDK. With UseVertexAI the
// client talks to Vertex AI in Project/Location, otherwise to the Gemini API
// with APIKey.
type GenAIConfig struct {
	BaseConfig
	Model       string `json:"model"`
	UseVertexAI bool   `json:"use_vertexai"`
	Project     string `json:"project"`
	Location    string `json:"location"`
	APIKey      string `json:"api_key"`
}

// Load loads the GenAI configuration
func (c *GenAIConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "genai", c); err != nil {
		return err
	}
	c.Model = geminiModelName(c.Model)
	if !c.UseVertexAI {
		c.UseVertexAI = envBool("GOOGLE_GENAI_USE_VERTEXAI", false)
	}
	c.Project = envOr(c.Project, "GOOGLE_CLOUD_PROJECT", "")
	c.Location = envOr(c.Location, "GOOGLE_CLOUD_LOCATION", "global")
	c.APIKey = envOr(c.APIKey, "GOOGLE_API_KEY", envOr("", "GEMINI_API_KEY", ""))

	if c.UseVertexAI && c.Project == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required with GOOGLE_GENAI_USE_VERTEXAI")
	}
	if !c.UseVertexAI && c.APIKey == "" {
		return fmt.Errorf("GenAI API key is required")
	}
	return nil
}

func (c GenAIConfig) clientConfig() *genai.ClientConfig {
	cfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if c.UseVertexAI {
		cfg.Backend = genai.BackendVertexAI
		cfg.Project = c.Project
		cfg.Location = c.Location
	} else {
		cfg.Backend = genai.BackendGeminiAPI
		cfg.APIKey = c.APIKey
	}
	return cfg
}

// GenAIModel generates text through google.golang.org/genai.
type GenAIModel struct {
	config GenAIConfig
	client *genai.Client
}

// GenAIModelFactory implements TextModelFactory.
type GenAIModelFactory struct {
	config GenAIConfig
}

// NewGenAIModelFactory creates a new GenAI model factory
func NewGenAIModelFactory(config GenAIConfig) *GenAIModelFactory {
	return &GenAIModelFactory{config: config}
}

// CreateTextModel creates a new GenAI model instance
func (f *GenAIModelFactory) CreateTextModel() (TextModel, error) {
	return &GenAIModel{config: f.config}, nil
}

// Load creates the client.
func (m *GenAIModel) Load(ctx context.Context) error {
	client, err := genai.NewClient(ctx, m.config.clientConfig())
	if err != nil {
		return fmt.Errorf("failed to create GenAI client: %w", err)
	}
	m.client = client
	return nil
}

// Name implements TextModel.
func (m *GenAIModel) Name() string {
	return "gemini:" + m.config.Model
}

// Generate implements TextModel.
func (m *GenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	if m.client == nil {
		return "", fmt.Errorf("model not loaded")
	}
	resp, err := m.client.Models.GenerateContent(ctx, m.config.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}
