package ml

import (
	"context"
	"fmt"

	"github.com/hairguard/hairguard/internal/models"
)

// DensityModel turns a scalp photo into a density index.
type DensityModel interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// ProcessImage analyzes the region selected by roiPreset
	ProcessImage(ctx context.Context, imageData []byte, roiPreset string) (*DensityResult, error)
}

// DensityResult is the outcome of one density computation.
type DensityResult struct {
	DensityIndex float64
	Quality      models.Quality
	ROI          models.ROI
	Method       string
}

// TextModel generates free text from a prompt.
type TextModel interface {
	Load(ctx context.Context) error
	Generate(ctx context.Context, prompt string) (string, error)
	// Name is recorded next to generated reports, e.g. "gemini:gemini-2.5-flash".
	Name() string
}

// ModelFactory creates a new model instance based on configuration
type ModelFactory interface {
	CreateModel() (DensityModel, error)
}

// TextModelFactory creates text models.
type TextModelFactory interface {
	CreateTextModel() (TextModel, error)
}

// NewModel creates the density model named by modelType.
func NewModel(modelType, configPath string) (DensityModel, error) {
	var factory ModelFactory

	switch modelType {
	case "local", "":
		config := LocalConfig{BaseConfig: BaseConfig{ConfigPath: configPath}}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load local config: %w", err)
		}
		factory = NewLocalModelFactory(config)
	default:
		return nil, fmt.Errorf("unsupported model type: %s", modelType)
	}
	return factory.CreateModel()
}

// NewTextModel creates the text model named by modelType. "none" and ""
// return a nil model, which callers treat as generation disabled.
func NewTextModel(modelType, configPath string) (TextModel, error) {
	var factory TextModelFactory

	switch modelType {
	case "none", "":
		return nil, nil
	case "google":
		config := GoogleConfig{BaseConfig: BaseConfig{ConfigPath: configPath}}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load Google config: %w", err)
		}
		factory = NewGoogleModelFactory(config)
	case "genai":
		config := GenAIConfig{BaseConfig: BaseConfig{ConfigPath: configPath}}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load GenAI config: %w", err)
		}
		factory = NewGenAIModelFactory(config)
	default:
		return nil, fmt.Errorf("unsupported text model type: %s", modelType)
	}
	return factory.CreateTextModel()
}
