package ml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/hairguard/hairguard/internal/models"
)

// MethodThreshold labels results computed by LocalModel. The value is kept
// stable so stored results stay comparable.
const MethodThreshold = "pil_threshold_v1"

// ROIPresetCrown selects the crown region.
const ROIPresetCrown = "crown"

// Quality warnings.
const (
	WarnLowLight    = "low_light"
	WarnOverexposed = "overexposed"
	WarnBlur        = "blur"
)

// ErrInvalidImage is returned when the bytes do not decode as an image.
var ErrInvalidImage = errors.New("invalid image data")

// LocalConfig holds configuration for the local model
type LocalConfig struct {
	BaseConfig
	BlurSigma     float64 `json:"blur_sigma"`
	LowLight      float64 `json:"low_light"`
	Overexposed   float64 `json:"overexposed"`
	BlurThreshold float64 `json:"blur_threshold"`
}

// Load loads the local configuration
func (c *LocalConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "local", c); err != nil {
		return err
	}

	if c.BlurSigma == 0 {
		c.BlurSigma = envFloat("LOCAL_BLUR_SIGMA", 2)
	}
	if c.LowLight == 0 {
		c.LowLight = 70
	}
	if c.Overexposed == 0 {
		c.Overexposed = 200
	}
	if c.BlurThreshold == 0 {
		c.BlurThreshold = 80
	}
	return nil
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

// LocalModel computes the density index in process: the ROI is cropped,
// converted to grayscale and blurred, then pixels darker than the median are
// counted as hair.
type LocalModel struct {
	config LocalConfig
}

// LocalModelFactory implements ModelFactory for local models
type LocalModelFactory struct {
	config LocalConfig
}

// NewLocalModelFactory creates a new local model factory
func NewLocalModelFactory(config LocalConfig) *LocalModelFactory {
	return &LocalModelFactory{config: config}
}

// CreateModel creates a new local model instance
func (f *LocalModelFactory) CreateModel() (DensityModel, error) {
	return &LocalModel{config: f.config}, nil
}

// NewLocalModel returns a model with default thresholds.
func NewLocalModel() *LocalModel {
	return &LocalModel{config: LocalConfig{BlurSigma: 2, LowLight: 70, Overexposed: 200, BlurThreshold: 80}}
}

// Load implements DensityModel. There is nothing to load.
func (m *LocalModel) Load(ctx context.Context) error {
	return nil
}

// ProcessImage implements DensityModel.
func (m *LocalModel) ProcessImage(ctx context.Context, imageData []byte, roiPreset string) (*DensityResult, error) {
	img, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil, ErrInvalidImage
	}
	roi := roiFromPreset(width, height, roiPreset)

	cropped := imaging.Crop(img, roi.Add(b.Min))
	gray := imaging.Blur(imaging.Grayscale(cropped), m.config.BlurSigma)
	pixels, w, h := luminance(gray)

	threshold := medianThreshold(pixels)
	hair := 0
	for _, p := range pixels {
		if int(p) < threshold {
			hair++
		}
	}
	density := 0.0
	if len(pixels) > 0 {
		density = float64(hair) / float64(len(pixels))
	}

	return &DensityResult{
		DensityIndex: density,
		Quality:      m.quality(pixels, w, h),
		ROI: models.ROI{
			X: float64(roi.Min.X) / float64(width),
			Y: float64(roi.Min.Y) / float64(height),
			W: float64(roi.Dx()) / float64(width),
			H: float64(roi.Dy()) / float64(height),
		},
		Method: MethodThreshold,
	}, nil
}

func roiFromPreset(width, height int, preset string) image.Rectangle {
	x := int(float64(width) * 0.2)
	y := int(float64(height) * 0.2)
	if preset == ROIPresetCrown {
		y = int(float64(height) * 0.15)
	}
	w := int(float64(width) * 0.6)
	h := int(float64(height) * 0.6)
	return image.Rect(x, y, x+w, y+h)
}

// luminance flattens a grayscale NRGBA image into one byte per pixel.
func luminance(img *image.NRGBA) ([]uint8, int, int) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]uint8, 0, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			out = append(out, row[x*4])
		}
	}
	return out, w, h
}

// medianThreshold is the integer part of the median; with an even count the
// two middle values are averaged.
func medianThreshold(pixels []uint8) int {
	n := len(pixels)
	if n == 0 {
		return 0
	}
	var hist [256]int
	for _, p := range pixels {
		hist[p]++
	}
	nth := func(k int) int {
		seen := 0
		for v, c := range hist {
			seen += c
			if seen > k {
				return v
			}
		}
		return 255
	}
	lo, hi := nth((n-1)/2), nth(n/2)
	return (lo + hi) / 2
}

func (m *LocalModel) quality(pixels []uint8, w, h int) models.Quality {
	warnings := []string{}
	mean := meanOf(pixels)
	blur := gradientVariance(pixels, w, h)

	// NaN compares false, so an empty region raises no warnings.
	if mean < m.config.LowLight {
		warnings = append(warnings, WarnLowLight)
	}
	if mean > m.config.Overexposed {
		warnings = append(warnings, WarnOverexposed)
	}
	if blur < m.config.BlurThreshold {
		warnings = append(warnings, WarnBlur)
	}
	return models.Quality{
		Score:    math.Max(0, 1-0.2*float64(len(warnings))),
		Warnings: warnings,
	}
}

func meanOf(pixels []uint8) float64 {
	if len(pixels) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, p := range pixels {
		sum += float64(p)
	}
	return sum / float64(len(pixels))
}

// gradientVariance is var(horizontal differences) + var(vertical differences),
// a cheap sharpness measure.
func gradientVariance(pixels []uint8, w, h int) float64 {
	var dx, dy []float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := float64(pixels[y*w+x])
			if x+1 < w {
				dx = append(dx, float64(pixels[y*w+x+1])-p)
			}
			if y+1 < h {
				dy = append(dy, float64(pixels[(y+1)*w+x])-p)
			}
		}
	}
	return variance(dx) + variance(dy)
}

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	v := 0.0
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return v / float64(len(xs))
}
