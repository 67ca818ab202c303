package foodsniper

import (
	"context"
	"errors"

	"github.com/hairguard/hairguard/internal/models"
)

// ErrLocationUnsupported is returned by locators on platforms without a
// position source.
var ErrLocationUnsupported = errors.New("foodsniper: location not supported")

// LocateOptions mirror a one-shot geolocation request.
type LocateOptions struct {
	HighAccuracy bool
}

// Locator obtains the device position. Implementations must honour ctx's
// deadline.
type Locator interface {
	Locate(ctx context.Context, opts LocateOptions) (models.Location, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, opts LocateOptions) (models.Location, error)

// Locate implements Locator.
func (f LocatorFunc) Locate(ctx context.Context, opts LocateOptions) (models.Location, error) {
	return f(ctx, opts)
}

// StaticLocator always reports the same position, e.g. one given on the
// command line or in the config file.
type StaticLocator struct {
	Lat, Lng float64
}

// Locate implements Locator.
func (s StaticLocator) Locate(ctx context.Context, _ LocateOptions) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, err
	}
	return models.Location{Lat: s.Lat, Lng: s.Lng}, nil
}

// NoLocator is used when no position source is configured.
type NoLocator struct{}

// Locate implements Locator.
func (NoLocator) Locate(context.Context, LocateOptions) (models.Location, error) {
	return models.Location{}, ErrLocationUnsupported
}
