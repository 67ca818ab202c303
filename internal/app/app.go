// Package app opens the configured backends and wires them into the server
// and the client flows. Both binaries go through here.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/api"
	"github.com/hairguard/hairguard/internal/auth"
	"github.com/hairguard/hairguard/internal/blobstore"
	"github.com/hairguard/hairguard/internal/checkin"
	"github.com/hairguard/hairguard/internal/config"
	"github.com/hairguard/hairguard/internal/dashboard"
	"github.com/hairguard/hairguard/internal/docstore"
	"github.com/hairguard/hairguard/internal/foodsniper"
	"github.com/hairguard/hairguard/internal/mentalshield"
	"github.com/hairguard/hairguard/internal/ml"
	"github.com/hairguard/hairguard/internal/server"
	"github.com/hairguard/hairguard/internal/service"
	"github.com/hairguard/hairguard/internal/session"
)

// Backend is everything the agent API runs on.
type Backend struct {
	cfg      *config.Config
	logger   *zap.Logger
	Store    docstore.Store
	Blobs    blobstore.Store
	Verifier auth.Verifier
	Density  ml.DensityModel
	Text     ml.TextModel
}

// OpenBackend opens storage, the token verifier and both models. On error
// whatever was already opened is closed again.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (b *Backend, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opened := &Backend{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = opened.Close()
		}
	}()
	b = opened

	b.Store, err = openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	b.Blobs, err = openBlobs(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	switch cfg.Auth.Mode {
	case "firebase":
		b.Verifier, err = auth.NewFirebaseVerifier(ctx, cfg.Auth.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create token verifier: %w", err)
		}
	default:
		b.Verifier = auth.NewDevVerifier(cfg.Auth.DevSecret)
	}

	b.Density, err = ml.NewModel(cfg.ML.Type, cfg.ML.DensityConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create ML model: %w", err)
	}
	if err = b.Density.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load ML model: %w", err)
	}

	b.Text, err = ml.NewTextModel(cfg.ML.TextType, cfg.ML.TextConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create text model: %w", err)
	}
	if b.Text != nil {
		if err = b.Text.Load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load text model: %w", err)
		}
		logger.Info("text generation enabled", zap.String("model", b.Text.Name()))
	}
	return b, nil
}

// Service builds the API operations on top of the backend.
func (b *Backend) Service() *service.Service {
	return service.New(service.Deps{
		Store:          b.Store,
		Blobs:          b.Blobs,
		Density:        b.Density,
		Text:           b.Text,
		LocalImagePath: b.cfg.Server.LocalImagePath,
		Logger:         b.logger,
	})
}

// Server builds the HTTP server.
func (b *Backend) Server() *server.Server {
	return server.New(server.Options{
		Service:        b.Service(),
		Verifier:       b.Verifier,
		AllowedOrigins: b.cfg.Server.AllowedOrigins,
		DebugAuth:      b.cfg.Server.DebugAuth,
		Logger:         b.logger,
	})
}

// Close releases every backend that holds a connection.
func (b *Backend) Close() error {
	var errs []error
	if c, ok := b.Text.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if b.Blobs != nil {
		errs = append(errs, b.Blobs.Close())
	}
	if b.Store != nil {
		errs = append(errs, b.Store.Close())
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (docstore.Store, error) {
	store, err := docstore.Open(ctx, docstore.Options{
		Backend:   cfg.Store.Backend,
		Path:      cfg.Store.Path,
		DSN:       cfg.Store.DSN,
		ProjectID: cfg.Store.ProjectID,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	return store, nil
}

func openBlobs(ctx context.Context, cfg *config.Config, logger *zap.Logger) (blobstore.Store, error) {
	blobs, err := blobstore.Open(ctx, blobstore.Options{
		Backend: cfg.Blobs.Backend,
		Dir:     cfg.Blobs.Dir,
		Bucket:  cfg.Blobs.Bucket,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	return blobs, nil
}

// Client is the signed-in side: identity, the API client and direct storage
// access for the screens that read documents themselves.
type Client struct {
	cfg      *config.Config
	logger   *zap.Logger
	Provider auth.Provider
	Guard    *session.Guard
	API      *api.Client
	Store    docstore.Store
	Blobs    blobstore.Store
}

// OpenClient opens the identity provider and storage for cfg.
func OpenClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (c *Client, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opened := &Client{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = opened.Close()
		}
	}()
	c = opened

	switch cfg.Auth.Mode {
	case "firebase":
		c.Provider, err = auth.NewFirebaseProvider(cfg.Auth.APIKey, cfg.Client.SessionFile)
	default:
		c.Provider, err = auth.NewDevProvider(cfg.Auth.DevSecret, cfg.Client.SessionFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create identity provider: %w", err)
	}
	c.Guard = session.NewGuard(c.Provider)
	c.API = api.New(cfg.APIBase(), api.WithLogger(logger))

	c.Store, err = openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Blobs, err = openBlobs(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Locator returns the configured fixed location, or NoLocator.
func (c *Client) Locator() foodsniper.Locator {
	if c.cfg.Client.Latitude != nil && c.cfg.Client.Longitude != nil {
		return foodsniper.StaticLocator{Lat: *c.cfg.Client.Latitude, Lng: *c.cfg.Client.Longitude}
	}
	return foodsniper.NoLocator{}
}

// Flows are the client screens.
type Flows struct {
	CheckIn *checkin.Flow
	Series  *dashboard.Series
	Reports *dashboard.Reports
	Food    *foodsniper.Flow
	Chat    *mentalshield.Flow
}

// Flows builds a fresh set of screens bound to the signed-in identity.
func (c *Client) Flows() *Flows {
	return &Flows{
		CheckIn: checkin.New(checkin.Deps{
			Identity: c.Guard,
			Store:    c.Store,
			Blobs:    c.Blobs,
			API:      c.API,
			Logger:   c.logger,
		}),
		Series:  dashboard.NewSeries(c.Guard, c.Store, dashboard.WithLogger(c.logger)),
		Reports: dashboard.NewReports(c.Guard, c.API, c.logger),
		Food:    foodsniper.New(c.Guard, c.API, c.Locator(), foodsniper.NewHistory(c.Store), c.logger),
		Chat:    mentalshield.New(c.Guard, c.API, c.logger),
	}
}

// Close stops the guard and closes storage.
func (c *Client) Close() error {
	if c.Guard != nil {
		c.Guard.Close()
	}
	var errs []error
	if c.Blobs != nil {
		errs = append(errs, c.Blobs.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
