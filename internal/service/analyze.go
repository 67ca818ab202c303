package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hairguard/hairguard/internal/blobstore"
	"github.com/hairguard/hairguard/internal/docstore"
	"github.com/hairguard/hairguard/internal/ml"
	"github.com/hairguard/hairguard/internal/models"
)

// Analyzer computes the density index of an uploaded photo and stores it.
type Analyzer struct {
	store          docstore.Store
	blobs          blobstore.Store
	model          ml.DensityModel
	localImagePath string
	logger         *zap.Logger
}

// NewAnalyzer returns an analyzer over deps.
func NewAnalyzer(deps Deps) *Analyzer {
	return &Analyzer{
		store:          deps.Store,
		blobs:          deps.Blobs,
		model:          deps.Density,
		localImagePath: deps.LocalImagePath,
		logger:         deps.Logger,
	}
}

// Analyze loads the photo, computes its density, records the deltas against
// the latest and the earliest stored results and marks the photo done.
func (a *Analyzer) Analyze(ctx context.Context, uid string, req models.AnalyzePhotoRequest) (*models.AnalyzePhotoResponse, error) {
	if !validSegment(req.PhotoID) {
		return nil, invalid("photoId is required")
	}
	if req.StoragePath == "" {
		return nil, invalid("storagePath is required")
	}

	data, err := a.loadImage(ctx, uid, req.StoragePath)
	if err != nil {
		a.logger.Warn("failed to load image",
			zap.String("uid", uid), zap.String("path", req.StoragePath), zap.Error(err))
		return nil, badRequest("Failed to load image", err)
	}

	result, err := a.model.ProcessImage(ctx, data, req.ROIPreset)
	if err != nil {
		a.logger.Warn("failed to analyze image", zap.String("uid", uid), zap.Error(err))
		return nil, badRequest("Failed to analyze image", err)
	}

	coll := docstore.UserItems(models.CollectionAnalysisResults, uid)
	var prev, base *float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prev, err = a.edgeDensity(gctx, coll, docstore.Desc)
		return err
	})
	g.Go(func() error {
		var err error
		base, err = a.edgeDensity(gctx, coll, docstore.Asc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read previous results: %w", err)
	}

	analysis := models.AnalysisResult{
		AnalysisID:   models.AnalysisIDFor(req.PhotoID),
		PhotoID:      req.PhotoID,
		DensityIndex: result.DensityIndex,
		DeltaVsPrev:  deltaFrom(result.DensityIndex, prev),
		DeltaVsBase:  deltaFrom(result.DensityIndex, base),
		Quality:      result.Quality,
		ROI:          &result.ROI,
		Method:       result.Method,
	}
	if err := a.store.Set(ctx, coll.Doc(analysis.AnalysisID), analysis.Data()); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	photo := docstore.UserItems(models.CollectionPhotos, uid).Doc(req.PhotoID)
	if err := a.store.Merge(ctx, photo, docstore.Data{"status": models.PhotoDone}); err != nil {
		return nil, fmt.Errorf("update photo status: %w", err)
	}

	a.logger.Info("photo analyzed",
		zap.String("uid", uid),
		zap.String("analysisId", analysis.AnalysisID),
		zap.Float64("densityIndex", analysis.DensityIndex))

	return &models.AnalyzePhotoResponse{
		DensityIndex: analysis.DensityIndex,
		DeltaVsPrev:  analysis.DeltaVsPrev,
		DeltaVsBase:  analysis.DeltaVsBase,
		Quality:      analysis.Quality,
		AnalysisID:   analysis.AnalysisID,
	}, nil
}

// loadImage prefers the LOCAL_IMAGE_PATH override when that file exists.
// Blob reads are limited to the caller's own partition.
func (a *Analyzer) loadImage(ctx context.Context, uid, storagePath string) ([]byte, error) {
	if a.localImagePath != "" {
		data, err := os.ReadFile(a.localImagePath)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if a.blobs == nil {
		return nil, errors.New("no blob store configured")
	}
	if !blobstore.OwnedBy(storagePath, uid) {
		return nil, fmt.Errorf("path %q is outside the caller's storage", storagePath)
	}
	return a.blobs.Get(ctx, storagePath)
}

func (a *Analyzer) edgeDensity(ctx context.Context, coll docstore.CollectionRef, dir docstore.Direction) (*float64, error) {
	snaps, err := a.store.Query(ctx, coll, docstore.Query{OrderBy: "computedAt", Direction: dir, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	v, ok := snaps[0].Number("densityIndex")
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func deltaFrom(current float64, ref *float64) float64 {
	if ref == nil {
		return 0
	}
	return current - *ref
}
