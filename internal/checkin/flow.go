// Package checkin turns a selected scalp photo into a stored photo record and
// an analysis result: upload, record, analyze, persist, in that order.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/api"
	"github.com/hairguard/hairguard/internal/blobstore"
	"github.com/hairguard/hairguard/internal/docstore"
	"github.com/hairguard/hairguard/internal/models"
	"github.com/hairguard/hairguard/internal/session"
)

// Status of the flow.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusAnalyzing Status = "analyzing"
	StatusDone      Status = "done"
	StatusError     Status = "error"
)

// Busy reports whether an operation is in flight.
func (s Status) Busy() bool {
	return s == StatusUploading || s == StatusAnalyzing
}

// ROIPreset is the region of interest sent with every analysis.
const ROIPreset = "crown"

// User-visible messages.
const (
	msgAnalyzeFailed = "解析APIの呼び出しに失敗しました。"
	msgUnknown       = "不明なエラーが発生しました。"
)

var (
	// ErrBusy is returned when an operation is already in flight.
	ErrBusy = errors.New("checkin: operation in progress")
	// ErrNoFile is returned by Select for an empty file.
	ErrNoFile = errors.New("checkin: no file selected")
)

// isoMillis matches JavaScript's Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z"

// Analyzer is the part of the agent API the flow calls.
type Analyzer interface {
	AnalyzePhoto(ctx context.Context, token string, req models.AnalyzePhotoRequest) (*models.AnalyzePhotoResponse, error)
}

// Deps are the collaborators of a Flow.
type Deps struct {
	Identity   session.Identity
	Store      docstore.Store
	Blobs      blobstore.Store
	API        Analyzer
	Now        func() time.Time
	NewPhotoID func() string
	Logger     *zap.Logger
}

// State is a snapshot for rendering.
type State struct {
	Status  Status
	File    string
	Preview *Preview
	Result  *models.AnalyzePhotoResponse
	Message string
	PhotoID string
}

// Flow is one check-in screen instance.
type Flow struct {
	deps     Deps
	previews *Previews

	mu      sync.Mutex
	status  Status
	file    *File
	preview *Preview
	result  *models.AnalyzePhotoResponse
	message string
	photoID string
}

// New returns an idle flow.
func New(deps Deps) *Flow {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewPhotoID == nil {
		deps.NewPhotoID = NewPhotoID
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Flow{deps: deps, previews: &Previews{}, status: StatusIdle}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := State{
		Status:  f.status,
		Preview: f.preview,
		Result:  f.result,
		Message: f.message,
		PhotoID: f.photoID,
	}
	if f.file != nil {
		s.File = f.file.Name
	}
	return s
}

// Previews exposes the preview tracker.
func (f *Flow) Previews() *Previews {
	return f.previews
}

// Select replaces the chosen file and resets the flow to idle. The previous
// preview is released before the new one is acquired.
func (f *Flow) Select(file File) error {
	if len(file.Data) == 0 {
		return ErrNoFile
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.Busy() {
		return ErrBusy
	}

	if f.preview != nil {
		f.preview.Release()
		f.preview = nil
	}
	f.preview = f.previews.Acquire(file)
	if file.ContentType == "" {
		file.ContentType = f.preview.ContentType
	}
	f.file = &file
	f.result = nil
	f.message = ""
	f.photoID = ""
	f.status = StatusIdle
	return nil
}

// Close releases the current preview.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.preview != nil {
		f.preview.Release()
		f.preview = nil
	}
}

func (f *Flow) setStatus(s Status) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
}

// begin enters next unless an operation is already in flight.
func (f *Flow) begin(next Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.Busy() {
		return ErrBusy
	}
	f.status = next
	f.message = ""
	f.result = nil
	return nil
}

func (f *Flow) finish(photoID string, result *models.AnalyzePhotoResponse, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photoID = photoID
	if err != nil {
		f.status = StatusError
		f.message = Message(err)
		return err
	}
	f.result = result
	f.status = StatusDone
	return nil
}

// Submit uploads the selected file and analyzes it. Without a selected file
// or a signed-in user it does nothing.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	file := f.file
	f.mu.Unlock()
	user := f.deps.Identity.User()
	if file == nil || user == nil {
		return nil
	}
	if err := f.begin(StatusUploading); err != nil {
		return err
	}

	photoID := f.deps.NewPhotoID()
	storagePath := blobstore.PhotoPath(user.UID, photoID)
	capturedAt := f.deps.Now().UTC().Format(isoMillis)
	photoRef := docstore.UserItems(models.CollectionPhotos, user.UID).Doc(photoID)
	logger := f.deps.Logger.With(zap.String("uid", user.UID), zap.String("photo_id", photoID))

	if err := f.deps.Blobs.Put(ctx, storagePath, file.Data, file.ContentType); err != nil {
		return f.finish(photoID, nil, fmt.Errorf("upload photo: %w", err))
	}
	if err := f.deps.Store.Set(ctx, photoRef, models.PhotoData(storagePath, capturedAt)); err != nil {
		return f.finish(photoID, nil, fmt.Errorf("save photo record: %w", err))
	}
	logger.Debug("photo uploaded", zap.String("storage_path", storagePath))

	f.setStatus(StatusAnalyzing)
	result, err := f.analyze(ctx, user.UID, photoID, storagePath, capturedAt)
	if err != nil {
		f.markFailed(ctx, photoRef, err, logger)
	}
	return f.finish(photoID, result, err)
}

// analyze runs the remote analysis for a recorded photo and persists the result.
func (f *Flow) analyze(ctx context.Context, uid, photoID, storagePath, capturedAt string) (*models.AnalyzePhotoResponse, error) {
	token, err := f.deps.Identity.IDToken(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	resp, err := f.deps.API.AnalyzePhoto(ctx, token, models.AnalyzePhotoRequest{
		PhotoID:     photoID,
		StoragePath: storagePath,
		CapturedAt:  capturedAt,
		ROIPreset:   ROIPreset,
	})
	if err != nil {
		return nil, err
	}

	analysisID := ResolveAnalysisID(resp.AnalysisID, photoID)
	ref := docstore.UserItems(models.CollectionAnalysisResults, uid).Doc(analysisID)
	if err := f.deps.Store.Set(ctx, ref, models.AnalysisData(*resp, analysisID, photoID, f.deps.Now())); err != nil {
		return nil, fmt.Errorf("save analysis result: %w", err)
	}

	result := *resp
	result.AnalysisID = analysisID
	return &result, nil
}

// markFailed records the failure on the photo so it can be found and re-run.
func (f *Flow) markFailed(ctx context.Context, ref docstore.DocRef, cause error, logger *zap.Logger) {
	err := f.deps.Store.Merge(ctx, ref, docstore.Data{
		"status": models.PhotoFailed,
		"error":  cause.Error(),
	})
	if err != nil {
		logger.Warn("failed to mark photo as failed", zap.Error(err))
	}
}

// Pending lists the user's photos whose analysis has not completed.
func (f *Flow) Pending(ctx context.Context) ([]models.Photo, error) {
	user := f.deps.Identity.User()
	if user == nil {
		return nil, nil
	}
	snaps, err := f.deps.Store.Query(ctx, docstore.UserItems(models.CollectionPhotos, user.UID),
		docstore.Query{OrderBy: "createdAt", Direction: docstore.Desc, Limit: 50})
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	var pending []models.Photo
	for _, s := range snaps {
		p := models.DecodePhoto(s)
		if p.Status != models.PhotoDone {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// Reanalyze re-runs the analysis for an existing photo record.
func (f *Flow) Reanalyze(ctx context.Context, photoID string) error {
	user := f.deps.Identity.User()
	if user == nil {
		return nil
	}
	if err := f.begin(StatusAnalyzing); err != nil {
		return err
	}

	ref := docstore.UserItems(models.CollectionPhotos, user.UID).Doc(photoID)
	logger := f.deps.Logger.With(zap.String("uid", user.UID), zap.String("photo_id", photoID))
	snap, err := f.deps.Store.Get(ctx, ref)
	if err != nil {
		return f.finish(photoID, nil, fmt.Errorf("load photo record: %w", err))
	}
	photo := models.DecodePhoto(*snap)
	if photo.StoragePath == "" {
		return f.finish(photoID, nil, fmt.Errorf("photo %s has no storage path", photoID))
	}

	result, err := f.analyze(ctx, user.UID, photoID, photo.StoragePath, photo.CapturedAt)
	if err != nil {
		f.markFailed(ctx, ref, err, logger)
		return f.finish(photoID, nil, err)
	}
	if err := f.deps.Store.Merge(ctx, ref, docstore.Data{"status": models.PhotoDone, "error": ""}); err != nil {
		logger.Warn("failed to mark photo as done", zap.Error(err))
	}
	return f.finish(photoID, result, nil)
}

// ResolveAnalysisID keeps a server id with the analysis prefix and otherwise
// derives one from the photo id.
func ResolveAnalysisID(serverID, photoID string) string {
	if strings.HasPrefix(serverID, models.AnalysisIDPrefix) {
		return serverID
	}
	return models.AnalysisIDFor(photoID)
}

// Message is the user-visible text for a failed operation.
func Message(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) {
		return msgAnalyzeFailed
	}
	if err == nil || err.Error() == "" {
		return msgUnknown
	}
	return err.Error()
}

var fallbackSeq atomic.Uint64

// NewPhotoID returns photo_<uuid>, or a time-and-sequence id when the
// random source fails.
func NewPhotoID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fallbackPhotoID(time.Now())
	}
	return models.PhotoIDPrefix + id.String()
}

func fallbackPhotoID(now time.Time) string {
	return fmt.Sprintf("%s%d_%d", models.PhotoIDPrefix, now.UnixNano(), fallbackSeq.Add(1))
}

// FormatResult renders a result the way the check-in screen shows it.
func FormatResult(r *models.AnalyzePhotoResponse) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("densityIndex: %.3f\ndeltaVsPrev: %.3f\ndeltaVsBase: %.3f\nquality: %.2f",
		r.DensityIndex, r.DeltaVsPrev, r.DeltaVsBase, r.Quality.Score)
}
