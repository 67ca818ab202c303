// Package service holds the agent API operations: photo analysis, report
// generation, food recommendations and the mental-shield chat. Handlers in
// internal/server decode requests, resolve the caller's uid and call in here.
package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/blobstore"
	"github.com/hairguard/hairguard/internal/docstore"
	"github.com/hairguard/hairguard/internal/ml"
)

// Error carries the HTTP status and the detail shown to the caller.
type Error struct {
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

func badRequest(detail string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Detail: detail, Err: err}
}

func invalid(detail string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Detail: detail}
}

// StatusOf returns the HTTP status for err: the Error's own status, or 500.
func StatusOf(err error) (int, string) {
	var se *Error
	if errors.As(err, &se) {
		return se.Status, se.Detail
	}
	return http.StatusInternalServerError, "Internal server error"
}

// Deps are shared by every operation.
type Deps struct {
	Store          docstore.Store
	Blobs          blobstore.Store
	Density        ml.DensityModel
	Text           ml.TextModel // nil disables generated reports and chat cards
	LocalImagePath string
	Logger         *zap.Logger
	Now            func() time.Time
	NewID          func() string
}

// Service bundles the four operations.
type Service struct {
	Analyzer *Analyzer
	Reports  *Reporter
	Food     *FoodSniper
	Shield   *MentalShield
}

// New wires every operation to deps.
func New(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = NewHexID
	}
	return &Service{
		Analyzer: NewAnalyzer(deps),
		Reports:  NewReporter(deps),
		Food:     NewFoodSniper(deps),
		Shield:   NewMentalShield(deps),
	}
}

// NewHexID is a random UUID without dashes.
func NewHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\")
}
