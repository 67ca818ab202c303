package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/api"
	"github.com/hairguard/hairguard/internal/models"
	"github.com/hairguard/hairguard/internal/session"
)

// ReportPeriodDays is the period every report covers.
const ReportPeriodDays = 7

const msgReportFailed = "レポート生成に失敗しました。"

// ErrBusy is returned when a report is already being generated.
var ErrBusy = errors.New("dashboard: report generation in progress")

// ReportStatus of the generator.
type ReportStatus string

const (
	ReportIdle    ReportStatus = "idle"
	ReportLoading ReportStatus = "loading"
	ReportError   ReportStatus = "error"
)

// ReportGenerator is the part of the agent API reports need.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, token string, req models.ReportGenerateRequest) (*models.ReportGenerateResponse, error)
}

// ReportState is a snapshot for rendering.
type ReportState struct {
	Status  ReportStatus
	Report  *models.Report
	Message string
}

// Reports generates reports on demand and keeps the last one in memory.
type Reports struct {
	identity session.Identity
	api      ReportGenerator
	logger   *zap.Logger

	mu    sync.Mutex
	state ReportState
}

// NewReports returns an idle generator.
func NewReports(identity session.Identity, client ReportGenerator, logger *zap.Logger) *Reports {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reports{identity: identity, api: client, logger: logger, state: ReportState{Status: ReportIdle}}
}

// State returns the current state.
func (r *Reports) State() ReportState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Generate requests a report for the last ReportPeriodDays days.
func (r *Reports) Generate(ctx context.Context) error {
	if r.identity.User() == nil {
		return nil
	}
	r.mu.Lock()
	if r.state.Status == ReportLoading {
		r.mu.Unlock()
		return ErrBusy
	}
	r.state.Status = ReportLoading
	r.state.Message = ""
	r.mu.Unlock()

	report, err := r.generate(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state.Status = ReportError
		r.state.Message = reportMessage(err)
		r.logger.Warn("report generation failed", zap.Error(err))
		return err
	}
	r.state.Status = ReportIdle
	r.state.Report = report
	return nil
}

func (r *Reports) generate(ctx context.Context) (*models.Report, error) {
	token, err := r.identity.IDToken(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	days := ReportPeriodDays
	return r.api.GenerateReport(ctx, token, models.ReportGenerateRequest{PeriodDays: &days})
}

func reportMessage(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s(%d) %s", msgReportFailed, se.StatusCode, se.Body)
	}
	if err.Error() == "" {
		return msgReportFailed
	}
	return err.Error()
}

// FormatReport renders highlights and next actions as text.
func FormatReport(rep *models.Report) string {
	if rep == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Report %s\n", rep.ReportID)
	b.WriteString("Highlights\n")
	for _, h := range rep.Highlights {
		fmt.Fprintf(&b, "  - %s\n", h)
	}
	b.WriteString("Next actions\n")
	for _, a := range rep.NextActions {
		fmt.Fprintf(&b, "  - %s\n", a)
	}
	return b.String()
}
