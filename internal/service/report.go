package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/docstore"
	"github.com/hairguard/hairguard/internal/ml"
	"github.com/hairguard/hairguard/internal/models"
)

// Report parameters.
const (
	DefaultPeriodDays = 7
	MaxPeriodDays     = 30
	reportScanLimit   = 50
	maxReportItems    = 3
	ruleBasedModel    = "rule_based_v1"
)

// Reporter summarises recent analysis results into a short weekly report.
type Reporter struct {
	store  docstore.Store
	text   ml.TextModel
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// NewReporter returns a reporter over deps.
func NewReporter(deps Deps) *Reporter {
	return &Reporter{store: deps.Store, text: deps.Text, now: deps.Now, newID: deps.NewID, logger: deps.Logger}
}

type seriesPoint struct {
	At      time.Time
	Density float64
}

// Generate builds and stores a report over the last periodDays days
// (default 7, clamped to 1..30).
func (r *Reporter) Generate(ctx context.Context, uid string, req models.ReportGenerateRequest) (*models.Report, error) {
	days := DefaultPeriodDays
	if req.PeriodDays != nil && *req.PeriodDays != 0 {
		days = *req.PeriodDays
	}
	days = max(1, min(days, MaxPeriodDays))

	now := r.now().UTC()
	cutoff := now.AddDate(0, 0, -days)

	series, err := r.series(ctx, uid, cutoff)
	if err != nil {
		return nil, err
	}

	report, label := r.generated(ctx, series, days)
	if report == nil {
		report, label = ruleBasedReport(series, days), ruleBasedModel
	}
	report.ReportID = models.ReportIDPrefix + r.newID()

	doc := docstore.Data{
		"createdAt": docstore.ServerTimestamp,
		"period": docstore.Data{
			"from": cutoff.Format(time.DateOnly),
			"to":   now.Format(time.DateOnly),
			"days": days,
		},
		"highlights":  report.Highlights,
		"nextActions": report.NextActions,
		"rawText":     report.RawText,
		"llm":         docstore.Data{"model": label},
	}
	ref := docstore.UserItems(models.CollectionReports, uid).Doc(report.ReportID)
	if err := r.store.Set(ctx, ref, doc); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	r.logger.Info("report generated",
		zap.String("uid", uid), zap.String("reportId", report.ReportID),
		zap.Int("points", len(series)), zap.String("model", label))
	return report, nil
}

// series reads the latest results and keeps those inside the period, oldest
// first. computedAt is preferred; createdAt is used only when computedAt is
// missing.
func (r *Reporter) series(ctx context.Context, uid string, cutoff time.Time) ([]seriesPoint, error) {
	snaps, err := r.store.Query(ctx, docstore.UserItems(models.CollectionAnalysisResults, uid),
		docstore.Query{OrderBy: "computedAt", Direction: docstore.Desc, Limit: reportScanLimit})
	if err != nil {
		return nil, fmt.Errorf("query analysis results: %w", err)
	}
	var out []seriesPoint
	for _, s := range snaps {
		field := "computedAt"
		if v, ok := s.Data[field]; !ok || v == nil {
			field = "createdAt"
		}
		at, ok := s.Time(field)
		if !ok || at.Before(cutoff) {
			continue
		}
		density, ok := s.Number("densityIndex")
		if !ok {
			continue
		}
		out = append(out, seriesPoint{At: at, Density: density})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

const reportPrompt = "あなたは薄毛対策の習慣化エージェントです。" +
	"以下のJSONデータを基に、短い週次レポートを日本語で作成してください。" +
	"医療診断はしないでください。一般的な生活改善の範囲にとどめてください。\n" +
	"出力は必ず次のJSON形式のみ:\n" +
	"{\n" +
	"  \"highlights\": [\"...\"],\n" +
	"  \"nextActions\": [\"...\"],\n" +
	"  \"rawText\": \"...\" \n" +
	"}\n" +
	"highlightsは2〜3件、nextActionsは2〜3件、rawTextは要約文。\n" +
	"入力: %s\n"

// generated asks the text model for a report. Any failure yields nil so the
// rule-based report is used instead.
func (r *Reporter) generated(ctx context.Context, series []seriesPoint, days int) (*models.Report, string) {
	if r.text == nil {
		return nil, ""
	}
	type point struct {
		Date         string  `json:"date"`
		DensityIndex float64 `json:"densityIndex"`
	}
	input := struct {
		PeriodDays int     `json:"periodDays"`
		Series     []point `json:"series"`
	}{PeriodDays: days, Series: []point{}}
	for _, p := range series {
		input.Series = append(input.Series, point{Date: p.At.Format(time.DateOnly), DensityIndex: p.Density})
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, ""
	}

	text, err := r.text.Generate(ctx, fmt.Sprintf(reportPrompt, payload))
	if err != nil {
		r.logger.Warn("report generation fell back to rules", zap.Error(err))
		return nil, ""
	}
	var out map[string]any
	if err := ml.ExtractJSON(text, &out); err != nil {
		r.logger.Warn("unparseable report reply", zap.Error(err))
		return nil, ""
	}

	highlights, ok := stringList(out["highlights"])
	if !ok {
		return nil, ""
	}
	actions, ok := stringList(out["nextActions"])
	if !ok {
		return nil, ""
	}
	raw := ""
	if v, present := out["rawText"]; present && v != nil {
		raw = fmt.Sprint(v)
	}
	return &models.Report{
		Highlights:  truncate(highlights, maxReportItems),
		NextActions: truncate(actions, maxReportItems),
		RawText:     raw,
	}, r.text.Name()
}

// stringList accepts a missing/null value as empty and rejects anything that
// is not a list.
func stringList(v any) ([]string, bool) {
	if v == nil {
		return []string{}, true
	}
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, isString := item.(string); isString {
			out = append(out, s)
			continue
		}
		out = append(out, fmt.Sprint(item))
	}
	return out, true
}

func truncate(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func ruleBasedReport(series []seriesPoint, days int) *models.Report {
	var highlights, actions []string
	if len(series) == 0 {
		highlights = []string{"期間内の測定データがありません。"}
		actions = []string{
			"週1回の写真チェックインを続けましょう。",
			"撮影条件（光・角度・距離）を揃えましょう。",
		}
	} else {
		first := series[0].Density
		latest := series[len(series)-1].Density
		delta := latest - first
		highlights = append(highlights, fmt.Sprintf("%d日で密度指数は %.3f（変化 %+.3f）でした。", days, latest, delta))
		if delta < 0 {
			highlights = append(highlights, "一時的なブレの可能性があるため、撮影条件を再確認してください。")
		} else {
			highlights = append(highlights, "安定して推移しているため、継続できています。")
		}
		actions = []string{
			"次回も同じ条件で撮影して比較精度を上げる。",
			"睡眠時間を確保し、タンパク質を意識する。",
		}
	}

	lines := append(append(append([]string{}, highlights...), "---"), actions...)
	return &models.Report{
		Highlights:  highlights,
		NextActions: actions,
		RawText:     strings.Join(lines, "\n"),
	}
}
