// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package charts

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/humaidq/glycowatch/db"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func visit(id string, ts string, glucose, bp *float64) *db.Prediction {
	p := &db.Prediction{ID: id, UserID: "u1", Prediction: "Low Risk / No Diabetes", Confidence: 80}
	p.Glucose = glucose
	p.BloodPressure = bp

	if ts != "" {
		tm, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			panic(err)
		}

		p.Timestamp = &tm
	}

	return p
}

func TestRenderTrendOmitsMetricsMissingEverywhere(t *testing.T) {
	t.Parallel()

	a := Assets{Root: t.TempDir()}
	ordered := []*db.Prediction{
		visit("p1", "2025-01-05T10:00:00Z", db.Float(140), nil),
		visit("p2", "2025-02-05T10:00:00Z", db.Float(125), nil),
		visit("p3", "2025-03-05T10:00:00Z", db.Float(98), nil),
	}

	chart, err := RenderTrend(a, "u1", "analysis_1", ordered)
	if err != nil {
		t.Fatalf("RenderTrend failed: %v", err)
	}

	names := chart.SeriesNames()
	if len(names) != 1 || names[0] != "Glucose" {
		t.Fatalf("expected only the Glucose series, got %v", names)
	}

	if !bytes.HasPrefix(chart.PNG, pngMagic) {
		t.Fatal("expected PNG bytes")
	}

	if chart.RelativePath != "reports/u1/analysis_1_history_comparison.png" {
		t.Fatalf("unexpected relative path %q", chart.RelativePath)
	}

	onDisk, err := os.ReadFile(filepath.Join(a.Root, "reports", "u1", "analysis_1_history_comparison.png"))
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}

	if !bytes.Equal(onDisk, chart.PNG) {
		t.Fatal("written file differs from returned bytes")
	}

	if len(chart.Labels) != 3 || chart.Labels[0] != "Jan 05, 2025 10:00 AM" {
		t.Fatalf("unexpected labels %v", chart.Labels)
	}
}

func TestRenderTrendKeepsGaps(t *testing.T) {
	t.Parallel()

	a := Assets{Root: t.TempDir()}
	ordered := []*db.Prediction{
		visit("p1", "2025-01-05T10:00:00Z", db.Float(140), db.Float(85)),
		visit("p2", "2025-02-05T10:00:00Z", db.Float(125), nil),
		visit("p3", "", nil, db.Float(80)),
	}

	chart, err := RenderTrend(a, "u1", "analysis_2", ordered)
	if err != nil {
		t.Fatalf("RenderTrend failed: %v", err)
	}

	if len(chart.Series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(chart.Series))
	}

	glucose := chart.Series[0]
	if glucose.Parameter != db.ParamGlucose || glucose.Values[2] != nil {
		t.Fatalf("expected a gap for the third glucose value, got %+v", glucose)
	}

	bp := chart.Series[1]
	if bp.Values[1] != nil || bp.Values[2] == nil || *bp.Values[2] != 80 {
		t.Fatalf("unexpected blood pressure values %+v", bp.Values)
	}

	if chart.Labels[2] != db.UnknownVisitLabel {
		t.Fatalf("expected unknown date label, got %q", chart.Labels[2])
	}
}

func TestRenderTrendNoRecords(t *testing.T) {
	t.Parallel()

	a := Assets{Root: t.TempDir()}

	chart, err := RenderTrend(a, "u1", "analysis_3", nil)
	if err != nil {
		t.Fatalf("RenderTrend failed: %v", err)
	}

	if !chart.NoData || chart.RelativePath != "" || chart.PNG != nil {
		t.Fatalf("expected an empty NoData chart, got %+v", chart)
	}

	if _, err := os.Stat(filepath.Join(a.Root, "reports")); !os.IsNotExist(err) {
		t.Fatal("expected no files to be written")
	}
}

func TestRenderTrendWithoutTrackedMetrics(t *testing.T) {
	t.Parallel()

	a := Assets{Root: t.TempDir()}
	ordered := []*db.Prediction{visit("p1", "2025-01-05T10:00:00Z", nil, nil)}

	chart, err := RenderTrend(a, "u1", "analysis_4", ordered)
	if err != nil {
		t.Fatalf("RenderTrend failed: %v", err)
	}

	if len(chart.Series) != 0 || !bytes.HasPrefix(chart.PNG, pngMagic) {
		t.Fatalf("expected an empty chart image, got %d series", len(chart.Series))
	}
}

func TestRenderCurrentVsNormal(t *testing.T) {
	t.Parallel()

	a := Assets{Root: t.TempDir()}

	var m db.Measurements
	m.Set(db.ParamGlucose, 150)
	m.Set(db.ParamBMI, 30)

	chart, err := RenderCurrentVsNormal(a, "user@example", "pred_1", m)
	if err != nil {
		t.Fatalf("RenderCurrentVsNormal failed: %v", err)
	}

	if chart.RelativePath != "reports/user_example/pred_1_current_vs_normal.png" {
		t.Fatalf("unexpected relative path %q", chart.RelativePath)
	}

	if len(chart.Series) != 4 {
		t.Fatalf("expected all four metrics, got %d", len(chart.Series))
	}

	for _, s := range chart.Series {
		if s.Parameter == db.ParamInsulin && *s.Values[0] != 0 {
			t.Fatalf("expected missing insulin drawn as zero, got %v", *s.Values[0])
		}
	}

	if !a.Exists(chart.RelativePath) {
		t.Fatal("expected chart file to exist")
	}
}

func TestTrendHTML(t *testing.T) {
	t.Parallel()

	rows := []db.VisitSummary{
		{ID: "p1", Label: "Jan 05, 2025 10:00 AM", Glucose: db.Float(140)},
		{ID: "p2", Label: "Feb 05, 2025 10:00 AM"},
	}

	html, err := TrendHTML(rows)
	if err != nil {
		t.Fatalf("TrendHTML failed: %v", err)
	}

	if !strings.Contains(html, "Glucose") {
		t.Fatal("expected Glucose series in chart")
	}

	if strings.Contains(html, "Insulin") {
		t.Fatal("expected Insulin to be omitted")
	}

	if !strings.Contains(html, `"-"`) {
		t.Fatal("expected gap marker for the missing value")
	}
}

func TestNiceCeil(t *testing.T) {
	t.Parallel()

	cases := map[float64]float64{0: 1, 0.7: 1, 1.5: 2, 154: 200, 330: 500, 990: 1000}
	for in, want := range cases {
		if got := niceCeil(in); got != want {
			t.Fatalf("niceCeil(%v) = %v, want %v", in, got, want)
		}
	}
}

//nolint:paralleltest // redirects the package logger
func TestRenderTrendLogsUnderChartsSource(t *testing.T) {
	var buf bytes.Buffer

	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	a := Assets{Root: t.TempDir()}

	if _, err := RenderTrend(a, "u1", "analysis_log", []*db.Prediction{visit("p1", "2025-01-01T10:00:00Z", db.Float(120), nil)}); err != nil {
		t.Fatalf("RenderTrend failed: %v", err)
	}

	if out := buf.String(); !strings.Contains(out, "source=charts") {
		t.Fatalf("expected chart logs tagged source=charts, got %q", out)
	}
}
