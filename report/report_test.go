// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/humaidq/glycowatch/charts"
	"github.com/humaidq/glycowatch/db"
)

func init() {
	compressOutput = false
}

func fixture(t *testing.T) (charts.Assets, *db.Prediction, *db.Comparison) {
	t.Helper()

	assets := charts.Assets{Root: t.TempDir()}
	ts := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)

	pred := &db.Prediction{
		ID:          "pred_current",
		UserID:      "u1",
		PatientName: "Jane Doe",
		Sex:         "Female",
		Prediction:  "Low Risk / No Diabetes",
		RiskLevel:   db.RiskLow,
		Confidence:  81.5,
		Timestamp:   &ts,
	}
	pred.Set(db.ParamGlucose, 98)
	pred.Set(db.ParamBMI, 27)

	cvn, err := charts.RenderCurrentVsNormal(assets, pred.UserID, pred.ID, pred.Measurements)
	if err != nil {
		t.Fatalf("RenderCurrentVsNormal failed: %v", err)
	}

	pred.CurrentVsNormalGraphPath = cvn.RelativePath

	older := ts.AddDate(0, -1, 0)
	prev := &db.Prediction{ID: "pred_old", UserID: "u1", Prediction: "High Risk of Diabetes", Confidence: 77, Timestamp: &older}
	prev.Set(db.ParamGlucose, 140)

	trend, err := charts.RenderTrend(assets, "u1", "analysis_1", []*db.Prediction{prev, pred})
	if err != nil {
		t.Fatalf("RenderTrend failed: %v", err)
	}

	cmp := &db.Comparison{
		AnalysisID:          "analysis_1",
		CurrentPredictionID: pred.ID,
		PastPredictionIDs:   []string{prev.ID},
		GraphRelativePath:   trend.RelativePath,
		Explanation:         "Improvements:\n- Glucose dropped steadily\n\nConcerns:\n- BMI remains elevated\n\nRecommendations:\n- Keep walking daily",
		SelectedPredictions: []db.VisitSummary{db.SummarizeVisit(prev), db.SummarizeVisit(pred)},
	}

	return assets, pred, cmp
}

func mustContain(t *testing.T, pdf []byte, parts ...string) {
	t.Helper()

	for _, part := range parts {
		if !bytes.Contains(pdf, []byte(part)) {
			t.Fatalf("expected PDF to contain %q", part)
		}
	}
}

func TestComposeComparison(t *testing.T) {
	assets, pred, cmp := fixture(t)

	out, err := Compose(pred, cmp, Options{
		Assets:      assets,
		DownloadURL: "https://example.com/prediction/comparison/pred_current/analysis_1/download",
		Disclaimer:  "Not a diagnosis",
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatal("expected a PDF header")
	}

	mustContain(t, out, "Diabetes Trend Comparison", "Jane Doe", "Glucose dropped steadily",
		"Keep walking daily", "Compared Visits", "Historical Comparison", "Not a diagnosis")

	// Two charts and the QR code.
	if n := bytes.Count(out, []byte("/Subtype /Image")); n != 3 {
		t.Fatalf("expected 3 images, got %d", n)
	}
}

func TestComposeSkipsMissingChart(t *testing.T) {
	assets, pred, cmp := fixture(t)

	abs, err := assets.Abs(cmp.GraphRelativePath)
	if err != nil {
		t.Fatalf("Abs failed: %v", err)
	}

	if err := os.Remove(abs); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	out, err := Compose(pred, cmp, Options{Assets: assets})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if !bytes.HasPrefix(out, []byte("%PDF-")) || !bytes.Contains(out, []byte("%%EOF")) {
		t.Fatal("expected a complete PDF")
	}

	mustContain(t, out, "Glucose dropped steadily", "Compared Visits", "Current vs Normal", DefaultDisclaimer[:40])

	if bytes.Contains(out, []byte("Historical Comparison")) {
		t.Fatal("expected the missing chart section to be skipped")
	}

	if n := bytes.Count(out, []byte("/Subtype /Image")); n != 1 {
		t.Fatalf("expected 1 image, got %d", n)
	}
}

func TestComposeSingleVisit(t *testing.T) {
	assets, pred, _ := fixture(t)

	out, err := Compose(pred, nil, Options{Assets: assets})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	mustContain(t, out, "Diabetes Risk Report", "Clinical Measurements", "Diabetes Pedigree Function")

	if bytes.Contains(out, []byte("Clinical Summary")) {
		t.Fatal("single visit report must not include a narrative")
	}
}

func TestComposeSingleVisitWithDoctorReport(t *testing.T) {
	assets, pred, cmp := fixture(t)

	out, err := Compose(pred, nil, Options{
		Assets:    assets,
		Narrative: "Assessment\n- Fasting glucose sits in the prediabetic range.",
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	mustContain(t, out, "Clinical Assessment", "Fasting glucose sits in the prediabetic range.")

	if bytes.Contains(out, []byte("Clinical Summary")) {
		t.Fatal("doctor report must not be labelled as a comparison summary")
	}

	out, err = Compose(pred, cmp, Options{Assets: assets, Narrative: "ignored single visit text"})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if bytes.Contains(out, []byte("ignored single visit text")) {
		t.Fatal("comparison report must not include the single visit narrative")
	}
}

func TestComposeIgnoresCorruptChart(t *testing.T) {
	assets, pred, cmp := fixture(t)

	abs, err := assets.Abs(cmp.GraphRelativePath)
	if err != nil {
		t.Fatalf("Abs failed: %v", err)
	}

	if err := os.WriteFile(abs, []byte("not a png"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Compose(pred, cmp, Options{Assets: assets}); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
}

func TestComposeSkipsChartWithCorruptBody(t *testing.T) {
	assets, pred, cmp := fixture(t)

	abs, err := assets.Abs(cmp.GraphRelativePath)
	if err != nil {
		t.Fatalf("Abs failed: %v", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	// Keep the signature and header chunk intact and damage the image data.
	idx := bytes.Index(data, []byte("IDAT"))
	if idx < 0 || idx+40 > len(data) {
		t.Fatal("expected an IDAT chunk in the rendered chart")
	}

	for i := idx + 8; i < idx+40; i++ {
		data[i] ^= 0xFF
	}

	if err := os.WriteFile(abs, data, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	out, err := Compose(pred, cmp, Options{Assets: assets})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if !bytes.Contains(out, []byte("%%EOF")) {
		t.Fatal("expected a complete PDF")
	}

	if bytes.Contains(out, []byte("Historical Comparison")) {
		t.Fatal("expected the corrupt chart section to be skipped")
	}

	mustContain(t, out, "Current vs Normal", "Compared Visits")
}

func TestComposeRequiresPrediction(t *testing.T) {
	if _, err := Compose(nil, nil, Options{Assets: charts.Assets{Root: filepath.Join(t.TempDir(), "x")}}); !errors.Is(err, ErrNoPrediction) {
		t.Fatalf("expected ErrNoPrediction, got %v", err)
	}
}
