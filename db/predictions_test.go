// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCreateAndGetPrediction(t *testing.T) {
	useTempStore(t)

	ctx := context.Background()
	ts := mustTime(t, "2025-01-05T10:30:00Z")

	p := &Prediction{
		UserID:     "u1",
		Prediction: "High Risk of Diabetes",
		RiskLevel:  RiskHigh,
		Confidence: 91.5,
		Timestamp:  &ts,
	}
	p.Set(ParamGlucose, 140)
	p.Set(ParamBMI, 31)
	p.Set(ParamAge, 50)
	p.Set(ParamInsulin, 0)
	p.Derive()

	if err := CreatePrediction(ctx, p); err != nil {
		t.Fatalf("CreatePrediction failed: %v", err)
	}

	if !strings.HasPrefix(p.ID, "pred_") {
		t.Fatalf("expected generated prediction ID, got %q", p.ID)
	}

	got, err := GetPrediction(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPrediction failed: %v", err)
	}

	if v, ok := got.Value(ParamGlucose); !ok || v != 140 {
		t.Fatalf("unexpected glucose %v ok=%v", v, ok)
	}

	if _, ok := got.Value(ParamBloodPressure); ok {
		t.Fatal("expected blood pressure to stay absent")
	}

	if got.BMIAgeInteraction == nil || *got.BMIAgeInteraction != 1550 {
		t.Fatalf("unexpected BMI_Age_Interaction %v", got.BMIAgeInteraction)
	}

	if got.GlucoseInsulinRatio == nil || *got.GlucoseInsulinRatio != 140 {
		t.Fatalf("unexpected Glucose_Insulin_Ratio %v", got.GlucoseInsulinRatio)
	}

	if got.Timestamp == nil || !got.Timestamp.Equal(ts) {
		t.Fatalf("unexpected timestamp %v", got.Timestamp)
	}

	ids, err := ListUserPredictionIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUserPredictionIDs failed: %v", err)
	}

	if len(ids) != 1 || ids[0] != p.ID {
		t.Fatalf("expected owner index to reference %s, got %v", p.ID, ids)
	}
}

func TestCreatePredictionDefaultsOwnerAndTime(t *testing.T) {
	useTempStore(t)

	before := time.Now().UTC().Add(-time.Second)

	p := &Prediction{Prediction: "Low Risk / No Diabetes", RiskLevel: RiskLow}
	if err := CreatePrediction(context.Background(), p); err != nil {
		t.Fatalf("CreatePrediction failed: %v", err)
	}

	if p.UserID != AnonymousOwner {
		t.Fatalf("expected anonymous owner, got %q", p.UserID)
	}

	if p.Timestamp == nil || p.Timestamp.Before(before) {
		t.Fatalf("expected creation time to be set, got %v", p.Timestamp)
	}
}

func TestGetPredictionsReportsMissing(t *testing.T) {
	fs := useTempStore(t)
	ctx := context.Background()

	if err := fs.Set(ctx, "predictions/p1", map[string]any{"user_id": "u1", "Glucose": 100}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	found, missing, err := GetPredictions(ctx, []string{"p1", "nope", "bad id", "p1"})
	if err != nil {
		t.Fatalf("GetPredictions failed: %v", err)
	}

	if len(found) != 1 || found["p1"] == nil {
		t.Fatalf("unexpected found set %v", found)
	}

	if len(missing) != 2 || missing[0] != "nope" || missing[1] != "bad id" {
		t.Fatalf("unexpected missing list %v", missing)
	}
}

func TestDecodeLegacyPrediction(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"user_id": "u9",
		"name": "Sam Doe",
		"result": "High Risk of Diabetes",
		"confidence": "87.5",
		"medical_data": {"Glucose": 150, "Blood Pressure": 85},
		"features": [1, 150, 85, 20, 0, 32.1, 0.4, 45],
		"date": "2024-11-02",
		"time": "08:15:00",
		"comparisons": {
			"analysis_x": {"explanation": "ok", "selected_predictions": [{"id": "a", "Glucose": null}]},
			"broken": "not an object"
		}
	}`)

	p, err := DecodePrediction("legacy1", raw)
	if err != nil {
		t.Fatalf("DecodePrediction failed: %v", err)
	}

	if p.ID != "legacy1" || p.UserID != "u9" || p.PatientName != "Sam Doe" {
		t.Fatalf("unexpected identity fields: %+v", p)
	}

	if p.RiskLevel != RiskHigh || p.Confidence != 87.5 {
		t.Fatalf("unexpected outcome: risk=%q confidence=%v", p.RiskLevel, p.Confidence)
	}

	if v, _ := p.Value(ParamBloodPressure); v != 85 {
		t.Fatalf("expected blood pressure from medical_data, got %v", v)
	}

	if v, _ := p.Value(ParamBMI); v != 32.1 {
		t.Fatalf("expected BMI from features, got %v", v)
	}

	want := mustTime(t, "2024-11-02T08:15:00Z")
	if p.Timestamp == nil || !p.Timestamp.Equal(want) {
		t.Fatalf("unexpected timestamp %v", p.Timestamp)
	}

	if len(p.Comparisons) != 1 || p.Comparisons["analysis_x"].AnalysisID != "analysis_x" {
		t.Fatalf("unexpected comparisons %v", p.Comparisons)
	}
}

func TestDecodePredictionWithoutOwner(t *testing.T) {
	t.Parallel()

	p, err := DecodePrediction("p", []byte(`{"Glucose": 90}`))
	if err != nil {
		t.Fatalf("DecodePrediction failed: %v", err)
	}

	if p.UserID != AnonymousOwner {
		t.Fatalf("expected ownerless record to belong to %q, got %q", AnonymousOwner, p.UserID)
	}

	if p.Timestamp != nil {
		t.Fatalf("expected unresolved timestamp, got %v", p.Timestamp)
	}
}

func TestComparisonsAreStoredIndependently(t *testing.T) {
	useTempStore(t)
	ctx := context.Background()

	p := &Prediction{UserID: "u1"}
	if err := CreatePrediction(ctx, p); err != nil {
		t.Fatalf("CreatePrediction failed: %v", err)
	}

	first := &Comparison{AnalysisID: NewAnalysisID(), Explanation: "first"}
	second := &Comparison{AnalysisID: NewAnalysisID(), Explanation: "second"}

	for _, c := range []*Comparison{first, second} {
		if err := AddComparison(ctx, p.ID, c); err != nil {
			t.Fatalf("AddComparison failed: %v", err)
		}
	}

	got, err := GetPrediction(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPrediction failed: %v", err)
	}

	if len(got.Comparisons) != 2 {
		t.Fatalf("expected both comparisons to survive, got %d", len(got.Comparisons))
	}

	c, err := GetComparison(ctx, p.ID, second.AnalysisID)
	if err != nil {
		t.Fatalf("GetComparison failed: %v", err)
	}

	if c.Explanation != "second" {
		t.Fatalf("unexpected comparison %+v", c)
	}

	if _, err := GetComparison(ctx, p.ID, "analysis_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListUserPredictionsNewestFirst(t *testing.T) {
	fs := useTempStore(t)
	ctx := context.Background()

	for id, ts := range map[string]string{"a": "2025-01-01T00:00:00Z", "b": "2025-03-01T00:00:00Z", "c": "2025-02-01T00:00:00Z"} {
		tm := mustTime(t, ts)
		if err := CreatePrediction(ctx, &Prediction{ID: id, UserID: "u1", Timestamp: &tm}); err != nil {
			t.Fatalf("CreatePrediction failed: %v", err)
		}
	}

	if err := fs.Set(ctx, "predictions/undated", map[string]any{"user_id": "u1"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := fs.Set(ctx, "users/u1/predictions/undated", true); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := fs.Set(ctx, "users/u1/predictions/ghost", true); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	preds, err := ListUserPredictions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUserPredictions failed: %v", err)
	}

	var order []string
	for _, p := range preds {
		order = append(order, p.ID)
	}

	if strings.Join(order, ",") != "b,c,a,undated" {
		t.Fatalf("unexpected order %v", order)
	}

	latest, err := LatestUserPredictions(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("LatestUserPredictions failed: %v", err)
	}

	if len(latest) != 2 || latest[0].ID != "b" {
		t.Fatalf("unexpected latest predictions %v", latest)
	}
}

func TestListAllPredictions(t *testing.T) {
	fs := useTempStore(t)
	ctx := context.Background()

	for id, owner := range map[string]string{"x": "u1", "y": "u2"} {
		tm := mustTime(t, "2025-01-0"+map[string]string{"x": "1", "y": "2"}[id]+"T00:00:00Z")
		if err := CreatePrediction(ctx, &Prediction{ID: id, UserID: owner, Timestamp: &tm}); err != nil {
			t.Fatalf("CreatePrediction failed: %v", err)
		}
	}

	if err := fs.Set(ctx, "predictions/broken", "not an object"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	preds, err := ListAllPredictions(ctx)
	if err != nil {
		t.Fatalf("ListAllPredictions failed: %v", err)
	}

	if len(preds) != 2 || preds[0].ID != "y" || preds[1].ID != "x" {
		t.Fatalf("unexpected predictions %v", preds)
	}
}

func TestCanonicalizePrediction(t *testing.T) {
	fs := useTempStore(t)
	ctx := context.Background()

	if err := fs.Set(ctx, "predictions/old", map[string]any{
		"user_id":      "u2",
		"result":       "Low Risk / No Diabetes",
		"features":     []float64{1, 90, 70, 20, 80, 22, 0.3, 30},
		"created_at":   1736073000,
		"medical_data": map[string]any{"Glucose": 90},
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	changed, err := CanonicalizePrediction(ctx, "old")
	if err != nil {
		t.Fatalf("CanonicalizePrediction failed: %v", err)
	}

	if !changed {
		t.Fatal("expected legacy record to be rewritten")
	}

	raw, err := fs.Get(ctx, "predictions/old/timestamp")
	if err != nil || string(raw) != `"2025-01-05T10:30:00Z"` {
		t.Fatalf("expected canonical timestamp, got %s (%v)", raw, err)
	}

	if _, err := fs.Get(ctx, "predictions/old/features"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected legacy features list to be dropped, got %v", err)
	}

	ids, err := ListUserPredictionIDs(ctx, "u2")
	if err != nil || len(ids) != 1 || ids[0] != "old" {
		t.Fatalf("expected owner index entry, got %v (%v)", ids, err)
	}

	changed, err = CanonicalizePrediction(ctx, "old")
	if err != nil {
		t.Fatalf("second CanonicalizePrediction failed: %v", err)
	}

	if changed {
		t.Fatal("expected canonical record to be left unchanged")
	}
}

func TestCanonicalizeKeepsLegacyComparisons(t *testing.T) {
	fs := useTempStore(t)
	ctx := context.Background()

	if err := fs.Set(ctx, "predictions/visit", map[string]any{
		"user_id":      "u3",
		"result":       "High Risk / Diabetes",
		"created_at":   1736073000,
		"medical_data": map[string]any{"Glucose": 180},
		"comparisons": map[string]any{
			"analysis_old": map[string]any{
				"analysis_id":           "analysis_old",
				"created_at":            "2025-01-05T20:44:00.123456+05:30",
				"current_prediction_id": "visit",
				"past_prediction_ids":   []string{"earlier"},
				"graph_relative_path":   "",
				"graph_url":             "/static/comparison_plots/u3/visit_analysis_old.png",
				"groq_explanation":      "Glucose rose across both visits.",
				"selected_predictions": []map[string]any{
					{
						"id": "earlier", "label": "Dec 01, 2024 09:00 AM",
						"Glucose": 140.5, "BloodPressure": "—", "BMI": 31.2, "Insulin": "—",
						"result": "Low Risk / No Diabetes", "confidence": "—",
					},
					{
						"id": "visit", "label": "Jan 05, 2025 04:00 PM",
						"Glucose": 180, "BloodPressure": 88, "BMI": 32, "Insulin": 120,
						"result": "High Risk / Diabetes", "confidence": 91.25,
					},
				},
			},
			"analysis_odd": "written by a tool that no longer exists",
		},
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	changed, err := CanonicalizePrediction(ctx, "visit")
	if err != nil {
		t.Fatalf("CanonicalizePrediction failed: %v", err)
	}

	if !changed {
		t.Fatal("expected legacy record to be rewritten")
	}

	raw, err := fs.Get(ctx, "predictions/visit/comparisons/analysis_odd")
	if err != nil || string(raw) != `"written by a tool that no longer exists"` {
		t.Fatalf("expected unreadable comparison to survive, got %s (%v)", raw, err)
	}

	raw, err = fs.Get(ctx, "predictions/visit/comparisons/analysis_old/groq_explanation")
	if err != nil || !strings.Contains(string(raw), "Glucose rose") {
		t.Fatalf("expected stored comparison to be kept as is, got %s (%v)", raw, err)
	}

	c, err := GetComparison(ctx, "visit", "analysis_old")
	if err != nil {
		t.Fatalf("GetComparison failed: %v", err)
	}

	if c.Explanation != "Glucose rose across both visits." {
		t.Fatalf("expected legacy narrative, got %q", c.Explanation)
	}

	if c.GraphRelativePath != "comparison_plots/u3/visit_analysis_old.png" {
		t.Fatalf("expected path from chart URL, got %q", c.GraphRelativePath)
	}

	if !c.CreatedAt.Equal(time.Date(2025, 1, 5, 15, 14, 0, 123456000, time.UTC)) {
		t.Fatalf("unexpected created_at %v", c.CreatedAt)
	}

	if len(c.SelectedPredictions) != 2 {
		t.Fatalf("expected both rows, got %d", len(c.SelectedPredictions))
	}

	first := c.SelectedPredictions[0]
	if first.BloodPressure != nil || first.Insulin != nil || first.Confidence != 0 {
		t.Fatalf("expected dash placeholders to read as not recorded, got %+v", first)
	}

	if first.Glucose == nil || *first.Glucose != 140.5 {
		t.Fatalf("expected recorded glucose, got %+v", first)
	}

	if second := c.SelectedPredictions[1]; second.Confidence != 91.25 || second.Insulin == nil {
		t.Fatalf("unexpected second row %+v", second)
	}

	p, err := GetPrediction(ctx, "visit")
	if err != nil {
		t.Fatalf("GetPrediction failed: %v", err)
	}

	if p.Comparisons["analysis_old"] == nil {
		t.Fatalf("expected readable comparison on the prediction, got %v", p.Comparisons)
	}

	changed, err = CanonicalizePrediction(ctx, "visit")
	if err != nil || changed {
		t.Fatalf("expected second pass to be a no-op, got changed=%v err=%v", changed, err)
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	st := Statistics([]*Prediction{
		{RiskLevel: RiskHigh, Confidence: 90},
		{RiskLevel: RiskLow, Confidence: 80},
		{RiskLevel: RiskLow, Confidence: 75},
	})

	if st.Total != 3 || st.HighRisk != 1 || st.LowRisk != 2 {
		t.Fatalf("unexpected counts %+v", st)
	}

	if st.AverageConfidence != 81.7 || st.HighRiskPercentage != 33.3 {
		t.Fatalf("unexpected averages %+v", st)
	}

	if empty := Statistics(nil); empty.Total != 0 || empty.AverageConfidence != 0 {
		t.Fatalf("unexpected empty stats %+v", empty)
	}
}
