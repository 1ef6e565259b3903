/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/humaidq/glycowatch/db"
)

// RecentHistoryLimit bounds the visits listed in a history summary.
const RecentHistoryLimit = 10

// Thresholds used by the history risk score.
const (
	glucoseDiabetic    = 126.0
	glucosePrediabetic = 100.0
	bmiObese           = 30.0
	bmiOverweight      = 25.0
)

const historyInstructions = "Provide a longitudinal review in four sections titled Overall Impression, " +
	"Key Findings, Risk Stratification, and Recommendations. " +
	"Describe the trajectory as improving, stable or declining and explain the risk score given above. " +
	"Keep the response under 300 words."

// HistorySummary aggregates every visit of one patient.
type HistorySummary struct {
	Owner string `json:"owner"`

	db.Stats

	LowRiskPercentage    float64          `json:"low_risk_percentage"`
	AverageGlucose       float64          `json:"avg_glucose"`
	AverageBMI           float64          `json:"avg_bmi"`
	AverageBloodPressure float64          `json:"avg_bp"`
	AverageInsulin       float64          `json:"avg_insulin"`
	RiskScore            float64          `json:"risk_score"`
	BestAssessment       *db.Prediction   `json:"best_assessment,omitempty"`
	RecentHistory        []*db.Prediction `json:"recent_history"`
}

// HistoryReview is a history summary with its narrative.
type HistoryReview struct {
	Summary   *HistorySummary `json:"analysis"`
	Narrative string          `json:"narrative"`
	Degraded  bool            `json:"narrative_degraded"`
}

// SummarizeHistory aggregates preds, which must be newest first. Averages
// only count visits where the value was recorded.
func SummarizeHistory(owner string, preds []*db.Prediction) *HistorySummary {
	out := &HistorySummary{
		Owner:         owner,
		Stats:         db.Statistics(preds),
		RecentHistory: preds[:min(len(preds), RecentHistoryLimit)],
	}

	if out.Total == 0 {
		return out
	}

	out.LowRiskPercentage = round1(float64(out.LowRisk) * 100 / float64(out.Total))
	out.AverageGlucose = averageOf(preds, db.ParamGlucose)
	out.AverageBMI = averageOf(preds, db.ParamBMI)
	out.AverageBloodPressure = averageOf(preds, db.ParamBloodPressure)
	out.AverageInsulin = averageOf(preds, db.ParamInsulin)
	out.BestAssessment = bestAssessment(preds)
	out.RiskScore = riskScore(out)

	return out
}

// riskScore weighs average glucose, average BMI, the share of high risk
// results and the model confidence into a 0 to 100 score.
func riskScore(h *HistorySummary) float64 {
	var score float64

	switch {
	case h.AverageGlucose >= glucoseDiabetic:
		score += 40
	case h.AverageGlucose >= glucosePrediabetic:
		score += 30
	default:
		score += 10
	}

	switch {
	case h.AverageBMI >= bmiObese:
		score += 30
	case h.AverageBMI >= bmiOverweight:
		score += 20
	default:
		score += 5
	}

	score += float64(h.HighRisk) / float64(h.Total) * 20
	score += h.AverageConfidence / 100 * 10

	return math.Round(score*100) / 100
}

// bestAssessment prefers the most confident low risk visit, then the most
// confident visit of any kind. Ties keep the newer visit.
func bestAssessment(preds []*db.Prediction) *db.Prediction {
	var best *db.Prediction

	for _, p := range preds {
		switch {
		case best == nil:
			best = p
		case best.IsHighRisk() && !p.IsHighRisk():
			best = p
		case best.IsHighRisk() == p.IsHighRisk() && p.Confidence > best.Confidence:
			best = p
		}
	}

	return best
}

func averageOf(preds []*db.Prediction, param db.Parameter) float64 {
	var (
		sum float64
		n   int
	)

	for _, p := range preds {
		if v, ok := p.Value(param); ok && v != 0 {
			sum += v
			n++
		}
	}

	if n == 0 {
		return 0
	}

	return round1(sum / float64(n))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// historyOwner resolves whose history a caller asked for. Admins may name
// any user; everyone else gets their own.
func historyOwner(caller Caller, requested string) (string, error) {
	if caller.ID == "" {
		return "", ErrUnauthorized
	}

	if requested == "" || requested == caller.ID {
		return caller.ID, nil
	}

	if !caller.IsAdmin {
		return "", ErrUnauthorized
	}

	return requested, nil
}

// LoadHistorySummary summarizes every visit of the requested owner.
func LoadHistorySummary(ctx context.Context, caller Caller, requested string) (*HistorySummary, error) {
	owner, err := historyOwner(caller, requested)
	if err != nil {
		return nil, err
	}

	preds, err := db.ListUserPredictions(ctx, owner)
	if err != nil {
		return nil, err
	}

	if len(preds) == 0 {
		return nil, fmt.Errorf("%w: no prediction history", ErrNotFound)
	}

	return SummarizeHistory(owner, preds), nil
}

// ReviewHistory summarizes the owner's history and asks the language model
// for a longitudinal review. A failing model degrades only the narrative.
func (a *Assembler) ReviewHistory(ctx context.Context, caller Caller, requested string) (*HistoryReview, error) {
	summary, err := LoadHistorySummary(ctx, caller, requested)
	if err != nil {
		return nil, err
	}

	if !a.Synthesizer.Available() {
		return nil, ErrLLMUnavailable
	}

	review := &HistoryReview{Summary: summary}

	text, err := a.Synthesizer.SynthesizeHistory(ctx, summary)
	if err != nil {
		logger.Warn("History review unavailable, using fallback", "owner", summary.Owner, "error", err)

		review.Narrative = FallbackNarrative
		review.Degraded = true

		return review, nil
	}

	review.Narrative = text

	logger.Info("History review created", "owner", summary.Owner, "visits", summary.Total)

	return review, nil
}

// BuildHistoryPrompt gives the aggregate figures and the recent timeline,
// newest first, followed by the response format.
func BuildHistoryPrompt(h *HistorySummary) string {
	var sb strings.Builder

	sb.WriteString("Review the patient's diabetes risk assessment history summarized below.\n\n")

	fmt.Fprintf(&sb, "Total assessments: %d\n", h.Total)
	fmt.Fprintf(&sb, "High risk results: %d (%.1f%%)\n", h.HighRisk, h.HighRiskPercentage)
	fmt.Fprintf(&sb, "Low risk results: %d (%.1f%%)\n", h.LowRisk, h.LowRiskPercentage)
	fmt.Fprintf(&sb, "Average model confidence: %.1f%%\n", h.AverageConfidence)
	fmt.Fprintf(&sb, "Average glucose: %s mg/dL\n", formatMetric(h.AverageGlucose))
	fmt.Fprintf(&sb, "Average BMI: %s\n", formatMetric(h.AverageBMI))
	fmt.Fprintf(&sb, "Risk score (0-100): %s\n", formatMetric(h.RiskScore))

	sb.WriteString("\nRecent assessments (newest first):\n")

	for i, p := range h.RecentHistory {
		fmt.Fprintf(&sb, "%d. %s | Result: %s", i+1, p.VisitLabel(), orUnknown(p.Prediction))

		if v, ok := p.Value(db.ParamGlucose); ok {
			fmt.Fprintf(&sb, " | Glucose: %s", formatMetric(v))
		}

		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(historyInstructions)
	sb.WriteString("\n")

	return sb.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}

	return s
}
