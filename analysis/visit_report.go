/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/humaidq/glycowatch/charts"
	"github.com/humaidq/glycowatch/db"
)

// FallbackVisitReport replaces the doctor report when the language model
// fails. It is returned to the caller but never stored.
const FallbackVisitReport = "AI report generation is temporarily unavailable. " +
	"The measurements and chart in your report still show this assessment in full."

const visitSystemPrompt = "You are a board-certified endocrinologist writing a diabetes risk " +
	"assessment for a patient's medical record. Use precise terminology with plain explanations " +
	"and reference the usual clinical ranges. " +
	"Never include disclaimers or advice to consult a healthcare professional, this is shown separately."

const visitInstructions = "Write the assessment in three sections titled Assessment, Key Findings, and Recommendations. " +
	"Use short bullet points under Key Findings and Recommendations. " +
	"Keep the response under 250 words."

// VisitReport is a doctor report written for one visit.
type VisitReport struct {
	PredictionID string `json:"report_id"`
	Owner        string `json:"-"`
	// Path is empty when the narrative is the fallback and was not stored.
	Path     string `json:"-"`
	Text     string `json:"report"`
	Degraded bool   `json:"narrative_degraded"`
}

// GenerateVisitReport writes the doctor report of one visit the caller may
// read and stores it next to the visit's charts. A failing language model
// yields the fallback text and leaves any earlier report in place.
func (a *Assembler) GenerateVisitReport(ctx context.Context, predictionID string, caller Caller) (*VisitReport, error) {
	if strings.TrimSpace(predictionID) == "" {
		return nil, fmt.Errorf("%w: prediction_id is required", ErrInvalidInput)
	}

	records, err := SelectHistory(ctx, []string{predictionID}, caller, "")
	if err != nil {
		return nil, err
	}

	if !a.Synthesizer.Available() {
		return nil, ErrLLMUnavailable
	}

	pred := records[0]
	out := &VisitReport{PredictionID: pred.ID, Owner: pred.UserID}

	text, err := a.Synthesizer.SynthesizeVisit(ctx, pred)
	if err != nil {
		logger.Warn("Doctor report unavailable, using fallback", "prediction_id", pred.ID, "error", err)

		out.Text = FallbackVisitReport
		out.Degraded = true

		return out, nil
	}

	rel := a.Assets.TextPath(pred.UserID, pred.ID, charts.KindDoctorReport, a.now())
	if err := a.Assets.Write(rel, []byte(text)); err != nil {
		return nil, fmt.Errorf("failed to store doctor report: %w", err)
	}

	if err := db.SetReportPath(ctx, pred.ID, rel); err != nil {
		return nil, err
	}

	pred.ReportPath = rel
	out.Path = rel
	out.Text = text

	logger.Info("Doctor report created", "prediction_id", pred.ID, "owner", pred.UserID, "path", rel)

	return out, nil
}

// LoadVisitReport returns the stored doctor report of pred, or "" when it
// has none or the file is gone.
func (a *Assembler) LoadVisitReport(pred *db.Prediction) string {
	if pred.ReportPath == "" {
		return ""
	}

	data, err := a.Assets.Read(pred.ReportPath)
	if err != nil {
		logger.Warn("Stored doctor report unreadable", "prediction_id", pred.ID, "path", pred.ReportPath, "error", err)
		return ""
	}

	return string(data)
}

// BuildVisitPrompt lists the patient details and every recorded
// measurement of one visit, followed by the response format.
func BuildVisitPrompt(p *db.Prediction) string {
	var sb strings.Builder

	sb.WriteString("Write a diabetes risk assessment for the visit below.\n\n")

	name := p.PatientName
	if name == "" {
		name = "Patient"
	}

	fmt.Fprintf(&sb, "Patient: %s\n", name)

	if p.Sex != "" {
		fmt.Fprintf(&sb, "Sex: %s\n", p.Sex)
	}

	fmt.Fprintf(&sb, "Visit: %s\n", p.VisitLabel())

	if p.Prediction != "" {
		fmt.Fprintf(&sb, "Result: %s", p.Prediction)

		if p.Confidence > 0 {
			fmt.Fprintf(&sb, " (Confidence %.1f%%)", p.Confidence)
		}

		sb.WriteString("\n")
	}

	sb.WriteString("\nTest results:\n")

	for _, param := range db.Parameters {
		if v, ok := p.Value(param); ok {
			fmt.Fprintf(&sb, "- %s: %s\n", param.Label(), formatMetric(v))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(visitInstructions)
	sb.WriteString("\n")

	return sb.String()
}
