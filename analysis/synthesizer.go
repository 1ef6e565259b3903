/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/humaidq/glycowatch/db"
	"github.com/humaidq/glycowatch/llm"
)

// FallbackNarrative replaces the narrative when the language model fails.
const FallbackNarrative = "AI analysis is temporarily unavailable. " +
	"The chart and visit table below still show how your measurements changed between assessments."

// Disclaimer is appended to every narrative shown to a patient.
const Disclaimer = "This analysis is generated automatically from your recorded assessments " +
	"and is not a medical diagnosis. Discuss any changes with your doctor."

const narrativeSystemPrompt = "You are a board-certified endocrinologist reviewing a patient's " +
	"diabetes risk assessments. Write for the patient in plain language with a supportive clinical tone. " +
	"Never include disclaimers or advice to consult a healthcare professional, this is shown separately."

const narrativeInstructions = "Summarize in three sections titled Improvements, Concerns, and Recommendations. " +
	"For each section, provide up to three concise bullet points in plain language that a patient can understand. " +
	"Reference trends instead of repeating raw numbers. " +
	"Keep the response under 180 words and maintain a supportive clinical tone without disclaimers."

// Synthesizer writes the trend narrative for an ordered set of visits.
type Synthesizer struct {
	Client llm.Client
}

// Available reports whether a language model is configured.
func (s *Synthesizer) Available() bool {
	return s != nil && s.Client != nil
}

// Synthesize makes one language model call over ordered visits, oldest
// first. It never retries.
func (s *Synthesizer) Synthesize(ctx context.Context, ordered []*db.Prediction) (string, error) {
	return s.generate(ctx, narrativeSystemPrompt, BuildPrompt(ordered))
}

// SynthesizeVisit writes the doctor report for a single visit.
func (s *Synthesizer) SynthesizeVisit(ctx context.Context, p *db.Prediction) (string, error) {
	return s.generate(ctx, visitSystemPrompt, BuildVisitPrompt(p))
}

// SynthesizeHistory writes the longitudinal review of a patient's history.
func (s *Synthesizer) SynthesizeHistory(ctx context.Context, summary *HistorySummary) (string, error) {
	return s.generate(ctx, visitSystemPrompt, BuildHistoryPrompt(summary))
}

func (s *Synthesizer) generate(ctx context.Context, system, prompt string) (string, error) {
	if !s.Available() {
		return "", ErrLLMUnavailable
	}

	text, err := s.Client.Generate(ctx, llm.Request{
		System:   system,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if errors.Is(err, llm.ErrNotConfigured) {
		return "", ErrLLMUnavailable
	}

	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLLMFailure, err)
	}

	return text, nil
}

// BuildPrompt describes each visit on its own numbered line, followed by
// the response format.
func BuildPrompt(ordered []*db.Prediction) string {
	var sb strings.Builder

	sb.WriteString("Review the patient's diabetes-related assessments listed below.\n\n")
	sb.WriteString("Patient visits (oldest to most recent):\n")

	for i, p := range ordered {
		var metrics []string

		for _, param := range db.TrackedParameters {
			if v, ok := p.Value(param); ok {
				metrics = append(metrics, param.Label()+": "+formatMetric(v))
			}
		}

		fmt.Fprintf(&sb, "%d. %s", i+1, p.VisitLabel())

		if len(metrics) > 0 {
			sb.WriteString(" - " + strings.Join(metrics, "; "))
		}

		if p.Prediction != "" {
			sb.WriteString(" | Result: " + p.Prediction)
		}

		if p.Confidence > 0 {
			fmt.Fprintf(&sb, " (Confidence %.1f%%)", p.Confidence)
		}

		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(narrativeInstructions)
	sb.WriteString("\n")

	return sb.String()
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
