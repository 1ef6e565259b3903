/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */

// Package analysis compares a patient's visits over time: it selects the
// visits a caller may see, charts them, asks a language model for a
// narrative and stores the result as a comparison entry.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/humaidq/glycowatch/charts"
	"github.com/humaidq/glycowatch/db"
)

// Bounds on the number of past visits in one comparison.
const (
	MinPastPredictions = 2
	MaxPastPredictions = 3
)

// Request asks for a comparison of the current visit against past ones.
type Request struct {
	CurrentID string
	PastIDs   []string
	Caller    Caller
	// Owner lets an admin name the patient the visits must belong to.
	Owner string
}

// Result is a stored comparison and the visit it was attached to.
type Result struct {
	Comparison *db.Comparison
	Current    *db.Prediction
	Owner      string
}

// Assembler builds comparison entries.
type Assembler struct {
	Assets      charts.Assets
	Synthesizer *Synthesizer
	Now         func() time.Time
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}

	return time.Now().UTC()
}

// Validate checks the shape of a request without touching the store.
func (r Request) Validate() error {
	if r.CurrentID == "" {
		return fmt.Errorf("%w: current_prediction_id is required", ErrInvalidInput)
	}

	if len(r.PastIDs) < MinPastPredictions || len(r.PastIDs) > MaxPastPredictions {
		return fmt.Errorf("%w: select 2 or 3 past predictions", ErrInvalidInput)
	}

	seen := map[string]bool{r.CurrentID: true}
	for _, id := range r.PastIDs {
		if id == "" {
			return fmt.Errorf("%w: past prediction IDs must not be empty", ErrInvalidInput)
		}

		if seen[id] {
			return fmt.Errorf("%w: prediction %s is selected more than once", ErrInvalidInput, id)
		}

		seen[id] = true
	}

	return nil
}

// Assemble validates and authorizes req, renders the charts, writes the
// narrative and persists a new comparison under the current visit. Every
// call creates a new entry. A failing language model only degrades the
// narrative.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ids := append([]string{req.CurrentID}, req.PastIDs...)

	records, err := SelectHistory(ctx, ids, req.Caller, req.Owner)
	if err != nil {
		return nil, err
	}

	if !a.Synthesizer.Available() {
		return nil, ErrLLMUnavailable
	}

	current := records[0]
	owner := current.UserID

	a.EnsureCurrentVsNormal(ctx, current)

	db.SortChronologically(records)

	analysisID := db.NewAnalysisID()

	trend, err := charts.RenderTrend(a.Assets, owner, analysisID, records)
	if err != nil {
		return nil, fmt.Errorf("failed to render trend chart: %w", err)
	}

	explanation, degraded := a.narrative(ctx, analysisID, records)

	rows := make([]db.VisitSummary, len(records))
	for i, p := range records {
		rows[i] = db.SummarizeVisit(p)
	}

	cmp := &db.Comparison{
		AnalysisID:          analysisID,
		CreatedAt:           a.now(),
		CurrentPredictionID: req.CurrentID,
		PastPredictionIDs:   append([]string(nil), req.PastIDs...),
		GraphRelativePath:   trend.RelativePath,
		Explanation:         explanation,
		NarrativeDegraded:   degraded,
		Series:              trend.SeriesNames(),
		SelectedPredictions: rows,
	}

	if err := db.AddComparison(ctx, req.CurrentID, cmp); err != nil {
		return nil, err
	}

	logger.Info("Comparison created",
		"analysis_id", analysisID,
		"prediction_id", req.CurrentID,
		"owner", owner,
		"visits", len(records),
		"narrative_degraded", degraded,
	)

	return &Result{Comparison: cmp, Current: current, Owner: owner}, nil
}

func (a *Assembler) narrative(ctx context.Context, analysisID string, ordered []*db.Prediction) (string, bool) {
	text, err := a.Synthesizer.Synthesize(ctx, ordered)
	if err == nil {
		return text, false
	}

	logger.Warn("Narrative unavailable, using fallback", "analysis_id", analysisID, "error", err)

	return FallbackNarrative, true
}

// EnsureCurrentVsNormal renders the current-vs-normal chart for visits
// stored before the chart existed, or whose file has since been removed.
// Failures are logged and leave the visit unchanged.
func (a *Assembler) EnsureCurrentVsNormal(ctx context.Context, current *db.Prediction) {
	if current.CurrentVsNormalGraphPath != "" && a.Assets.Exists(current.CurrentVsNormalGraphPath) {
		return
	}

	chart, err := charts.RenderCurrentVsNormal(a.Assets, current.UserID, current.ID, current.Measurements)
	if err != nil {
		logger.Warn("Failed to render current vs normal chart", "prediction_id", current.ID, "error", err)
		return
	}

	current.CurrentVsNormalGraphPath = chart.RelativePath

	if err := db.SetCurrentVsNormalChart(ctx, current.ID, chart.RelativePath); err != nil {
		logger.Warn("Failed to record current vs normal chart", "prediction_id", current.ID, "error", err)
	}
}

// LoadComparison returns a stored comparison together with the visit it
// belongs to, after checking the caller may read that visit.
func LoadComparison(ctx context.Context, predictionID, analysisID string, caller Caller) (*db.Prediction, *db.Comparison, error) {
	records, err := SelectHistory(ctx, []string{predictionID}, caller, "")
	if err != nil {
		return nil, nil, err
	}

	cmp, err := db.GetComparison(ctx, predictionID, analysisID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: comparison %s", ErrNotFound, analysisID)
	}

	if err != nil {
		return nil, nil, err
	}

	return records[0], cmp, nil
}
