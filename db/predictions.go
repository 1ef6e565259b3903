/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	predictionsRoot = "predictions"
	usersRoot       = "users"
)

// NewPredictionID returns a fresh prediction ID.
func NewPredictionID() string {
	return "pred_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewAnalysisID returns a fresh comparison ID.
func NewAnalysisID() string {
	return "analysis_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func predictionPath(id string) string {
	return JoinPath(predictionsRoot, id)
}

func ownerIndexPath(userID, predictionID string) string {
	return JoinPath(usersRoot, userID, predictionsRoot, predictionID)
}

// CreatePrediction stores p and indexes it under its owner. Missing IDs,
// owners and timestamps are filled in.
func CreatePrediction(ctx context.Context, p *Prediction) error {
	s, err := activeStore()
	if err != nil {
		return err
	}

	if p.ID == "" {
		p.ID = NewPredictionID()
	}

	if p.UserID == "" {
		p.UserID = AnonymousOwner
	}

	if p.Timestamp == nil {
		now := time.Now().UTC()
		p.Timestamp = &now
	}

	if !ValidSegment(p.ID) || !ValidSegment(p.UserID) {
		return fmt.Errorf("%w: prediction %q owner %q", ErrInvalidPath, p.ID, p.UserID)
	}

	if err := s.Set(ctx, predictionPath(p.ID), p); err != nil {
		return fmt.Errorf("failed to store prediction: %w", err)
	}

	if err := s.Set(ctx, ownerIndexPath(p.UserID, p.ID), true); err != nil {
		return fmt.Errorf("failed to index prediction: %w", err)
	}

	return nil
}

// GetPrediction loads one prediction.
func GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	s, err := activeStore()
	if err != nil {
		return nil, err
	}

	if !ValidSegment(id) {
		return nil, ErrNotFound
	}

	raw, err := s.Get(ctx, predictionPath(id))
	if err != nil {
		return nil, err
	}

	return DecodePrediction(id, raw)
}

// GetPredictions loads every ID as one logical batch. IDs with no stored
// prediction are returned in missing, in request order; any other store
// failure aborts the batch.
func GetPredictions(ctx context.Context, ids []string) (map[string]*Prediction, []string, error) {
	found := make(map[string]*Prediction, len(ids))

	var missing []string

	for _, id := range ids {
		if _, done := found[id]; done {
			continue
		}

		p, err := GetPrediction(ctx, id)
		if errors.Is(err, ErrNotFound) {
			missing = append(missing, id)
			continue
		}

		if err != nil {
			return nil, nil, fmt.Errorf("failed to load prediction %s: %w", id, err)
		}

		found[id] = p
	}

	return found, missing, nil
}

// SetCurrentVsNormalChart records the chart asset of a prediction.
func SetCurrentVsNormalChart(ctx context.Context, predictionID, relPath string) error {
	s, err := activeStore()
	if err != nil {
		return err
	}

	return s.Update(ctx, predictionPath(predictionID), map[string]any{
		"current_vs_normal_graph_path": relPath,
	})
}

// SetReportPath records the stored doctor report of a prediction.
func SetReportPath(ctx context.Context, predictionID, relPath string) error {
	s, err := activeStore()
	if err != nil {
		return err
	}

	return s.Update(ctx, predictionPath(predictionID), map[string]any{
		"report_path": relPath,
	})
}

// AddComparison stores c under its own key so concurrent comparisons on
// the same prediction never overwrite each other.
func AddComparison(ctx context.Context, predictionID string, c *Comparison) error {
	s, err := activeStore()
	if err != nil {
		return err
	}

	if !ValidSegment(c.AnalysisID) {
		return fmt.Errorf("%w: analysis %q", ErrInvalidPath, c.AnalysisID)
	}

	path := JoinPath(predictionsRoot, predictionID, "comparisons", c.AnalysisID)
	if err := s.Set(ctx, path, c); err != nil {
		return fmt.Errorf("failed to store comparison: %w", err)
	}

	return nil
}

// GetComparison loads one comparison entry of a prediction.
func GetComparison(ctx context.Context, predictionID, analysisID string) (*Comparison, error) {
	if !ValidSegment(predictionID) || !ValidSegment(analysisID) {
		return nil, ErrNotFound
	}

	var c Comparison
	if err := getJSON(ctx, JoinPath(predictionsRoot, predictionID, "comparisons", analysisID), &c); err != nil {
		return nil, err
	}

	if c.AnalysisID == "" {
		c.AnalysisID = analysisID
	}

	return &c, nil
}

// ListUserPredictionIDs returns the IDs indexed under a user.
func ListUserPredictionIDs(ctx context.Context, userID string) ([]string, error) {
	s, err := activeStore()
	if err != nil {
		return nil, err
	}

	if !ValidSegment(userID) {
		return nil, nil
	}

	raw, err := s.Get(ctx, JoinPath(usersRoot, userID, predictionsRoot))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	var ids []string

	gjson.ParseBytes(raw).ForEach(func(key, _ gjson.Result) bool {
		ids = append(ids, key.String())
		return true
	})

	sort.Strings(ids)

	return ids, nil
}

// ListUserPredictions returns a user's predictions, newest first. Index
// entries whose prediction is gone are skipped.
func ListUserPredictions(ctx context.Context, userID string) ([]*Prediction, error) {
	ids, err := ListUserPredictionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	found, missing, err := GetPredictions(ctx, ids)
	if err != nil {
		return nil, err
	}

	if len(missing) > 0 {
		logger.Warn("Owner index references missing predictions", "user_id", userID, "missing", strings.Join(missing, ","))
	}

	preds := make([]*Prediction, 0, len(found))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			preds = append(preds, p)
		}
	}

	newestFirst(preds)

	return preds, nil
}

// newestFirst sorts preds by time, newest first. Undated visits stay at
// the end.
func newestFirst(preds []*Prediction) {
	SortChronologically(preds)

	resolved := 0
	for resolved < len(preds) && preds[resolved].Timestamp != nil {
		resolved++
	}

	for i, j := 0, resolved-1; i < j; i, j = i+1, j-1 {
		preds[i], preds[j] = preds[j], preds[i]
	}
}

// LatestUserPredictions returns at most n of a user's newest predictions.
func LatestUserPredictions(ctx context.Context, userID string, n int) ([]*Prediction, error) {
	preds, err := ListUserPredictions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(preds) > n {
		preds = preds[:n]
	}

	return preds, nil
}

// ListPredictionIDs returns every stored prediction ID.
func ListPredictionIDs(ctx context.Context) ([]string, error) {
	s, err := activeStore()
	if err != nil {
		return nil, err
	}

	raw, err := s.Get(ctx, predictionsRoot)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	var ids []string

	gjson.ParseBytes(raw).ForEach(func(key, _ gjson.Result) bool {
		ids = append(ids, key.String())
		return true
	})

	sort.Strings(ids)

	return ids, nil
}

// ListAllPredictions decodes every stored prediction, newest first.
// Entries that fail to decode are logged and skipped.
func ListAllPredictions(ctx context.Context) ([]*Prediction, error) {
	s, err := activeStore()
	if err != nil {
		return nil, err
	}

	raw, err := s.Get(ctx, predictionsRoot)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	var preds []*Prediction

	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		p, err := DecodePrediction(key.String(), []byte(value.Raw))
		if err != nil {
			logger.Warn("Skipping undecodable prediction", "prediction_id", key.String(), "error", err)
			return true
		}

		preds = append(preds, p)

		return true
	})

	newestFirst(preds)

	return preds, nil
}

// CanonicalizePrediction rewrites a stored prediction in the current
// document format and indexes it under its owner. It reports whether the
// stored bytes changed.
func CanonicalizePrediction(ctx context.Context, id string) (bool, error) {
	s, err := activeStore()
	if err != nil {
		return false, err
	}

	raw, err := s.Get(ctx, predictionPath(id))
	if err != nil {
		return false, err
	}

	p, err := DecodePrediction(id, raw)
	if err != nil {
		return false, err
	}

	p.ID = id
	p.Derive()

	p.Comparisons = nil

	canonical, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("failed to encode prediction %s: %w", id, err)
	}

	// Comparisons are immutable: every entry is carried over exactly as
	// stored, including ones this version cannot read.
	if stored := gjson.GetBytes(raw, "comparisons"); stored.Exists() && stored.Type != gjson.Null {
		canonical, err = sjson.SetRawBytes(canonical, "comparisons", []byte(stored.Raw))
		if err != nil {
			return false, fmt.Errorf("failed to carry comparisons of %s: %w", id, err)
		}
	}

	changed := !jsonEqual(raw, canonical)
	if changed {
		if err := s.Set(ctx, predictionPath(id), json.RawMessage(canonical)); err != nil {
			return false, fmt.Errorf("failed to rewrite prediction %s: %w", id, err)
		}
	}

	if ValidSegment(p.UserID) {
		if err := s.Set(ctx, ownerIndexPath(p.UserID, id), true); err != nil {
			return changed, fmt.Errorf("failed to index prediction %s: %w", id, err)
		}
	}

	return changed, nil
}

func jsonEqual(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}

	ca, errA := json.Marshal(va)
	cb, errB := json.Marshal(vb)

	return errA == nil && errB == nil && string(ca) == string(cb)
}

// DeleteUserPredictions removes every prediction indexed under a user
// together with the index, returning the deleted IDs.
func DeleteUserPredictions(ctx context.Context, userID string) ([]string, error) {
	s, err := activeStore()
	if err != nil {
		return nil, err
	}

	ids, err := ListUserPredictionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := s.Delete(ctx, predictionPath(id)); err != nil {
			return nil, fmt.Errorf("failed to delete prediction %s: %w", id, err)
		}
	}

	if err := s.Delete(ctx, JoinPath(usersRoot, userID, predictionsRoot)); err != nil {
		return nil, fmt.Errorf("failed to delete prediction index: %w", err)
	}

	return ids, nil
}

// Stats summarizes a set of predictions.
type Stats struct {
	Total              int     `json:"total_predictions"`
	HighRisk           int     `json:"high_risk_count"`
	LowRisk            int     `json:"low_risk_count"`
	AverageConfidence  float64 `json:"average_confidence"`
	HighRiskPercentage float64 `json:"high_risk_percentage"`
}

// Statistics computes Stats over preds. Averages are rounded to one decimal.
func Statistics(preds []*Prediction) Stats {
	var (
		st  Stats
		sum float64
	)

	for _, p := range preds {
		st.Total++
		sum += p.Confidence

		if p.IsHighRisk() {
			st.HighRisk++
		} else {
			st.LowRisk++
		}
	}

	if st.Total > 0 {
		st.AverageConfidence = math.Round(sum/float64(st.Total)*10) / 10
		st.HighRiskPercentage = math.Round(float64(st.HighRisk)*1000/float64(st.Total)) / 10
	}

	return st
}
