/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */

// Package model loads the pre-trained diabetes classifier and turns
// validated clinical inputs into a risk outcome.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/humaidq/glycowatch/db"
	"github.com/humaidq/glycowatch/logging"
)

var logger = logging.Logger(logging.SourceModel)

// DefaultPath is where the model artifact is read from.
const DefaultPath = "artifacts/model.json"

// Outcome labels.
const (
	LabelHighRisk = "High Risk of Diabetes"
	LabelLowRisk  = "Low Risk / No Diabetes"
)

// Classifier returns class probabilities, low risk first.
type Classifier interface {
	PredictProba(features []float64) ([]float64, error)
}

// Scaler normalizes raw features before classification.
type Scaler interface {
	Transform(features []float64) ([]float64, error)
}

// StandardScaler subtracts the mean and divides by the scale per feature.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Transform implements Scaler.
func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.Mean) || len(features) != len(s.Scale) {
		return nil, fmt.Errorf("%w: scaler expects %d, got %d", errFeatureCount, len(s.Mean), len(features))
	}

	out := make([]float64, len(features))
	for i, v := range features {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}

		out[i] = (v - s.Mean[i]) / scale
	}

	return out, nil
}

// LogisticRegression is a binary linear classifier.
type LogisticRegression struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// PredictProba implements Classifier.
func (l *LogisticRegression) PredictProba(features []float64) ([]float64, error) {
	if len(features) != len(l.Coefficients) {
		return nil, fmt.Errorf("%w: classifier expects %d, got %d", errFeatureCount, len(l.Coefficients), len(features))
	}

	z := l.Intercept
	for i, v := range features {
		z += l.Coefficients[i] * v
	}

	p := 1 / (1 + math.Exp(-z))

	return []float64{1 - p, p}, nil
}

type artifact struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Features  []string       `json:"features"`
	Scaler    StandardScaler `json:"scaler"`
	Threshold float64        `json:"threshold"`
	LogisticRegression
}

// Model couples a classifier with its scaler.
type Model struct {
	Name       string
	Version    string
	Scaler     Scaler
	Classifier Classifier
	Threshold  float64
}

// Outcome is the classifier's verdict on one visit.
type Outcome struct {
	Label       string
	RiskLevel   string
	Confidence  float64
	Probability float64
}

// Load reads a JSON model artifact.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}

	if len(a.Coefficients) == 0 {
		return nil, errEmptyArtifact
	}

	m := &Model{
		Name:       a.Name,
		Version:    a.Version,
		Classifier: &a.LogisticRegression,
		Threshold:  a.Threshold,
	}

	if len(a.Scaler.Mean) > 0 {
		m.Scaler = &a.Scaler
	}

	if m.Threshold <= 0 || m.Threshold >= 1 {
		m.Threshold = 0.5
	}

	logger.Info("Loaded prediction model", "name", a.Name, "version", a.Version, "features", len(a.Coefficients))

	return m, nil
}

// Features lays out measurements in the order the classifier was trained
// on, including the engineered interaction features.
func Features(m db.Measurements) []float64 {
	m.Derive()

	out := make([]float64, 0, len(db.Parameters)+2)
	for _, p := range db.Parameters {
		v, _ := m.Value(p)
		out = append(out, v)
	}

	var bmiAge, ratio float64
	if m.BMIAgeInteraction != nil {
		bmiAge = *m.BMIAgeInteraction
	}

	if m.GlucoseInsulinRatio != nil {
		ratio = *m.GlucoseInsulinRatio
	}

	return append(out, bmiAge, ratio)
}

// Predict classifies one visit. A nil model yields ErrNotLoaded.
func (m *Model) Predict(measurements db.Measurements) (Outcome, error) {
	if m == nil || m.Classifier == nil {
		return Outcome{}, ErrNotLoaded
	}

	features := Features(measurements)

	if m.Scaler != nil {
		scaled, err := m.Scaler.Transform(features)
		if err != nil {
			return Outcome{}, err
		}

		features = scaled
	}

	proba, err := m.Classifier.PredictProba(features)
	if err != nil {
		return Outcome{}, err
	}

	if len(proba) != 2 {
		return Outcome{}, fmt.Errorf("%w: got %d probabilities", errFeatureCount, len(proba))
	}

	probability := proba[1]
	high := probability >= m.Threshold
	confidence := math.Max(proba[0], proba[1]) * 100

	out := Outcome{
		Label:       LabelLowRisk,
		RiskLevel:   db.RiskLow,
		Confidence:  math.Round(confidence*100) / 100,
		Probability: probability,
	}

	if high {
		out.Label = LabelHighRisk
		out.RiskLevel = db.RiskHigh
	}

	return out, nil
}
