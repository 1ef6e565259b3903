/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Risk levels stored on a prediction.
const (
	RiskHigh = "high"
	RiskLow  = "low"
)

// AnonymousOwner owns predictions made without an account.
const AnonymousOwner = "anonymous"

// Measurements holds clinical inputs. A nil field means the value was not
// recorded, which is different from a recorded zero.
type Measurements struct {
	Pregnancies              *float64 `json:"Pregnancies,omitempty"`
	Glucose                  *float64 `json:"Glucose,omitempty"`
	BloodPressure            *float64 `json:"BloodPressure,omitempty"`
	SkinThickness            *float64 `json:"SkinThickness,omitempty"`
	Insulin                  *float64 `json:"Insulin,omitempty"`
	BMI                      *float64 `json:"BMI,omitempty"`
	DiabetesPedigreeFunction *float64 `json:"DiabetesPedigreeFunction,omitempty"`
	Age                      *float64 `json:"Age,omitempty"`
	BMIAgeInteraction        *float64 `json:"BMI_Age_Interaction,omitempty"`
	GlucoseInsulinRatio      *float64 `json:"Glucose_Insulin_Ratio,omitempty"`
}

func (m *Measurements) field(p Parameter) **float64 {
	switch p {
	case ParamPregnancies:
		return &m.Pregnancies
	case ParamGlucose:
		return &m.Glucose
	case ParamBloodPressure:
		return &m.BloodPressure
	case ParamSkinThickness:
		return &m.SkinThickness
	case ParamInsulin:
		return &m.Insulin
	case ParamBMI:
		return &m.BMI
	case ParamDiabetesPedigree:
		return &m.DiabetesPedigreeFunction
	case ParamAge:
		return &m.Age
	}

	return nil
}

// Value returns the recorded value of p.
func (m Measurements) Value(p Parameter) (float64, bool) {
	f := m.field(p)
	if f == nil || *f == nil {
		return 0, false
	}

	return **f, true
}

// Set records v for p.
func (m *Measurements) Set(p Parameter, v float64) {
	if f := m.field(p); f != nil {
		*f = Float(v)
	}
}

// Derive fills the engineered features from BMI, age, glucose and insulin.
func (m *Measurements) Derive() {
	if m.BMI != nil && m.Age != nil {
		m.BMIAgeInteraction = Float(*m.BMI * *m.Age)
	}

	if m.Glucose != nil && m.Insulin != nil {
		m.GlucoseInsulinRatio = Float(*m.Glucose / (*m.Insulin + 1))
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Prediction is one risk assessment made by the classifier. It is the
// single stored copy; the per-user index only references it by ID.
type Prediction struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	PatientName string `json:"patient_name,omitempty"`
	Sex         string `json:"sex,omitempty"`
	Contact     string `json:"contact,omitempty"`
	Address     string `json:"address,omitempty"`

	Measurements

	Prediction string     `json:"prediction"`
	RiskLevel  string     `json:"risk_level"`
	Confidence float64    `json:"confidence"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`

	CurrentVsNormalGraphPath string                 `json:"current_vs_normal_graph_path,omitempty"`
	ReportPath               string                 `json:"report_path,omitempty"`
	Comparisons              map[string]*Comparison `json:"comparisons,omitempty"`
}

// VisitLabel is the display form of the prediction time.
func (p *Prediction) VisitLabel() string {
	return FormatVisitLabel(p.Timestamp)
}

// IsHighRisk reports whether the classifier flagged the visit.
func (p *Prediction) IsHighRisk() bool {
	return p.RiskLevel == RiskHigh
}

// VisitSummary is one row of a comparison table. Nil values were not
// recorded for that visit.
type VisitSummary struct {
	ID            string     `json:"id"`
	Label         string     `json:"label"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	Glucose       *float64   `json:"Glucose"`
	BloodPressure *float64   `json:"BloodPressure"`
	BMI           *float64   `json:"BMI"`
	Insulin       *float64   `json:"Insulin"`
	Result        string     `json:"result"`
	Confidence    float64    `json:"confidence"`
}

// Value returns the summarized value of a tracked parameter.
func (v VisitSummary) Value(p Parameter) (float64, bool) {
	var f *float64

	switch p {
	case ParamGlucose:
		f = v.Glucose
	case ParamBloodPressure:
		f = v.BloodPressure
	case ParamBMI:
		f = v.BMI
	case ParamInsulin:
		f = v.Insulin
	}

	if f == nil {
		return 0, false
	}

	return *f, true
}

// UnmarshalJSON reads every stored revision of a comparison row. Metric
// and confidence values that are not numbers, such as a dash placeholder,
// read as not recorded.
func (v *VisitSummary) UnmarshalJSON(data []byte) error {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	*v = VisitSummary{
		ID:     stringField(rec, "id", "prediction_id"),
		Label:  stringField(rec, "label"),
		Result: stringField(rec, "result", "prediction"),
	}

	if t, ok := ResolveTimestamp(Record{"timestamp": rec["timestamp"]}); ok {
		v.Timestamp = &t
	}

	for _, metric := range []struct {
		key string
		dst **float64
	}{
		{"Glucose", &v.Glucose},
		{"BloodPressure", &v.BloodPressure},
		{"BMI", &v.BMI},
		{"Insulin", &v.Insulin},
	} {
		if f, ok := toFloat(rec[metric.key]); ok {
			*metric.dst = Float(f)
		}
	}

	if f, ok := toFloat(rec["confidence"]); ok {
		v.Confidence = f
	}

	return nil
}

// SummarizeVisit builds the comparison row for p.
func SummarizeVisit(p *Prediction) VisitSummary {
	return VisitSummary{
		ID:            p.ID,
		Label:         p.VisitLabel(),
		Timestamp:     p.Timestamp,
		Glucose:       p.Glucose,
		BloodPressure: p.BloodPressure,
		BMI:           p.BMI,
		Insulin:       p.Insulin,
		Result:        p.Prediction,
		Confidence:    p.Confidence,
	}
}

// Comparison is an immutable trend analysis attached to the prediction it
// was requested from.
type Comparison struct {
	AnalysisID          string         `json:"analysis_id"`
	CreatedAt           time.Time      `json:"created_at"`
	CurrentPredictionID string         `json:"current_prediction_id"`
	PastPredictionIDs   []string       `json:"past_prediction_ids"`
	GraphRelativePath   string         `json:"graph_relative_path"`
	Explanation         string         `json:"explanation"`
	NarrativeDegraded   bool           `json:"narrative_degraded"`
	Series              []string       `json:"series"`
	SelectedPredictions []VisitSummary `json:"selected_predictions"`
}

// UnmarshalJSON reads both the current comparison layout and the earlier
// one, which stored the narrative as "groq_explanation", linked the chart
// by "graph_url" and wrote created_at as a zone-qualified ISO string.
func (c *Comparison) UnmarshalJSON(data []byte) error {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	*c = Comparison{
		AnalysisID:          stringField(rec, "analysis_id"),
		CurrentPredictionID: stringField(rec, "current_prediction_id"),
		GraphRelativePath:   stringField(rec, "graph_relative_path"),
		PastPredictionIDs:   stringList(rec["past_prediction_ids"]),
		Series:              stringList(rec["series"]),
	}

	c.NarrativeDegraded, _ = rec["narrative_degraded"].(bool)

	for _, key := range []string{"explanation", "groq_explanation"} {
		if text, ok := rec[key].(string); ok && text != "" {
			c.Explanation = text
			break
		}
	}

	if c.GraphRelativePath == "" {
		c.GraphRelativePath = staticRelative(stringField(rec, "graph_url"))
	}

	if t, ok := ResolveTimestamp(Record{"created_at": rec["created_at"]}); ok {
		c.CreatedAt = t
	}

	if rows, ok := rec["selected_predictions"].([]any); ok {
		c.SelectedPredictions = make([]VisitSummary, 0, len(rows))

		for _, row := range rows {
			encoded, err := json.Marshal(row)
			if err != nil {
				continue
			}

			var summary VisitSummary
			if err := json.Unmarshal(encoded, &summary); err != nil {
				continue
			}

			c.SelectedPredictions = append(c.SelectedPredictions, summary)
		}
	}

	return nil
}

// staticRelative turns a served chart URL back into its path under the
// asset root.
func staticRelative(url string) string {
	if url == "" {
		return ""
	}

	if _, rest, ok := strings.Cut(url, "/static/"); ok {
		return rest
	}

	return strings.TrimPrefix(url, "/")
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))

	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}

	return out
}

// DecodePrediction normalizes a stored document into a Prediction. The
// fallback id is used when the document carries none.
func DecodePrediction(id string, raw []byte) (*Prediction, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode prediction %s: %w", id, err)
	}

	return PredictionFromRecord(id, rec), nil
}

// PredictionFromRecord builds a Prediction from any stored revision of the
// document format.
func PredictionFromRecord(id string, rec Record) *Prediction {
	p := &Prediction{
		ID:                       firstNonEmpty(stringField(rec, "id", "prediction_id"), id),
		UserID:                   firstNonEmpty(stringField(rec, "user_id", "uid"), AnonymousOwner),
		PatientName:              stringField(rec, "patient_name", "name"),
		Sex:                      stringField(rec, "sex", "gender"),
		Contact:                  stringField(rec, "contact"),
		Address:                  stringField(rec, "address"),
		Prediction:               stringField(rec, "prediction", "result"),
		RiskLevel:                strings.ToLower(stringField(rec, "risk_level")),
		CurrentVsNormalGraphPath: stringField(rec, "current_vs_normal_graph_path", "current_vs_normal_graph"),
		ReportPath:               stringField(rec, "report_path", "report_file"),
	}

	for _, param := range Parameters {
		if v, ok := Extract(rec, param); ok {
			p.Set(param, v)
		}
	}

	if v, ok := toFloat(rec["BMI_Age_Interaction"]); ok {
		p.BMIAgeInteraction = Float(v)
	}

	if v, ok := toFloat(rec["Glucose_Insulin_Ratio"]); ok {
		p.GlucoseInsulinRatio = Float(v)
	}

	if v, ok := toFloat(rec["confidence"]); ok {
		p.Confidence = v
	}

	if p.RiskLevel == "" {
		p.RiskLevel = riskFromText(p.Prediction)
	}

	if t, ok := ResolveTimestamp(rec); ok {
		p.Timestamp = &t
	}

	if raw, ok := rec["comparisons"].(map[string]any); ok && len(raw) > 0 {
		p.Comparisons = decodeComparisons(p.ID, raw)
	}

	return p
}

func decodeComparisons(predictionID string, raw map[string]any) map[string]*Comparison {
	out := make(map[string]*Comparison, len(raw))

	for key, value := range raw {
		encoded, err := json.Marshal(value)
		if err != nil {
			continue
		}

		var c Comparison
		if err := json.Unmarshal(encoded, &c); err != nil {
			logger.Warn("Skipping unreadable comparison", "prediction_id", predictionID, "analysis_id", key, "error", err)
			continue
		}

		if c.AnalysisID == "" {
			c.AnalysisID = key
		}

		out[key] = &c
	}

	return out
}

func riskFromText(result string) string {
	if result == "" {
		return ""
	}

	if strings.Contains(strings.ToLower(result), "high") {
		return RiskHigh
	}

	return RiskLow
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
