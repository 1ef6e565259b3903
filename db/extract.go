/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Record is a prediction document as stored, before normalization. Older
// revisions wrote the same measurement under several key spellings, so
// reads of stored data go through Extract and ResolveTimestamp.
type Record map[string]any

// Parameter names a clinical measurement.
type Parameter string

const (
	ParamPregnancies      Parameter = "Pregnancies"
	ParamGlucose          Parameter = "Glucose"
	ParamBloodPressure    Parameter = "BloodPressure"
	ParamSkinThickness    Parameter = "SkinThickness"
	ParamInsulin          Parameter = "Insulin"
	ParamBMI              Parameter = "BMI"
	ParamDiabetesPedigree Parameter = "DiabetesPedigreeFunction"
	ParamAge              Parameter = "Age"
)

// Parameters lists every model input in feature order.
var Parameters = []Parameter{
	ParamPregnancies,
	ParamGlucose,
	ParamBloodPressure,
	ParamSkinThickness,
	ParamInsulin,
	ParamBMI,
	ParamDiabetesPedigree,
	ParamAge,
}

// TrackedParameters are the metrics plotted and compared across visits.
var TrackedParameters = []Parameter{
	ParamGlucose,
	ParamBloodPressure,
	ParamBMI,
	ParamInsulin,
}

// featureIndex is the position of each parameter in a legacy "features" list.
var featureIndex = map[Parameter]int{
	ParamPregnancies:      0,
	ParamGlucose:          1,
	ParamBloodPressure:    2,
	ParamSkinThickness:    3,
	ParamInsulin:          4,
	ParamBMI:              5,
	ParamDiabetesPedigree: 6,
	ParamAge:              7,
}

var parameterLabels = map[Parameter]string{
	ParamPregnancies:      "Pregnancies",
	ParamGlucose:          "Glucose",
	ParamBloodPressure:    "Blood Pressure",
	ParamSkinThickness:    "Skin Thickness",
	ParamInsulin:          "Insulin",
	ParamBMI:              "BMI",
	ParamDiabetesPedigree: "Diabetes Pedigree Function",
	ParamAge:              "Age",
}

// Label returns the human readable name of p.
func (p Parameter) Label() string {
	if label, ok := parameterLabels[p]; ok {
		return label
	}

	return string(p)
}

// keyVariants lists the spellings tried for p, exact key first.
func keyVariants(p Parameter) []string {
	label := p.Label()
	variants := []string{
		string(p),
		label,
		strings.ReplaceAll(label, " ", "_"),
		strings.ReplaceAll(label, " ", ""),
		strings.ReplaceAll(string(p), "_", ""),
	}

	seen := make(map[string]bool, len(variants))
	out := variants[:0]

	for _, v := range variants {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	return out
}

// Extract returns the numeric value of p in rec. Lookup order: the exact
// key, alternate spellings, the nested "medical_data" map, and finally
// the positional "features" list. ok is false when nothing matches.
func Extract(rec Record, p Parameter) (float64, bool) {
	if rec == nil {
		return 0, false
	}

	variants := keyVariants(p)

	for _, key := range variants {
		if v, ok := toFloat(rec[key]); ok {
			return v, true
		}
	}

	if nested, ok := rec["medical_data"].(map[string]any); ok {
		for _, key := range variants {
			if v, ok := toFloat(nested[key]); ok {
				return v, true
			}
		}
	}

	if features, ok := rec["features"].([]any); ok {
		if idx, known := featureIndex[p]; known && idx < len(features) {
			if v, ok := toFloat(features[idx]); ok {
				return v, true
			}
		}
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	var f float64

	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}

		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}

		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}

func stringField(rec Record, keys ...string) string {
	for _, key := range keys {
		if s, ok := rec[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	return ""
}
