// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"encoding/json"
	"testing"
)

func TestExtractPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rec   Record
		param Parameter
		want  float64
		ok    bool
	}{
		{
			name:  "exact key wins over medical_data",
			rec:   Record{"Glucose": 120.0, "medical_data": map[string]any{"Glucose": 90.0}},
			param: ParamGlucose,
			want:  120,
			ok:    true,
		},
		{
			name:  "spaced variant",
			rec:   Record{"Blood Pressure": 72.0},
			param: ParamBloodPressure,
			want:  72,
			ok:    true,
		},
		{
			name:  "underscored variant",
			rec:   Record{"Diabetes_Pedigree_Function": "0.5"},
			param: ParamDiabetesPedigree,
			want:  0.5,
			ok:    true,
		},
		{
			name:  "nested medical_data",
			rec:   Record{"medical_data": map[string]any{"BMI": 31.2}},
			param: ParamBMI,
			want:  31.2,
			ok:    true,
		},
		{
			name:  "medical_data wins over features",
			rec:   Record{"medical_data": map[string]any{"Insulin": 80.0}, "features": []any{0.0, 1.0, 2.0, 3.0, 99.0}},
			param: ParamInsulin,
			want:  80,
			ok:    true,
		},
		{
			name:  "positional feature list",
			rec:   Record{"features": []any{2.0, 148.0, 72.0, 35.0, 0.0, 33.6, 0.627, 50.0}},
			param: ParamAge,
			want:  50,
			ok:    true,
		},
		{
			name:  "short feature list",
			rec:   Record{"features": []any{2.0, 148.0}},
			param: ParamAge,
			ok:    false,
		},
		{
			name:  "null value falls through",
			rec:   Record{"Glucose": nil, "features": []any{1.0, 101.0}},
			param: ParamGlucose,
			want:  101,
			ok:    true,
		},
		{
			name:  "non-numeric string is absent",
			rec:   Record{"Glucose": "n/a"},
			param: ParamGlucose,
			ok:    false,
		},
		{
			name:  "missing everywhere",
			rec:   Record{"prediction": "Low Risk"},
			param: ParamInsulin,
			ok:    false,
		},
		{
			name:  "zero is a value",
			rec:   Record{"Insulin": 0.0},
			param: ParamInsulin,
			want:  0,
			ok:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Extract(tt.rec, tt.param)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v (value %v)", tt.ok, ok, got)
			}

			if ok && got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestExtractFromDecodedJSON(t *testing.T) {
	t.Parallel()

	var rec Record
	if err := json.Unmarshal([]byte(`{"medical_data":{"Blood Pressure":"80"},"features":[1,2,3]}`), &rec); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}

	if got, ok := Extract(rec, ParamBloodPressure); !ok || got != 80 {
		t.Fatalf("expected blood pressure 80 from medical_data, got %v ok=%v", got, ok)
	}

	if got, ok := Extract(rec, ParamGlucose); !ok || got != 2 {
		t.Fatalf("expected glucose 2 from features, got %v ok=%v", got, ok)
	}
}

func TestExtractNilRecord(t *testing.T) {
	t.Parallel()

	if _, ok := Extract(nil, ParamGlucose); ok {
		t.Fatal("expected nil record to have no values")
	}
}
