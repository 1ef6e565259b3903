/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package charts

import (
	"github.com/humaidq/glycowatch/db"
	"github.com/humaidq/glycowatch/logging"
)

var logger = logging.Logger(logging.SourceCharts)

// NormalLimits are the upper bounds of the normal range for each tracked
// metric.
var NormalLimits = map[db.Parameter]float64{
	db.ParamGlucose:       100,
	db.ParamBloodPressure: 80,
	db.ParamBMI:           24.9,
	db.ParamInsulin:       166,
}

var seriesColors = map[db.Parameter]string{
	db.ParamGlucose:       "#d62728",
	db.ParamBloodPressure: "#1f77b4",
	db.ParamBMI:           "#2ca02c",
	db.ParamInsulin:       "#9467bd",
}

// Series is one plotted metric. A nil value is a visit where the metric
// was not recorded.
type Series struct {
	Parameter db.Parameter
	Name      string
	Values    []*float64
}

// Chart is a rendered image and what was plotted on it.
type Chart struct {
	RelativePath string
	PNG          []byte
	Labels       []string
	Series       []Series
	// NoData is set when there was nothing to plot; no image is written.
	NoData bool
}

// SeriesNames lists the plotted series in legend order.
func (c *Chart) SeriesNames() []string {
	names := make([]string, 0, len(c.Series))
	for _, s := range c.Series {
		names = append(names, s.Name)
	}

	return names
}

// TrendData lays out visit rows as x-axis labels and one series per
// tracked metric. Metrics missing from every row are left out.
func TrendData(rows []db.VisitSummary) ([]string, []Series) {
	labels := make([]string, len(rows))
	for i, row := range rows {
		labels[i] = row.Label
	}

	var series []Series

	for _, param := range db.TrackedParameters {
		values := make([]*float64, len(rows))
		present := false

		for i, row := range rows {
			if v, ok := row.Value(param); ok {
				values[i] = db.Float(v)
				present = true
			}
		}

		if present {
			series = append(series, Series{Parameter: param, Name: param.Label(), Values: values})
		}
	}

	return labels, series
}

// RenderTrend draws the metric trend across ordered visits and writes it
// under the owner's report directory. An empty visit list yields a NoData
// chart.
func RenderTrend(a Assets, owner, analysisID string, ordered []*db.Prediction) (*Chart, error) {
	if len(ordered) == 0 {
		return &Chart{NoData: true}, nil
	}

	rows := make([]db.VisitSummary, len(ordered))
	for i, p := range ordered {
		rows[i] = db.SummarizeVisit(p)
	}

	labels, series := TrendData(rows)

	png, err := drawTrend(labels, series)
	if err != nil {
		return nil, err
	}

	rel := a.RelPath(owner, analysisID, KindHistoryComparison)
	if err := a.Write(rel, png); err != nil {
		return nil, err
	}

	logger.Debug("Rendered trend chart", "path", rel, "visits", len(ordered), "series", len(series))

	return &Chart{RelativePath: rel, PNG: png, Labels: labels, Series: series}, nil
}

// RenderCurrentVsNormal draws one visit's metrics against NormalLimits.
// Metrics that were not recorded are drawn as zero.
func RenderCurrentVsNormal(a Assets, owner, predictionID string, m db.Measurements) (*Chart, error) {
	series := make([]Series, 0, len(db.TrackedParameters))
	labels := make([]string, 0, len(db.TrackedParameters))

	for _, param := range db.TrackedParameters {
		v, ok := m.Value(param)
		if !ok {
			v = 0
		}

		labels = append(labels, param.Label())
		series = append(series, Series{Parameter: param, Name: param.Label(), Values: []*float64{db.Float(v)}})
	}

	png, err := drawCurrentVsNormal(series)
	if err != nil {
		return nil, err
	}

	rel := a.RelPath(owner, predictionID, KindCurrentVsNormal)
	if err := a.Write(rel, png); err != nil {
		return nil, err
	}

	return &Chart{RelativePath: rel, PNG: png, Labels: labels, Series: series}, nil
}
