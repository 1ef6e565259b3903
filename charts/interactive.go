/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package charts

import (
	"bytes"
	"fmt"

	echarts "github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/humaidq/glycowatch/db"
)

// TrendHTML renders visit rows as an interactive line chart page. Values
// that were not recorded become gaps in the line.
func TrendHTML(rows []db.VisitSummary) (string, error) {
	labels, series := TrendData(rows)

	line := echarts.NewLine()
	line.SetGlobalOptions(
		echarts.WithTitleOpts(opts.Title{
			Title: "Health Metrics Over Time",
		}),
		echarts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		echarts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "bottom",
		}),
		echarts.WithInitializationOpts(opts.Initialization{
			Width:  "100%",
			Height: "420px",
		}),
	)

	line.SetXAxis(labels)

	for _, s := range series {
		data := make([]opts.LineData, len(s.Values))
		for i, v := range s.Values {
			if v == nil {
				data[i] = opts.LineData{Value: "-"}
				continue
			}

			data[i] = opts.LineData{Value: *v}
		}

		line.AddSeries(s.Name, data,
			echarts.WithLineChartOpts(opts.LineChart{
				ShowSymbol: opts.Bool(true),
			}),
			echarts.WithItemStyleOpts(opts.ItemStyle{
				Color: seriesColors[s.Parameter],
			}),
			echarts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
				Name:  fmt.Sprintf("%s normal limit", s.Name),
				YAxis: NormalLimits[s.Parameter],
			}),
		)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render trend chart: %w", err)
	}

	return buf.String(), nil
}
