/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package charts

import (
	"bytes"
	"fmt"
	"math"

	"github.com/fogleman/gg"
)

const (
	trendWidth   = 1000
	trendHeight  = 560
	barWidth     = 820
	barHeight    = 480
	marginLeft   = 70.0
	marginRight  = 190.0
	marginTop    = 60.0
	marginBottom = 130.0
	yTicks       = 5
)

const (
	colorBackground = "#ffffff"
	colorText       = "#222222"
	colorMuted      = "#666666"
	colorGrid       = "#e6e6e6"
	colorAxis       = "#999999"
	colorCurrent    = "#1f77b4"
	colorNormal     = "#9ecae1"
)

type plotArea struct {
	left, top, width, height float64
	yMax                     float64
}

func (p plotArea) y(v float64) float64 {
	return p.top + p.height - (v/p.yMax)*p.height
}

func (p plotArea) bottom() float64 {
	return p.top + p.height
}

// niceCeil rounds v up to 1, 2 or 5 times a power of ten.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 1
	}

	exp := math.Pow(10, math.Floor(math.Log10(v)))
	f := v / exp

	switch {
	case f <= 1:
		f = 1
	case f <= 2:
		f = 2
	case f <= 5:
		f = 5
	default:
		f = 10
	}

	return f * exp
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}

	return fmt.Sprintf("%.1f", v)
}

func newCanvas(width, height int, title string) *gg.Context {
	dc := gg.NewContext(width, height)
	dc.SetHexColor(colorBackground)
	dc.Clear()

	dc.SetHexColor(colorText)
	dc.DrawStringAnchored(title, float64(width)/2, marginTop/2, 0.5, 0.5)

	return dc
}

func drawGrid(dc *gg.Context, p plotArea) {
	dc.SetLineWidth(1)

	for i := 0; i <= yTicks; i++ {
		v := p.yMax * float64(i) / yTicks
		y := p.y(v)

		dc.SetHexColor(colorGrid)
		dc.DrawLine(p.left, y, p.left+p.width, y)
		dc.Stroke()

		dc.SetHexColor(colorMuted)
		dc.DrawStringAnchored(formatValue(v), p.left-8, y, 1, 0.5)
	}

	dc.SetHexColor(colorAxis)
	dc.DrawLine(p.left, p.top, p.left, p.bottom())
	dc.DrawLine(p.left, p.bottom(), p.left+p.width, p.bottom())
	dc.Stroke()
}

func drawLegend(dc *gg.Context, x, y float64, names, colors []string) {
	for i, name := range names {
		ly := y + float64(i)*22

		dc.SetHexColor(colors[i])
		dc.DrawRectangle(x, ly-6, 14, 12)
		dc.Fill()

		dc.SetHexColor(colorText)
		dc.DrawStringAnchored(name, x+22, ly, 0, 0.5)
	}
}

func encodePNG(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}

	return buf.Bytes(), nil
}

func drawTrend(labels []string, series []Series) ([]byte, error) {
	dc := newCanvas(trendWidth, trendHeight, "Health Metrics Over Time")

	maxV := 0.0

	for _, s := range series {
		for _, v := range s.Values {
			if v != nil && *v > maxV {
				maxV = *v
			}
		}
	}

	p := plotArea{
		left:   marginLeft,
		top:    marginTop,
		width:  trendWidth - marginLeft - marginRight,
		height: trendHeight - marginTop - marginBottom,
		yMax:   niceCeil(maxV * 1.1),
	}

	drawGrid(dc, p)

	n := len(labels)
	x := func(i int) float64 {
		if n == 1 {
			return p.left + p.width/2
		}

		return p.left + p.width*float64(i)/float64(n-1)
	}

	for i, label := range labels {
		lx, ly := x(i), p.bottom()+14

		dc.Push()
		dc.RotateAbout(gg.Radians(-30), lx, ly)
		dc.SetHexColor(colorMuted)
		dc.DrawStringAnchored(label, lx, ly, 1, 0.5)
		dc.Pop()
	}

	if len(series) == 0 {
		dc.SetHexColor(colorMuted)
		dc.DrawStringAnchored("No tracked metrics recorded for these visits", p.left+p.width/2, p.top+p.height/2, 0.5, 0.5)
	}

	names := make([]string, 0, len(series))
	colors := make([]string, 0, len(series))

	for _, s := range series {
		color := seriesColors[s.Parameter]
		names = append(names, s.Name)
		colors = append(colors, color)

		dc.SetHexColor(color)
		dc.SetLineWidth(2.5)

		// Only consecutive recorded visits are joined.
		havePrev := false

		var px, py float64

		for i, v := range s.Values {
			if v == nil {
				havePrev = false
				continue
			}

			cx, cy := x(i), p.y(*v)
			if havePrev {
				dc.DrawLine(px, py, cx, cy)
				dc.Stroke()
			}

			dc.DrawCircle(cx, cy, 4.5)
			dc.Fill()

			px, py, havePrev = cx, cy, true
		}
	}

	drawLegend(dc, p.left+p.width+24, p.top+10, names, colors)

	return encodePNG(dc)
}

func drawCurrentVsNormal(series []Series) ([]byte, error) {
	dc := newCanvas(barWidth, barHeight, "Current Values vs Normal Limits")

	maxV := 0.0

	for _, s := range series {
		if v := *s.Values[0]; v > maxV {
			maxV = v
		}

		if limit := NormalLimits[s.Parameter]; limit > maxV {
			maxV = limit
		}
	}

	p := plotArea{
		left:   marginLeft,
		top:    marginTop,
		width:  barWidth - marginLeft - marginRight,
		height: barHeight - marginTop - 70,
		yMax:   niceCeil(maxV * 1.1),
	}

	drawGrid(dc, p)

	groupWidth := p.width / float64(len(series))
	bar := groupWidth * 0.32

	for i, s := range series {
		center := p.left + groupWidth*(float64(i)+0.5)
		current := *s.Values[0]
		limit := NormalLimits[s.Parameter]

		for j, v := range []float64{current, limit} {
			bx := center - bar + float64(j)*bar
			by := p.y(v)

			if j == 0 {
				dc.SetHexColor(colorCurrent)
			} else {
				dc.SetHexColor(colorNormal)
			}

			dc.DrawRectangle(bx, by, bar-2, p.bottom()-by)
			dc.Fill()

			dc.SetHexColor(colorText)
			dc.DrawStringAnchored(formatValue(v), bx+bar/2, by-8, 0.5, 0.5)
		}

		dc.SetHexColor(colorMuted)
		dc.DrawStringAnchored(s.Name, center, p.bottom()+18, 0.5, 0.5)
	}

	drawLegend(dc, p.left+p.width+24, p.top+10, []string{"Current", "Normal limit"}, []string{colorCurrent, colorNormal})

	return encodePNG(dc)
}
