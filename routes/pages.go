/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"errors"
	htmltemplate "html/template"
	"net/http"

	"github.com/flamego/flamego"
	"github.com/flamego/session"
	"github.com/flamego/template"

	"github.com/humaidq/glycowatch/analysis"
	"github.com/humaidq/glycowatch/charts"
	"github.com/humaidq/glycowatch/db"
)

// HistoryPage lists the signed-in user's predictions with the compare form.
func HistoryPage(c flamego.Context, s session.Session, svc *Services, t template.Template, data template.Data) {
	userID, _ := getSessionUserID(s)

	preds, err := db.ListUserPredictions(c.Request().Context(), userID)
	if err != nil {
		logger.Error("Failed to list predictions", "user_id", userID, "error", err)
		data["Error"] = "Failed to load your predictions"
	}

	data["PageTitle"] = "History"
	data["Predictions"] = viewPredictions(preds)
	data["Statistics"] = db.Statistics(preds)
	data["CanCompare"] = len(preds) >= analysis.MinPastPredictions+1 && svc.llmAvailable()
	data["LLMAvailable"] = svc.llmAvailable()
	t.HTML(http.StatusOK, "history")
}

// CompareForm runs a comparison from the history page and shows it.
func CompareForm(c flamego.Context, s session.Session, svc *Services) {
	r := c.Request()
	if err := r.ParseForm(); err != nil {
		SetErrorFlash(s, "Invalid form submission")
		c.Redirect("/", http.StatusSeeOther)

		return
	}

	if !svc.llmAvailable() {
		SetWarningFlash(s, "AI analysis is not available right now")
		c.Redirect("/", http.StatusSeeOther)

		return
	}

	result, err := svc.Assembler.Assemble(r.Context(), analysis.Request{
		CurrentID: r.Form.Get("current"),
		PastIDs:   r.Form["past"],
		Caller:    sessionCaller(s),
	})
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrInvalidInput):
			SetErrorFlash(s, "Select one current visit and two or three earlier visits")
		case errors.Is(err, analysis.ErrUnauthorized), errors.Is(err, analysis.ErrNotFound):
			logAccessDenied(c, s, denyNotOwner, http.StatusSeeOther, "/")
			SetErrorFlash(s, "Prediction not found")
		default:
			logger.Error("Comparison from history page failed", "error", err)
			SetErrorFlash(s, "Failed to generate comparison analysis")
		}

		c.Redirect("/", http.StatusSeeOther)

		return
	}

	logPipelineEvent(c, s, comparisonCreatedEvent,
		"prediction_id", result.Current.ID,
		"analysis_id", result.Comparison.AnalysisID,
		"visits", len(result.Comparison.SelectedPredictions),
		"narrative_degraded", result.Comparison.NarrativeDegraded,
	)

	if result.Comparison.NarrativeDegraded {
		SetInfoFlash(s, "The AI summary could not be generated; a standard summary is shown instead")
	}

	c.Redirect(comparisonViewPath(result.Current.ID, result.Comparison.AnalysisID), http.StatusSeeOther)
}

// ComparisonPage shows a stored comparison with its interactive chart.
func ComparisonPage(c flamego.Context, s session.Session, t template.Template, data template.Data) {
	predictionID := c.Param("prediction_id")
	analysisID := c.Param("analysis_id")

	pred, cmp, err := analysis.LoadComparison(c.Request().Context(), predictionID, analysisID, sessionCaller(s))
	if err != nil {
		if errors.Is(err, analysis.ErrUnauthorized) {
			logAccessDenied(c, s, denyNotOwner, http.StatusSeeOther, "/")
		} else if !errors.Is(err, analysis.ErrNotFound) && !errors.Is(err, db.ErrNotFound) {
			logger.Error("Failed to load comparison", "prediction_id", predictionID, "analysis_id", analysisID, "error", err)
		}

		SetErrorFlash(s, "Comparison not found")
		c.Redirect("/", http.StatusSeeOther)

		return
	}

	chart, err := charts.TrendHTML(cmp.SelectedPredictions)
	if err != nil {
		logger.Warn("Failed to render interactive chart", "analysis_id", analysisID, "error", err)
	} else {
		data["Chart"] = htmltemplate.HTML(chart) //nolint:gosec // go-echarts output
	}

	data["PageTitle"] = "Comparison"
	data["Prediction"] = viewPrediction(pred)
	data["Comparison"] = cmp
	data["Visits"] = cmp.SelectedPredictions
	data["Disclaimer"] = analysis.Disclaimer
	data["GraphURL"] = charts.URL(cmp.GraphRelativePath)
	data["DownloadURL"] = comparisonDownloadPath(pred.ID, cmp.AnalysisID)
	t.HTML(http.StatusOK, "comparison")
}
