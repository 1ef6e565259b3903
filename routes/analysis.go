/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/flamego/flamego"
	"github.com/flamego/session"

	"github.com/humaidq/glycowatch/analysis"
	"github.com/humaidq/glycowatch/charts"
	"github.com/humaidq/glycowatch/db"
	"github.com/humaidq/glycowatch/report"
)

type analysisRequest struct {
	CurrentPredictionID string   `json:"current_prediction_id"`
	PastPredictionIDs   []string `json:"past_prediction_ids"`
	UserID              string   `json:"user_id"`
}

type analysisResponse struct {
	Success                 bool              `json:"success"`
	AnalysisID              string            `json:"analysis_id"`
	Explanation             string            `json:"explanation"`
	NarrativeDegraded       bool              `json:"narrative_degraded"`
	Disclaimer              string            `json:"disclaimer"`
	ComparisonGraphURL      string            `json:"comparison_graph_url"`
	CurrentVsNormalGraphURL string            `json:"current_vs_normal_graph_url"`
	ReportDownloadURL       string            `json:"report_download_url"`
	ViewURL                 string            `json:"view_url"`
	SelectedPredictions     []db.VisitSummary `json:"selected_predictions"`
}

func comparisonDownloadPath(predictionID, analysisID string) string {
	return "/prediction/comparison/" + url.PathEscape(predictionID) + "/" + url.PathEscape(analysisID) + "/download"
}

func comparisonViewPath(predictionID, analysisID string) string {
	return "/history/comparison/" + url.PathEscape(predictionID) + "/" + url.PathEscape(analysisID)
}

func predictionReportPath(predictionID string) string {
	return "/prediction/" + url.PathEscape(predictionID) + "/report/download"
}

// PredictionAnalysis compares the current prediction with two or three
// past ones and stores the result.
func PredictionAnalysis(c flamego.Context, s session.Session, svc *Services) {
	if !svc.llmAvailable() {
		writeAnalysisError(c, s, analysis.ErrLLMUnavailable)
		return
	}

	var body analysisRequest
	if err := decodeJSON(c, &body); err != nil {
		writeJSONError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	caller := sessionCaller(s)

	req := analysis.Request{
		CurrentID: body.CurrentPredictionID,
		PastIDs:   body.PastPredictionIDs,
		Caller:    caller,
	}

	// Only admins may name the patient; everyone else acts for themselves.
	if caller.IsAdmin {
		req.Owner = body.UserID
	}

	result, err := svc.Assembler.Assemble(c.Request().Context(), req)
	if err != nil {
		writeAnalysisError(c, s, err)
		return
	}

	cmp := result.Comparison

	logPipelineEvent(c, s, comparisonCreatedEvent,
		"prediction_id", result.Current.ID,
		"analysis_id", cmp.AnalysisID,
		"visits", len(cmp.SelectedPredictions),
		"narrative_degraded", cmp.NarrativeDegraded,
	)

	writeJSON(c, http.StatusOK, analysisResponse{
		Success:                 true,
		AnalysisID:              cmp.AnalysisID,
		Explanation:             cmp.Explanation,
		NarrativeDegraded:       cmp.NarrativeDegraded,
		Disclaimer:              analysis.Disclaimer,
		ComparisonGraphURL:      charts.URL(cmp.GraphRelativePath),
		CurrentVsNormalGraphURL: charts.URL(result.Current.CurrentVsNormalGraphPath),
		ReportDownloadURL:       comparisonDownloadPath(result.Current.ID, cmp.AnalysisID),
		ViewURL:                 comparisonViewPath(result.Current.ID, cmp.AnalysisID),
		SelectedPredictions:     cmp.SelectedPredictions,
	})
}

// writeAnalysisError maps analysis and store errors to HTTP responses.
// Bodies never reveal which referenced record failed authorization.
func writeAnalysisError(c flamego.Context, s session.Session, err error) {
	var sel *analysis.SelectionError

	switch {
	case errors.Is(err, analysis.ErrInvalidInput):
		writeJSONError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, analysis.ErrUnauthorized):
		extra := []interface{}{}
		if errors.As(err, &sel) {
			extra = append(extra, "foreign", len(sel.Foreign))
		}

		logAccessDenied(c, s, denyNotOwner, http.StatusForbidden, "", extra...)
		writeJSONError(c, http.StatusForbidden, analysis.ErrUnauthorized.Error())
	case errors.Is(err, analysis.ErrNotFound), errors.Is(err, db.ErrNotFound):
		writeJSONError(c, http.StatusNotFound, "Prediction not found")
	case errors.Is(err, analysis.ErrLLMUnavailable):
		writeJSONError(c, http.StatusServiceUnavailable, "AI analysis not available. Please configure an LLM API key.")
	default:
		logger.Error("Comparison request failed", "path", c.Request().URL.Path, "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to generate comparison analysis")
	}
}

// DownloadComparisonReport streams the PDF for a stored comparison.
func DownloadComparisonReport(c flamego.Context, s session.Session, svc *Services) {
	predictionID := c.Param("prediction_id")
	analysisID := c.Param("analysis_id")

	pred, cmp, err := analysis.LoadComparison(c.Request().Context(), predictionID, analysisID, sessionCaller(s))
	if err != nil {
		writeAnalysisError(c, s, err)
		return
	}

	svc.Assembler.EnsureCurrentVsNormal(c.Request().Context(), pred)

	pdf, err := report.Compose(pred, cmp, report.Options{
		Assets:      svc.Assets,
		DownloadURL: svc.externalURL(c.Request(), comparisonDownloadPath(predictionID, analysisID)),
		Disclaimer:  analysis.Disclaimer,
	})
	if err != nil {
		writeAnalysisError(c, s, err)
		return
	}

	writePDF(c, fmt.Sprintf("diabetes_comparison_%s.pdf", charts.SanitizeOwner(analysisID)), pdf)
}

// DownloadPredictionReport streams the PDF for a single prediction.
func DownloadPredictionReport(c flamego.Context, s session.Session, svc *Services) {
	predictionID := c.Param("id")
	ctx := c.Request().Context()

	records, err := analysis.SelectHistory(ctx, []string{predictionID}, sessionCaller(s), "")
	if err != nil {
		writeAnalysisError(c, s, err)
		return
	}

	pred := records[0]
	svc.Assembler.EnsureCurrentVsNormal(ctx, pred)

	opts := report.Options{
		Assets:      svc.Assets,
		DownloadURL: svc.externalURL(c.Request(), predictionReportPath(predictionID)),
	}

	if narrative := svc.Assembler.LoadVisitReport(pred); narrative != "" {
		opts.Narrative = narrative
		opts.Disclaimer = analysis.Disclaimer
	}

	pdf, err := report.Compose(pred, nil, opts)
	if err != nil {
		writeAnalysisError(c, s, err)
		return
	}

	writePDF(c, fmt.Sprintf("diabetes_report_%s.pdf", charts.SanitizeOwner(predictionID)), pdf)
}

func writePDF(c flamego.Context, filename string, pdf []byte) {
	headers := c.ResponseWriter().Header()
	headers.Set("Content-Type", "application/pdf")
	headers.Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	headers.Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	c.ResponseWriter().WriteHeader(http.StatusOK)

	if _, err := c.ResponseWriter().Write(pdf); err != nil {
		logger.Warn("Failed to write PDF", "filename", filename, "error", err)
	}
}
