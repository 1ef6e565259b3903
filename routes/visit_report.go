/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"net/http"
	"path"

	"github.com/flamego/flamego"
	"github.com/flamego/session"

	"github.com/humaidq/glycowatch/analysis"
)

type generateReportRequest struct {
	PredictionID string `json:"prediction_id"`
}

type generateReportResponse struct {
	Success bool `json:"success"`
	*analysis.VisitReport
	ReportFile        string `json:"report_file,omitempty"`
	Disclaimer        string `json:"disclaimer"`
	ReportDownloadURL string `json:"report_download_url"`
}

type historyResponse struct {
	Success  bool                     `json:"success"`
	Analysis *analysis.HistorySummary `json:"analysis"`
}

type reviewResponse struct {
	Success bool `json:"success"`
	*analysis.HistoryReview
	Disclaimer string `json:"disclaimer"`
}

// GenerateReport writes the doctor report of one prediction. The stored
// text is printed on the prediction's PDF.
func GenerateReport(c flamego.Context, s session.Session, svc *Services) {
	if !svc.llmAvailable() {
		writeAnalysisError(c, s, analysis.ErrLLMUnavailable)
		return
	}

	var body generateReportRequest
	if err := decodeJSON(c, &body); err != nil {
		writeJSONError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	rep, err := svc.Assembler.GenerateVisitReport(c.Request().Context(), body.PredictionID, sessionCaller(s))
	if err != nil {
		writeAnalysisError(c, s, err)
		return
	}

	logPipelineEvent(c, s, reportCreatedEvent,
		"prediction_id", rep.PredictionID,
		"narrative_degraded", rep.Degraded,
	)

	resp := generateReportResponse{
		Success:           true,
		VisitReport:       rep,
		Disclaimer:        analysis.Disclaimer,
		ReportDownloadURL: predictionReportPath(rep.PredictionID),
	}

	if rep.Path != "" {
		resp.ReportFile = path.Base(rep.Path)
	}

	writeJSON(c, http.StatusOK, resp)
}

// ComprehensiveAnalysis returns aggregate figures over the caller's whole
// history. Admins may pass user_id to read another patient's.
func ComprehensiveAnalysis(c flamego.Context, s session.Session) {
	summary, err := analysis.LoadHistorySummary(c.Request().Context(), sessionCaller(s), c.Query("user_id"))
	if err != nil {
		writeAnalysisError(c, s, err)
		return
	}

	writeJSON(c, http.StatusOK, historyResponse{Success: true, Analysis: summary})
}

// AggregateAnalysis adds a language model review to the history figures.
func AggregateAnalysis(c flamego.Context, s session.Session, svc *Services) {
	if !svc.llmAvailable() {
		writeAnalysisError(c, s, analysis.ErrLLMUnavailable)
		return
	}

	review, err := svc.Assembler.ReviewHistory(c.Request().Context(), sessionCaller(s), c.Query("user_id"))
	if err != nil {
		writeAnalysisError(c, s, err)
		return
	}

	writeJSON(c, http.StatusOK, reviewResponse{
		Success:       true,
		HistoryReview: review,
		Disclaimer:    analysis.Disclaimer,
	})
}
