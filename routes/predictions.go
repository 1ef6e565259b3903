/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/flamego/flamego"
	"github.com/flamego/session"

	"github.com/humaidq/glycowatch/analysis"
	"github.com/humaidq/glycowatch/charts"
	"github.com/humaidq/glycowatch/db"
	"github.com/humaidq/glycowatch/model"
)

// predictionView is a prediction as returned by the JSON API.
type predictionView struct {
	*db.Prediction
	CurrentVsNormalGraphURL string `json:"current_vs_normal_graph_url,omitempty"`
	ReportDownloadURL       string `json:"report_download_url"`
	ComparisonCount         int    `json:"comparison_count"`
}

func viewPrediction(p *db.Prediction) predictionView {
	return predictionView{
		Prediction:              p,
		CurrentVsNormalGraphURL: charts.URL(p.CurrentVsNormalGraphPath),
		ReportDownloadURL:       predictionReportPath(p.ID),
		ComparisonCount:         len(p.Comparisons),
	}
}

func viewPredictions(preds []*db.Prediction) []predictionView {
	out := make([]predictionView, len(preds))
	for i, p := range preds {
		out[i] = viewPrediction(p)
	}

	return out
}

// Predict validates clinical inputs, classifies them and stores the
// assessment for the signed-in user, or anonymously.
func Predict(c flamego.Context, s session.Session, svc *Services) {
	if svc.Model == nil {
		writeJSONError(c, http.StatusServiceUnavailable, "Prediction model not loaded")
		return
	}

	var in model.Input
	if err := decodeJSON(c, &in); err != nil {
		writeJSONError(c, http.StatusBadRequest, "Invalid input format")
		return
	}

	patient, measurements, err := in.Validate()
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeJSON(c, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   verr.Message,
				"field":   verr.Field,
			})

			return
		}

		writeJSONError(c, http.StatusBadRequest, "Invalid input")

		return
	}

	outcome, err := svc.Model.Predict(measurements)
	if err != nil {
		logger.Error("Prediction failed", "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Prediction failed")

		return
	}

	ctx := c.Request().Context()

	pred := &db.Prediction{
		UserID:       predictionOwner(s),
		PatientName:  patient.Name,
		Sex:          patient.Sex,
		Contact:      patient.Contact,
		Address:      patient.Address,
		Measurements: measurements,
		Prediction:   outcome.Label,
		RiskLevel:    outcome.RiskLevel,
		Confidence:   outcome.Confidence,
	}

	if err := db.CreatePrediction(ctx, pred); err != nil {
		logger.Error("Failed to store prediction", "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to save prediction")

		return
	}

	chart, err := charts.RenderCurrentVsNormal(svc.Assets, pred.UserID, pred.ID, pred.Measurements)
	if err != nil {
		logger.Warn("Failed to render current vs normal chart", "prediction_id", pred.ID, "error", err)
	} else if err := db.SetCurrentVsNormalChart(ctx, pred.ID, chart.RelativePath); err != nil {
		logger.Warn("Failed to record current vs normal chart", "prediction_id", pred.ID, "error", err)
	} else {
		pred.CurrentVsNormalGraphPath = chart.RelativePath
	}

	logPipelineEvent(c, s, predictionCreatedEvent,
		"prediction_id", pred.ID,
		"owner", pred.UserID,
		"risk_level", pred.RiskLevel,
	)

	resp := map[string]interface{}{
		"success":                     true,
		"prediction_id":               pred.ID,
		"prediction":                  outcome.Label,
		"risk_level":                  outcome.RiskLevel,
		"confidence":                  outcome.Confidence,
		"probability":                 outcome.Probability,
		"timestamp":                   pred.Timestamp,
		"current_vs_normal_graph_url": charts.URL(pred.CurrentVsNormalGraphPath),
	}

	// Reports need an account to be downloaded.
	if pred.UserID != db.AnonymousOwner {
		resp["report_download_url"] = predictionReportPath(pred.ID)
	}

	writeJSON(c, http.StatusOK, resp)
}

// UserPredictions lists the signed-in user's predictions, newest first.
func UserPredictions(c flamego.Context, s session.Session) {
	userID, _ := getSessionUserID(s)

	preds, err := db.ListUserPredictions(c.Request().Context(), userID)
	if err != nil {
		logger.Error("Failed to list predictions", "user_id", userID, "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to load predictions")

		return
	}

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success":     true,
		"predictions": viewPredictions(preds),
		"total":       len(preds),
	})
}

// UserPrediction returns one prediction the caller may read.
func UserPrediction(c flamego.Context, s session.Session) {
	records, err := analysis.SelectHistory(c.Request().Context(), []string{c.Param("id")}, sessionCaller(s), "")
	if err != nil {
		writeAnalysisError(c, s, err)
		return
	}

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success":    true,
		"prediction": viewPrediction(records[0]),
	})
}

// Statistics summarizes predictions: every stored one for admins, the
// caller's own otherwise.
func Statistics(c flamego.Context, s session.Session) {
	ctx := c.Request().Context()
	caller := sessionCaller(s)

	var (
		preds []*db.Prediction
		err   error
	)

	if caller.IsAdmin {
		preds, err = db.ListAllPredictions(ctx)
	} else {
		preds, err = db.ListUserPredictions(ctx, caller.ID)
	}

	if err != nil {
		logger.Error("Failed to load statistics", "user_id", caller.ID, "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to load statistics")

		return
	}

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success":    true,
		"statistics": db.Statistics(preds),
	})
}

// ServeChart serves a generated chart image. Charts of anonymous
// predictions are public; the rest need the owner or an admin.
func ServeChart(c flamego.Context, s session.Session, svc *Services) {
	owner := c.Param("owner")
	file := c.Param("file")

	if owner == "" || file == "" || strings.ContainsAny(owner+file, "/\\") || path.Ext(file) != ".png" {
		c.ResponseWriter().WriteHeader(http.StatusNotFound)
		return
	}

	if owner != charts.SanitizeOwner(db.AnonymousOwner) {
		caller := sessionCaller(s)
		if !caller.IsAdmin && (caller.ID == "" || charts.SanitizeOwner(caller.ID) != owner) {
			logAccessDenied(c, s, denyNotOwner, http.StatusForbidden, "", "chart_owner", owner)
			c.ResponseWriter().WriteHeader(http.StatusForbidden)

			return
		}
	}

	rel := path.Join(charts.ReportsDir, owner, file)

	data, err := svc.Assets.Read(rel)
	if err != nil {
		c.ResponseWriter().WriteHeader(http.StatusNotFound)
		return
	}

	c.ResponseWriter().Header().Set("Content-Type", "image/png")
	c.ResponseWriter().Header().Set("Cache-Control", "private, max-age=300")
	c.ResponseWriter().WriteHeader(http.StatusOK)

	if _, err := c.ResponseWriter().Write(data); err != nil {
		logger.Warn("Failed to write chart", "path", rel, "error", err)
	}
}
