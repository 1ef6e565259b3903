// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flamego/flamego"
	"github.com/urfave/cli/v3"

	"github.com/humaidq/glycowatch/analysis"
	"github.com/humaidq/glycowatch/charts"
	"github.com/humaidq/glycowatch/chatbot"
	"github.com/humaidq/glycowatch/db"
	"github.com/humaidq/glycowatch/routes"
)

func useTempStore(t *testing.T) *db.FileStore {
	t.Helper()

	fs, err := db.OpenFileStore(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	prev := db.UseStore(fs)
	t.Cleanup(func() {
		db.UseStore(prev)
	})

	return fs
}

func newTestServer(t *testing.T) *flamego.Flame {
	t.Helper()

	assets := charts.Assets{Root: t.TempDir()}

	f, err := newServer(&routes.Services{
		Assets:    assets,
		Assembler: &analysis.Assembler{Assets: assets, Synthesizer: &analysis.Synthesizer{}},
		Assistant: &chatbot.Assistant{},
	}, serverOptions{CSRFSecret: "test-secret"})
	if err != nil {
		t.Fatalf("newServer failed: %v", err)
	}

	return f
}

func doRequest(f *flamego.Flame, method, target, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	f.ServeHTTP(w, req)

	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}

	return out
}

//nolint:paralleltest // swaps the package-level store
func TestServerPublicRoutes(t *testing.T) {
	useTempStore(t)

	f := newTestServer(t)

	w := doRequest(f, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d: %s", w.Code, w.Body.String())
	}

	health := decodeBody(t, w)
	if health["model_loaded"] != false || health["llm_configured"] != false {
		t.Fatalf("unexpected health body: %v", health)
	}

	w = doRequest(f, http.MethodPost, "/predict", `{"Glucose": 120}`, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a model, got %d", w.Code)
	}

	w = doRequest(f, http.MethodGet, "/login", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Sign in") {
		t.Fatalf("expected login page, got %d: %s", w.Code, w.Body.String())
	}
}

//nolint:paralleltest // swaps the package-level store
func TestServerRequiresAuthentication(t *testing.T) {
	useTempStore(t)

	f := newTestServer(t)

	w := doRequest(f, http.MethodGet, "/statistics", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for API route, got %d", w.Code)
	}

	w = doRequest(f, http.MethodGet, "/", "", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to login, got %d %q", w.Code, w.Header().Get("Location"))
	}

	w = doRequest(f, http.MethodPost, "/prediction/analysis", `{}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for analysis, got %d", w.Code)
	}
}

//nolint:paralleltest // swaps the package-level store
func TestServerAccountFlow(t *testing.T) {
	useTempStore(t)

	f := newTestServer(t)

	w := doRequest(f, http.MethodPost, "/api/auth/register", `{"email":"pat@example.com","password":"secret1","display_name":"Pat"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(f, http.MethodPost, "/api/auth/login", `{"email":"pat@example.com","password":"secret1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected login 200, got %d: %s", w.Code, w.Body.String())
	}

	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	w = doRequest(f, http.MethodGet, "/api/user/predictions", "", cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected predictions 200, got %d: %s", w.Code, w.Body.String())
	}

	if body := decodeBody(t, w); body["total"] != float64(0) {
		t.Fatalf("expected no predictions, got %v", body)
	}

	w = doRequest(f, http.MethodPost, "/prediction/analysis", `{"current_prediction_id":"a","past_prediction_ids":["b","c"]}`, cookies)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a language model, got %d", w.Code)
	}

	w = doRequest(f, http.MethodGet, "/api/admin/users", "", cookies)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}
}

//nolint:paralleltest // swaps the package-level store
func TestRunBackfill(t *testing.T) {
	fs := useTempStore(t)
	ctx := context.Background()

	if err := fs.Set(ctx, "predictions/old", map[string]any{
		"user_id":      "u1",
		"result":       "Low Risk / No Diabetes",
		"created_at":   1736073000,
		"medical_data": map[string]any{"Glucose": 90},
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := fs.Set(ctx, "predictions/broken", "not a record"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	res, err := runBackfill(ctx)
	if err != nil {
		t.Fatalf("runBackfill failed: %v", err)
	}

	if res.Scanned != 2 || res.Rewritten != 1 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	ids, err := db.ListUserPredictionIDs(ctx, "u1")
	if err != nil || len(ids) != 1 || ids[0] != "old" {
		t.Fatalf("expected owner index entry, got %v (%v)", ids, err)
	}

	res, err = runBackfill(ctx)
	if err != nil || res.Rewritten != 0 {
		t.Fatalf("expected second run to be a no-op, got %+v (%v)", res, err)
	}
}

func TestBootstrapAdminRequiresPassword(t *testing.T) {
	t.Parallel()

	if err := bootstrapAdmin(context.Background(), "", ""); err != nil {
		t.Fatalf("expected no-op without email, got %v", err)
	}

	if err := bootstrapAdmin(context.Background(), "admin@example.com", ""); err == nil {
		t.Fatal("expected an error without a password")
	}
}

//nolint:paralleltest // swaps the package-level display zone
func TestApplyDisplayZone(t *testing.T) {
	t.Cleanup(func() { db.SetDisplayLocation(nil) })

	run := func(zone string) error {
		command := &cli.Command{
			Name:  "zone",
			Flags: storeFlags(),
			Action: func(_ context.Context, cmd *cli.Command) error {
				return applyDisplayZone(cmd)
			},
		}

		return command.Run(context.Background(), []string{"zone", "--display-tz", zone})
	}

	if err := run("Asia/Kolkata"); err != nil {
		t.Fatalf("expected Asia/Kolkata to load, got %v", err)
	}

	if got := db.DisplayLocation().String(); got != "Asia/Kolkata" {
		t.Fatalf("expected display zone Asia/Kolkata, got %q", got)
	}

	if err := run("Mars/Olympus_Mons"); !errors.Is(err, errInvalidDisplayZone) {
		t.Fatalf("expected errInvalidDisplayZone, got %v", err)
	}
}
