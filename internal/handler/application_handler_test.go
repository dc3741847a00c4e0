package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/summit/internal/model"
	"github.com/hitoshi/summit/internal/startup"
)

func TestApplicationHandler_Submit_JSON(t *testing.T) {
	env := newTestEnv(t)
	var got startup.Application
	env.applications.applyFn = func(ctx context.Context, app startup.Application) (*model.Startup, error) {
		got = app
		return &model.Startup{ID: 11, Reference: "app-abc123"}, nil
	}

	w := env.serve(jsonRequest(http.MethodPost, "/api/startups/applications",
		`{"display_name":"Acme","stage":"seed","description":"Rockets","domain":"space","earning_status":"revenue","contact_email":"hi@acme.test"}`))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got.DisplayName != "Acme" || got.ContactEmail != "hi@acme.test" {
		t.Errorf("Apply() received %+v", got)
	}
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["reference"] != "app-abc123" || body["status"] != "pending" {
		t.Errorf("body = %v", body)
	}
}

func TestApplicationHandler_Submit_JSON_UnknownField(t *testing.T) {
	env := newTestEnv(t)
	env.applications.applyFn = func(ctx context.Context, app startup.Application) (*model.Startup, error) {
		t.Error("Apply should not be called")
		return nil, nil
	}

	w := env.serve(jsonRequest(http.MethodPost, "/api/startups/applications", `{"display_name":"Acme","is_approved":true}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestApplicationHandler_Submit_Form(t *testing.T) {
	form := map[string]string{
		"display_name":   "Acme",
		"stage":          "seed",
		"description":    "Rockets",
		"domain":         "space",
		"earning_status": "revenue",
		"contact_email":  "hi@acme.test",
	}

	t.Run("受付後はフォームへ遷移", func(t *testing.T) {
		env := newTestEnv(t)
		env.applications.applyFn = func(ctx context.Context, app startup.Application) (*model.Startup, error) {
			return &model.Startup{ID: 12, Reference: "app-xyz789"}, nil
		}

		w := env.serve(formRequest(http.MethodPost, "/api/startups/applications", form))

		if w.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
		}
		if loc := w.Header().Get("Location"); loc != "/apply?ref=app-xyz789" {
			t.Errorf("Location = %q", loc)
		}
	})

	t.Run("検証エラーは入力を保持して再表示", func(t *testing.T) {
		env := newTestEnv(t)
		env.applications.applyFn = func(ctx context.Context, app startup.Application) (*model.Startup, error) {
			return nil, model.NewInvalidApplicationError("description is required")
		}

		w := env.serve(formRequest(http.MethodPost, "/api/startups/applications", form))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		doc := parseHTML(t, w.Body)
		if len(findByClass(doc, "form-error")) != 1 {
			t.Error("form error should be rendered")
		}
		var kept bool
		for _, in := range findElements(doc, "input") {
			if attr(in, "name") == "display_name" && attr(in, "value") == "Acme" {
				kept = true
			}
		}
		if !kept {
			t.Error("display_name input should keep the submitted value")
		}
	})

	t.Run("重複は409", func(t *testing.T) {
		env := newTestEnv(t)
		env.applications.applyFn = func(ctx context.Context, app startup.Application) (*model.Startup, error) {
			return nil, model.NewDuplicateApplicationError()
		}

		w := env.serve(formRequest(http.MethodPost, "/api/startups/applications", form))

		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
		}
	})
}

func TestApplicationHandler_Form_ShowsReference(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"受付番号あり", "/apply?ref=app-abc123", 1},
		{"接頭辞のない値は無視", "/apply?ref=<script>", 0},
		{"受付番号なし", "/apply", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.serve(httptest.NewRequest(http.MethodGet, tt.target, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if got := len(findByClass(parseHTML(t, w.Body), "apply-received")); got != tt.want {
				t.Errorf("apply-received count = %d, want %d", got, tt.want)
			}
		})
	}
}
