package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/summit/internal/middleware"
	"github.com/hitoshi/summit/internal/model"
	"github.com/hitoshi/summit/internal/startup"
)

// ApplicationService は応募フォームが必要とするサービスインターフェース。
type ApplicationService interface {
	Apply(ctx context.Context, app startup.Application) (*model.Startup, error)
}

// ApplicationHandler はスタートアップ応募のHTTPハンドラー。
type ApplicationHandler struct {
	service  ApplicationService
	renderer *Renderer
}

// NewApplicationHandler はApplicationHandlerを生成する。
func NewApplicationHandler(service ApplicationService, renderer *Renderer) *ApplicationHandler {
	return &ApplicationHandler{
		service:  service,
		renderer: renderer,
	}
}

// applyPage は応募フォームのテンプレートデータ。
type applyPage struct {
	Form            startup.Application
	Stages          []string
	EarningStatuses []string
	Reference       string
	Error           string
}

func newApplyPage(form startup.Application) applyPage {
	return applyPage{
		Form:            form,
		Stages:          model.StartupStages,
		EarningStatuses: model.EarningStatuses,
	}
}

// Form は応募フォームを表示する。
// GET /apply?ref=app-xxxx
func (h *ApplicationHandler) Form(w http.ResponseWriter, r *http.Request) {
	page := newApplyPage(startup.Application{})
	if ref := r.URL.Query().Get("ref"); strings.HasPrefix(ref, startup.ReferencePrefix) {
		page.Reference = ref
	}
	h.renderer.Render(w, http.StatusOK, "apply", h.renderer.page(r, "apply.title", page))
}

// Submit は応募を受け付ける。
// POST /api/startups/applications
// JSONの場合は201で受付番号を返し、フォームの場合は受付番号付きのフォームへ303で遷移する。
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var app startup.Application
	isJSON := wantsJSON(r)
	if isJSONBody(r) {
		if err := decodeJSON(r.Body, &app); err != nil {
			middleware.WriteError(w, model.NewInvalidRequestError("malformed JSON body"))
			return
		}
	} else {
		app = startup.Application{
			DisplayName:   r.PostFormValue("display_name"),
			Stage:         r.PostFormValue("stage"),
			Description:   r.PostFormValue("description"),
			Domain:        r.PostFormValue("domain"),
			EarningStatus: r.PostFormValue("earning_status"),
			Website:       r.PostFormValue("website"),
			ContactEmail:  r.PostFormValue("contact_email"),
		}
	}

	created, err := h.service.Apply(r.Context(), app)
	if err != nil {
		var apiErr *model.APIError
		if isJSON || !errors.As(err, &apiErr) {
			middleware.WriteError(w, err)
			return
		}
		page := newApplyPage(app)
		page.Error = apiErr.Message
		h.renderer.Render(w, middleware.StatusForCode(apiErr.Code), "apply",
			h.renderer.page(r, "apply.title", page))
		return
	}

	slog.Info("startup application received",
		slog.Int64("startup_id", created.ID),
		slog.String("reference", created.Reference),
	)

	if isJSON {
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":        created.ID,
			"reference": created.Reference,
			"status":    "pending",
		})
		return
	}
	seeOther(w, withLang("/apply?ref="+created.Reference, r.FormValue("lang")))
}
