package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/summit/internal/middleware"
	"github.com/hitoshi/summit/internal/model"
)

// AdminService は管理画面が必要とするサービスインターフェース。
type AdminService interface {
	ListPending(ctx context.Context) ([]model.Startup, error)
	Approve(ctx context.Context, id int64, approvedBy string) (*model.Startup, error)
	Counts(ctx context.Context) (approved, pending int, err error)
}

// AdminHandler は管理画面のHTTPハンドラー。
// ルーターでは認可ゲートの内側にのみ登録する。
type AdminHandler struct {
	service  AdminService
	renderer *Renderer
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminService, renderer *Renderer) *AdminHandler {
	return &AdminHandler{
		service:  service,
		renderer: renderer,
	}
}

// adminPage は管理画面のテンプレートデータ。
type adminPage struct {
	Approved     int
	PendingCount int
	Pending      []model.Startup
}

// Dashboard は管理画面を表示する。
// GET /admin
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.ListPending(r.Context())
	if err != nil {
		slog.Error("failed to list pending startups", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	approved, pendingCount, err := h.service.Counts(r.Context())
	if err != nil {
		slog.Error("failed to count startups", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.renderer.Render(w, http.StatusOK, "admin", h.renderer.page(r, "admin.title", adminPage{
		Approved:     approved,
		PendingCount: pendingCount,
		Pending:      pending,
	}))
}

// ListPending は未承認の応募一覧をJSONで返す。
// GET /admin/api/startups/pending
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.ListPending(r.Context())
	if err != nil {
		slog.Error("failed to list pending startups", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	resp := make([]pendingStartupResponse, 0, len(pending))
	for _, s := range pending {
		resp = append(resp, toPendingStartupResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"startups": resp})
}

// Approve は応募を承認する。
// POST /admin/api/startups/{id}/approve
// JSONの場合は承認後の応募を返し、フォームの場合は管理画面へ303で遷移する。
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, model.NewInvalidRequestError("invalid startup id"))
		return
	}

	approvedBy, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	approved, err := h.service.Approve(r.Context(), id, approvedBy)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	slog.Info("startup approved",
		slog.Int64("startup_id", approved.ID),
		slog.String("approved_by", approvedBy),
	)

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, toPendingStartupResponse(*approved))
		return
	}
	seeOther(w, "/admin")
}
