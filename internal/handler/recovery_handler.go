package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/summit/internal/middleware"
	"github.com/hitoshi/summit/internal/recovery"
)

// RecoverySubmitter は新しいパスワードの送信を扱う。
type RecoverySubmitter interface {
	Submit(ctx context.Context, sessionID string, state recovery.State, password, confirm string) (recovery.Outcome, error)
}

// RecoveryHandler はパスワード再設定ページのHTTPハンドラー。
type RecoveryHandler struct {
	flow     RecoverySubmitter
	cookies  CookieConfig
	renderer *Renderer
}

// NewRecoveryHandler はRecoveryHandlerを生成する。
func NewRecoveryHandler(flow RecoverySubmitter, cookies CookieConfig, renderer *Renderer) *RecoveryHandler {
	return &RecoveryHandler{
		flow:     flow,
		cookies:  cookies,
		renderer: renderer,
	}
}

// resetPasswordPage は再設定ページのテンプレートデータ。
type resetPasswordPage struct {
	State           recovery.State
	FieldError      string // i18nキー
	FallbackMessage string
}

// Page は再設定ページを表示する。
// GET /reset-password
//
// フラグメントはサーバーに届かないため、Checkingの間はスクリプトがフラグメントを
// forwarded=1 付きのクエリとして転送する。転送後も認識できるパラメータがなければInvalidに確定する。
// Readyでも再設定用セッションがなければ期限切れとして扱う。
func (h *RecoveryHandler) Page(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state := recovery.Derive(recovery.ParamsFromValues(query))
	if state.Kind == recovery.Checking && query.Get("forwarded") == "1" {
		state = state.Settle()
	}
	if state.Kind == recovery.Ready && !middleware.SessionFromContext(r.Context()).IsRecovery() {
		state = recovery.State{Kind: recovery.Invalid, Message: recovery.ExpiredMessage}
	}

	data := h.renderer.page(r, "recovery.title", resetPasswordPage{
		State:           state,
		FallbackMessage: recovery.GenericInvalidMessage,
	})
	if state.Kind == recovery.Checking {
		data.Scripts = []string{"/static/forward.js"}
	}

	w.Header().Set("Cache-Control", "no-store")
	h.renderer.Render(w, http.StatusOK, "reset_password", data)
}

// Submit は新しいパスワードを送信する。
// POST /reset-password
// 入力エラーはフォームを再表示し、更新の成功・失敗はいずれも終端状態として表示する。
func (h *RecoveryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	session := middleware.SessionFromContext(r.Context())
	if !session.IsRecovery() {
		h.render(w, r, http.StatusUnauthorized, resetPasswordPage{
			State: recovery.State{Kind: recovery.Invalid, Message: recovery.ExpiredMessage},
		}, "")
		return
	}

	ready := recovery.State{Kind: recovery.Ready}
	outcome, err := h.flow.Submit(r.Context(), session.ID, ready,
		r.PostFormValue("password"), r.PostFormValue("confirm"))
	if err != nil {
		status, fieldErr := submitErrorStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("unexpected recovery submit error", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
		h.render(w, r, status, resetPasswordPage{State: ready, FieldError: fieldErr}, "")
		return
	}

	// 成功時はセッションが消費され、失敗時は破棄されているためCookieも消す
	h.cookies.clearSession(w)

	refresh := ""
	if outcome.State.Kind == recovery.Success {
		refresh = refreshContent(outcome.RedirectAfter, withLang(outcome.RedirectTo, r.FormValue("lang")))
	}
	h.render(w, r, http.StatusOK, resetPasswordPage{State: outcome.State}, refresh)
}

func (h *RecoveryHandler) render(w http.ResponseWriter, r *http.Request, status int, page resetPasswordPage, refresh string) {
	data := h.renderer.page(r, "recovery.title", page)
	data.Refresh = refresh
	h.renderer.Render(w, status, "reset_password", data)
}

// submitErrorStatus は送信エラーに対応するステータスコードと表示キーを返す。
func submitErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, recovery.ErrWeakPassword):
		return http.StatusBadRequest, "recovery.weak_password"
	case errors.Is(err, recovery.ErrPasswordTooLong):
		return http.StatusBadRequest, "recovery.password_too_long"
	case errors.Is(err, recovery.ErrMismatch):
		return http.StatusBadRequest, "recovery.mismatch"
	case errors.Is(err, recovery.ErrBusy):
		return http.StatusConflict, "recovery.busy"
	default:
		return http.StatusInternalServerError, ""
	}
}
