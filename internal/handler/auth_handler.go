// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/summit/internal/auth"
	"github.com/hitoshi/summit/internal/middleware"
	"github.com/hitoshi/summit/internal/model"
	"github.com/hitoshi/summit/internal/recovery"
)

// otpExpiredDescription は再設定リンクの検証に失敗したときにフラグメントへ載せる説明文。
const otpExpiredDescription = "Email link is invalid or has expired"

// AuthService は認証ハンドラーが必要とするサービスインターフェース。
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	CurrentUser(ctx context.Context, sessionID string) (*model.User, error)
	RequestRecovery(ctx context.Context, email string) error
	VerifyRecovery(ctx context.Context, rawToken string) (*model.Session, error)
}

// AuthHandler はサインイン・サインアウト・再設定リンク関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthService
	cookies  CookieConfig
	renderer *Renderer
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthService, cookies CookieConfig, renderer *Renderer) *AuthHandler {
	return &AuthHandler{
		service:  service,
		cookies:  cookies,
		renderer: renderer,
	}
}

// credentialsRequest はサインインリクエストのボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// recoverRequest は再設定リンク要求のボディ。
type recoverRequest struct {
	Email string `json:"email"`
}

// Login はメールアドレスとパスワードでサインインする。
// POST /auth/login
// JSONの場合は200でユーザーIDを返し、フォームの場合は公開ページへ303で遷移する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if isJSONBody(r) {
		if err := decodeJSON(r.Body, &req); err != nil {
			middleware.WriteError(w, model.NewInvalidRequestError("malformed JSON body"))
			return
		}
	} else {
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	}

	session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			slog.Error("failed to sign in", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
		apiErr := model.NewInvalidCredentialsError()
		if wantsJSON(r) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
			return
		}
		h.renderer.Render(w, http.StatusUnauthorized, "landing",
			h.renderer.page(r, "site.tagline", landingPage{Error: apiErr.Message}))
		return
	}

	h.cookies.setSession(w, session)

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":    session.UserID,
			"expires_at": session.ExpiresAt,
		})
		return
	}
	seeOther(w, withLang("/", r.FormValue("lang")))
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.SessionIDFromRequest(r); sessionID != "" {
		if err := h.service.SignOut(r.Context(), sessionID); err != nil {
			// 失敗してもCookieはクリアする
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		}
	}

	h.cookies.clearSession(w)

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	seeOther(w, withLang("/", r.FormValue("lang")))
}

// Me は現在のサインインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromRequest(r)
	if sessionID == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	user, err := h.service.CurrentUser(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
			return
		}
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	session := middleware.SessionFromContext(r.Context())
	kind := model.SessionKindStandard
	if session != nil {
		kind = session.Kind
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":           user.ID,
		"email":        user.Email,
		"session_kind": kind,
	})
}

// Recover はパスワード再設定リンクを要求する。
// POST /auth/recover
// アカウントの有無にかかわらず同じ応答を返す。
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if isJSONBody(r) {
		if err := decodeJSON(r.Body, &req); err != nil {
			middleware.WriteError(w, model.NewInvalidRequestError("malformed JSON body"))
			return
		}
	} else {
		req.Email = r.PostFormValue("email")
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		middleware.WriteError(w, model.NewInvalidRequestError("email is required"))
		return
	}

	if err := h.service.RequestRecovery(r.Context(), email); err != nil {
		slog.Error("failed to request recovery", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	lang := h.renderer.Lang(r)
	notice := h.renderer.T(lang, "auth.recovery_sent")
	if wantsJSON(r) {
		writeJSON(w, http.StatusAccepted, map[string]string{"message": notice})
		return
	}
	h.renderer.Render(w, http.StatusOK, "landing",
		h.renderer.page(r, "site.tagline", landingPage{Notice: notice}))
}

// Verify は再設定リンクのトークンを消費し、再設定ページへ303で遷移する。
// GET /auth/verify?token=xxx
// 成功時は #type=recovery、失敗時は otp_expired のエラーをフラグメントに載せる。
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	target := withLang("/reset-password", r.URL.Query().Get("lang"))
	w.Header().Set("Cache-Control", "no-store")

	session, err := h.service.VerifyRecovery(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if !errors.Is(err, auth.ErrRecoveryExpired) {
			slog.Error("failed to verify recovery token", slog.String("error", err.Error()))
		}
		params := recovery.Params{ErrorCode: "otp_expired", ErrorDescription: otpExpiredDescription}
		seeOther(w, target+"#"+params.Values().Encode())
		return
	}

	h.cookies.setSession(w, session)
	seeOther(w, target+"#"+recovery.Params{Type: "recovery"}.Values().Encode())
}
