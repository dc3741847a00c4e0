package handler

import (
	"net/http"

	"github.com/google/uuid"
)

// VisitorCookieName は訪問者IDを保持するCookieの名前。
const VisitorCookieName = "visitor_id"

// visitorCookieMaxAge は訪問者Cookieの有効期間（秒）。
const visitorCookieMaxAge = 365 * 24 * 60 * 60

// PromoTracker はプロモーションの表示済みフラグを管理する。
type PromoTracker interface {
	ShouldShow(visitorID string) bool
}

// PromoHandler はプロモーション表示判定のHTTPハンドラー。
type PromoHandler struct {
	tracker  PromoTracker
	cookies  CookieConfig
	renderer *Renderer
}

// NewPromoHandler はPromoHandlerを生成する。
func NewPromoHandler(tracker PromoTracker, cookies CookieConfig, renderer *Renderer) *PromoHandler {
	return &PromoHandler{
		tracker:  tracker,
		cookies:  cookies,
		renderer: renderer,
	}
}

// Show はプロモーションを表示すべきかを返し、表示済みとして記録する。
// GET /api/promo
// 訪問者Cookieがない場合はUUIDを発行する。
func (h *PromoHandler) Show(w http.ResponseWriter, r *http.Request) {
	visitorID := ""
	if cookie, err := r.Cookie(VisitorCookieName); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			visitorID = cookie.Value
		}
	}
	if visitorID == "" {
		visitorID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     VisitorCookieName,
			Value:    visitorID,
			Path:     "/",
			Domain:   h.cookies.Domain,
			MaxAge:   visitorCookieMaxAge,
			HttpOnly: true,
			Secure:   h.cookies.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	show := h.tracker.ShouldShow(visitorID)

	resp := map[string]any{"show": show}
	if show {
		resp["headline"] = h.renderer.T(h.renderer.Lang(r), "promo.headline")
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
