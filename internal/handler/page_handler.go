package handler

import "net/http"

// landingPage は公開ページのテンプレートデータ。
type landingPage struct {
	Error  string
	Notice string
}

// PageHandler は公開ページのHTTPハンドラー。
type PageHandler struct {
	renderer *Renderer
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer *Renderer) *PageHandler {
	return &PageHandler{renderer: renderer}
}

// Landing は公開ページを表示する。
// GET /
func (h *PageHandler) Landing(w http.ResponseWriter, r *http.Request) {
	data := h.renderer.page(r, "site.tagline", landingPage{})
	data.Scripts = []string{"/static/promo.js"}
	h.renderer.Render(w, http.StatusOK, "landing", data)
}
