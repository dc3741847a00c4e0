package handler

import (
	"net/http"

	"github.com/hitoshi/summit/internal/listing"
)

// ListingHandler は承認済みスタートアップ一覧のHTTPハンドラー。
type ListingHandler struct {
	fetcher  listing.ApprovedFetcher
	renderer *Renderer
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(fetcher listing.ApprovedFetcher, renderer *Renderer) *ListingHandler {
	return &ListingHandler{
		fetcher:  fetcher,
		renderer: renderer,
	}
}

// listingResponse は一覧APIのレスポンス。
type listingResponse struct {
	Status   listing.Status    `json:"status"`
	Message  string            `json:"message,omitempty"`
	Startups []startupResponse `json:"startups"`
}

// load はリクエストごとにLoaderを用意して一覧を取得する。
// 1リクエストが1回の画面表示にあたるため、取得は常に1回だけ行われる。
func (h *ListingHandler) load(r *http.Request, lang string) listing.View {
	loader := listing.NewLoader(h.fetcher)
	defer loader.Release()
	return loader.Load(r.Context(), lang)
}

// Page は一覧ページを表示する。
// GET /startups?lang=en
func (h *ListingHandler) Page(w http.ResponseWriter, r *http.Request) {
	lang := h.renderer.Lang(r)
	view := h.load(r, lang)

	status := http.StatusOK
	if view.Status == listing.StatusError {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	h.renderer.Render(w, status, "startups", h.renderer.page(r, "listing.title", view))
}

// List は一覧をJSONで返す。
// GET /api/startups?lang=en
// 取得失敗時もサービスのエラー内容は返さず、汎用メッセージのみを返す。
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	lang := h.renderer.Lang(r)
	view := h.load(r, lang)

	resp := listingResponse{
		Status:   view.Status,
		Startups: make([]startupResponse, 0, len(view.Startups)),
	}
	if key := view.MessageKey(); key != "" {
		resp.Message = h.renderer.T(lang, key)
	}
	for _, s := range view.Startups {
		resp.Startups = append(resp.Startups, toStartupResponse(s))
	}

	status := http.StatusOK
	if view.Status == listing.StatusError {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, resp)
}
