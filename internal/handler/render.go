package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/summit/internal/i18n"
	"github.com/hitoshi/summit/internal/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*.js
var staticFS embed.FS

// pageNames はテンプレートとして読み込むページ名の一覧。
var pageNames = []string{"landing", "startups", "apply", "reset_password", "admin"}

// pageData は全ページ共通のテンプレートデータ。
type pageData struct {
	Lang      string
	Languages []string
	TitleKey  string
	CSRFToken string
	SignedIn  bool
	Scripts   []string
	Refresh   string // meta refreshのcontent値（例: "3;url=/"）
	Data      any
}

// Renderer はページテンプレートを言語ごとのラベルで描画する。
type Renderer struct {
	bundle *i18n.Bundle
	pages  map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートを読み込んでRendererを生成する。
func NewRenderer(bundle *i18n.Bundle) (*Renderer, error) {
	funcs := template.FuncMap{"t": bundle.T}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Renderer{bundle: bundle, pages: pages}, nil
}

// Lang はリクエストの言語コードを返す。lang パラメータ（クエリまたはフォーム）を正規化する。
func (rd *Renderer) Lang(r *http.Request) string {
	return rd.bundle.Normalize(r.FormValue("lang"))
}

// T は言語langでキーを解決する。
func (rd *Renderer) T(lang, key string) string {
	return rd.bundle.T(lang, key)
}

// page はリクエストから共通のpageDataを組み立てる。
func (rd *Renderer) page(r *http.Request, titleKey string, data any) pageData {
	return pageData{
		Lang:      rd.Lang(r),
		Languages: rd.bundle.Languages(),
		TitleKey:  titleKey,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		SignedIn:  middleware.SessionFromContext(r.Context()) != nil,
		Data:      data,
	}
}

// Render はページをバッファに描画してからステータスコードとともに書き込む。
// 描画に失敗した場合は途中までのHTMLを送らずに500を返す。
func (rd *Renderer) Render(w http.ResponseWriter, status int, name string, data pageData) {
	tmpl, ok := rd.pages[name]
	if !ok {
		slog.Error("unknown page template", slog.String("page", name))
		middleware.WriteInternalServerError(w)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// refreshContent はmeta refreshのcontent値を組み立てる。
func refreshContent(after time.Duration, to string) string {
	return fmt.Sprintf("%d;url=%s", int(after.Seconds()), to)
}

// staticHandler は埋め込みの静的ファイルを /static/ 配下で配信するハンドラーを返す。
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// isJSONBody はリクエストボディがJSONかどうかを判定する。
func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// wantsJSON はJSONで応答すべきリクエストかどうかを判定する。
// JSONボディの送信、またはAcceptにapplication/jsonを含む場合にtrueを返す。
func wantsJSON(r *http.Request) bool {
	return isJSONBody(r) || strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonEncode(w, body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// seeOther は本文なしの303レスポンスを書き込む。フラグメント付きの遷移先もそのまま送る。
func seeOther(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusSeeOther)
}

// withLang は遷移先パスに言語パラメータを付与する。
func withLang(path, lang string) string {
	if lang == "" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "lang=" + lang
}
