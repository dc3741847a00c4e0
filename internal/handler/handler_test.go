package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/summit/internal/gate"
	"github.com/hitoshi/summit/internal/i18n"
	"github.com/hitoshi/summit/internal/listing"
	"github.com/hitoshi/summit/internal/middleware"
	"github.com/hitoshi/summit/internal/model"
	"github.com/hitoshi/summit/internal/promo"
	"github.com/hitoshi/summit/internal/recovery"
	"github.com/hitoshi/summit/internal/startup"
)

const testCSRFToken = "test-csrf-token"

// --- モック定義 ---

// mockSessions はセッションIDからセッションを引くSessionFinder兼gate.SessionResolver。
type mockSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newMockSessions() *mockSessions {
	return &mockSessions{sessions: make(map[string]*model.Session)}
}

func (m *mockSessions) add(s *model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *mockSessions) CurrentSession(ctx context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		return nil, nil
	}
	return m.sessions[id], nil
}

type mockAdmins struct {
	admins map[string]bool
}

func (m *mockAdmins) FindByUserID(ctx context.Context, userID string) (*model.AdminRecord, error) {
	if m.admins[userID] {
		return &model.AdminRecord{UserID: userID}, nil
	}
	return nil, nil
}

type mockAuthService struct {
	signInFn          func(ctx context.Context, email, password string) (*model.Session, error)
	signOutFn         func(ctx context.Context, sessionID string) error
	currentUserFn     func(ctx context.Context, sessionID string) (*model.User, error)
	requestRecoveryFn func(ctx context.Context, email string) error
	verifyRecoveryFn  func(ctx context.Context, rawToken string) (*model.Session, error)
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, sessionID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockAuthService) RequestRecovery(ctx context.Context, email string) error {
	if m.requestRecoveryFn != nil {
		return m.requestRecoveryFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) VerifyRecovery(ctx context.Context, rawToken string) (*model.Session, error) {
	if m.verifyRecoveryFn != nil {
		return m.verifyRecoveryFn(ctx, rawToken)
	}
	return nil, nil
}

type mockQuerier struct {
	calls int
	fn    func(ctx context.Context) ([]model.Startup, error)
}

func (m *mockQuerier) ListApproved(ctx context.Context) ([]model.Startup, error) {
	m.calls++
	if m.fn != nil {
		return m.fn(ctx)
	}
	return nil, nil
}

type mockApplications struct {
	applyFn func(ctx context.Context, app startup.Application) (*model.Startup, error)
}

func (m *mockApplications) Apply(ctx context.Context, app startup.Application) (*model.Startup, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, app)
	}
	return nil, nil
}

type mockAdminService struct {
	listPendingFn func(ctx context.Context) ([]model.Startup, error)
	approveFn     func(ctx context.Context, id int64, approvedBy string) (*model.Startup, error)
	countsFn      func(ctx context.Context) (int, int, error)
}

func (m *mockAdminService) ListPending(ctx context.Context) ([]model.Startup, error) {
	if m.listPendingFn != nil {
		return m.listPendingFn(ctx)
	}
	return nil, nil
}

func (m *mockAdminService) Approve(ctx context.Context, id int64, approvedBy string) (*model.Startup, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, id, approvedBy)
	}
	return nil, nil
}

func (m *mockAdminService) Counts(ctx context.Context) (int, int, error) {
	if m.countsFn != nil {
		return m.countsFn(ctx)
	}
	return 0, 0, nil
}

type mockCredentialUpdater struct {
	calls int
	fn    func(ctx context.Context, sessionID, newPassword string) error
}

func (m *mockCredentialUpdater) UpdateCredential(ctx context.Context, sessionID, newPassword string) error {
	m.calls++
	if m.fn != nil {
		return m.fn(ctx, sessionID, newPassword)
	}
	return nil
}

// --- テスト用ルーター ---

type testEnv struct {
	sessions     *mockSessions
	admins       *mockAdmins
	auth         *mockAuthService
	querier      *mockQuerier
	applications *mockApplications
	adminService *mockAdminService
	updater      *mockCredentialUpdater
	promo        *promo.Tracker
	router       http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		sessions:     newMockSessions(),
		admins:       &mockAdmins{admins: map[string]bool{}},
		auth:         &mockAuthService{},
		querier:      &mockQuerier{},
		applications: &mockApplications{},
		adminService: &mockAdminService{},
		updater:      &mockCredentialUpdater{},
		promo:        promo.NewTracker(0),
	}

	env.router = env.newRouter(t)
	return env
}

// newRouter は現在のモック群でルーターを組み立てる。
func (e *testEnv) newRouter(t *testing.T) http.Handler {
	t.Helper()

	bundle, err := i18n.Load("en")
	if err != nil {
		t.Fatalf("failed to load i18n bundle: %v", err)
	}
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(1000, 1000))
	t.Cleanup(rl.Stop)

	router, err := NewRouter(&RouterDeps{
		Bundle:        bundle,
		SessionFinder: e.sessions,
		RateLimiter:   rl,
		Gate:          gate.New(e.sessions, e.admins),
		Admin:         e.adminService,
		AuthService:   e.auth,
		Fetcher:       listing.NewFetcher(e.querier, nil),
		Applications:  e.applications,
		Recovery:      recovery.NewFlow(e.updater),
		Promo:         e.promo,
	})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// signIn はセッションを登録し、そのCookieを付けたリクエストを返す。
func (e *testEnv) signIn(req *http.Request, id, userID string, kind model.SessionKind) *http.Request {
	e.sessions.add(&model.Session{
		ID:        id,
		UserID:    userID,
		Kind:      kind,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: id})
	return req
}

// formRequest はCSRFトークン付きのフォーム送信リクエストを生成する。
func formRequest(method, target string, form map[string]string) *http.Request {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	values.Set("csrf_token", testCSRFToken)
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	return req
}

// jsonRequest はCSRFトークン付きのJSONリクエストを生成する。
func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	return req
}

// --- HTMLアサーション ---

func parseHTML(t *testing.T, r io.Reader) *html.Node {
	t.Helper()
	doc, err := html.Parse(r)
	if err != nil {
		t.Fatalf("failed to parse HTML: %v", err)
	}
	return doc
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// findByClass は指定クラスを持つ要素を文書順にすべて返す。
func findByClass(root *html.Node, class string) []*html.Node {
	var found []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, class) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// findElements は指定タグの要素をすべて返す。
func findElements(root *html.Node, tag string) []*html.Node {
	var found []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
