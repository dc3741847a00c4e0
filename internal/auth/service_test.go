package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/summit/internal/model"
	"github.com/hitoshi/summit/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn        func(ctx context.Context, email string) (*model.User, error)
	createFn             func(ctx context.Context, user *model.User) error
	updatePasswordHashFn func(ctx context.Context, id, hash string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if m.updatePasswordHashFn != nil {
		return m.updatePasswordHashFn(ctx, id, hash)
	}
	return nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

type mockTokenRepo struct {
	createFn  func(ctx context.Context, token *model.RecoveryToken) error
	consumeFn func(ctx context.Context, tokenHash string) (*model.RecoveryToken, error)
}

func (m *mockTokenRepo) Create(ctx context.Context, token *model.RecoveryToken) error {
	if m.createFn != nil {
		return m.createFn(ctx, token)
	}
	return nil
}

func (m *mockTokenRepo) Consume(ctx context.Context, tokenHash string) (*model.RecoveryToken, error) {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, tokenHash)
	}
	return nil, nil
}

type mockNotifier struct {
	email string
	link  string
	calls int
}

func (m *mockNotifier) SendRecoveryLink(_ context.Context, email, link string) error {
	m.email = email
	m.link = link
	m.calls++
	return nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ repository.RecoveryTokenRepository = (*mockTokenRepo)(nil)
var _ Notifier = (*mockNotifier)(nil)

var testConfig = ServiceConfig{
	SessionMaxAge:      86400,
	RecoveryTokenTTL:   time.Hour,
	RecoverySessionTTL: 15 * time.Minute,
	BaseURL:            "https://summit.example.com",
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return h
}

// --- テスト ---

func TestSignIn_ValidCredentials_CreatesStandardSession(t *testing.T) {
	hash := mustHash(t, "secret123")
	var created *model.Session

	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			if email != "admin@example.com" {
				t.Errorf("email = %q, want normalized lowercase", email)
			}
			return &model.User{ID: "u-1", Email: email, PasswordHash: hash}, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(_ context.Context, s *model.Session) error {
			created = s
			return nil
		},
	}

	svc := NewService(userRepo, sessionRepo, nil, nil, testConfig)
	session, err := svc.SignIn(context.Background(), "  Admin@Example.com ", "secret123")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if session == nil || created == nil {
		t.Fatal("expected session to be created")
	}
	if session.Kind != model.SessionKindStandard {
		t.Errorf("Kind = %q, want standard", session.Kind)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}
	if d := time.Until(session.ExpiresAt); d < 23*time.Hour || d > 25*time.Hour {
		t.Errorf("ExpiresAt is %v from now, want ~24h", d)
	}
}

func TestSignIn_WrongPasswordAndUnknownEmailAreIndistinguishable(t *testing.T) {
	hash := mustHash(t, "secret123")
	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			if email == "known@example.com" {
				return &model.User{ID: "u-1", PasswordHash: hash}, nil
			}
			return nil, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(_ context.Context, _ *model.Session) error {
			t.Error("セッションを作成してはいけない")
			return nil
		},
	}
	svc := NewService(userRepo, sessionRepo, nil, nil, testConfig)

	_, errWrong := svc.SignIn(context.Background(), "known@example.com", "wrong-pass")
	_, errUnknown := svc.SignIn(context.Background(), "nobody@example.com", "secret123")

	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", errWrong)
	}
	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v, want ErrInvalidCredentials", errUnknown)
	}
}

func TestSignOut_DeletesSession(t *testing.T) {
	var deleted string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := NewService(nil, sessionRepo, nil, nil, testConfig)

	if err := svc.SignOut(context.Background(), "sess-1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if deleted != "sess-1" {
		t.Errorf("deleted = %q, want sess-1", deleted)
	}
}

func TestSignOut_EmptySessionID(t *testing.T) {
	svc := NewService(nil, &mockSessionRepo{}, nil, nil, testConfig)
	if err := svc.SignOut(context.Background(), ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}

func TestCurrentSession_EmptyTokenSkipsLookup(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.Session, error) {
			t.Error("FindByID should not be called for empty token")
			return nil, nil
		},
	}
	svc := NewService(nil, sessionRepo, nil, nil, testConfig)

	s, err := svc.CurrentSession(context.Background(), "")
	if err != nil || s != nil {
		t.Errorf("CurrentSession(\"\") = (%v, %v), want (nil, nil)", s, err)
	}
}

func TestCurrentSession_RepoError(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.Session, error) {
			return nil, errors.New("db down")
		},
	}
	svc := NewService(nil, sessionRepo, nil, nil, testConfig)

	if _, err := svc.CurrentSession(context.Background(), "sess-1"); err == nil {
		t.Error("expected error")
	}
}

func TestCurrentUser_ExpiredSession(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, nil, nil, testConfig)

	_, err := svc.CurrentUser(context.Background(), "sess-1")
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
}

func TestRegister_HashesPasswordAndNormalizesEmail(t *testing.T) {
	var created *model.User
	userRepo := &mockUserRepo{
		createFn: func(_ context.Context, u *model.User) error {
			created = u
			return nil
		},
	}
	svc := NewService(userRepo, nil, nil, nil, testConfig)

	user, err := svc.Register(context.Background(), "New@Example.com", "abcdef")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if created == nil || user.Email != "new@example.com" {
		t.Fatalf("user = %+v", user)
	}
	if created.PasswordHash == "abcdef" || !VerifyPassword(created.PasswordHash, "abcdef") {
		t.Error("password must be stored as a bcrypt hash")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	userRepo := &mockUserRepo{
		createFn: func(_ context.Context, _ *model.User) error {
			return repository.ErrDuplicate
		},
	}
	svc := NewService(userRepo, nil, nil, nil, testConfig)

	_, err := svc.Register(context.Background(), "a@example.com", "abcdef")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("err = %v, want ErrEmailTaken", err)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	svc := NewService(&mockUserRepo{}, nil, nil, nil, testConfig)

	_, err := svc.Register(context.Background(), "a@example.com", "abc")
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("err = %v, want ErrPasswordTooShort", err)
	}
}

func TestRegister_TooLongPassword(t *testing.T) {
	users := &mockUserRepo{}
	svc := NewService(users, nil, nil, nil, testConfig)

	_, err := svc.Register(context.Background(), "a@example.com", strings.Repeat("a", 73))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("err = %v, want ErrPasswordTooLong", err)
	}
}

func TestHashPassword_Bounds(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"マルチバイト3文字は短すぎる", "ééé", ErrPasswordTooShort},
		{"72バイトは受け付ける", strings.Repeat("a", 72), nil},
		{"73バイトは長すぎる", strings.Repeat("a", 73), ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HashPassword(tt.password)
			if !errors.Is(err, tt.want) {
				t.Errorf("HashPassword() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRequestRecovery_KnownEmail_StoresHashAndSendsLink(t *testing.T) {
	var stored *model.RecoveryToken
	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) {
			return &model.User{ID: "u-1", Email: "a@example.com"}, nil
		},
	}
	tokenRepo := &mockTokenRepo{
		createFn: func(_ context.Context, tok *model.RecoveryToken) error {
			stored = tok
			return nil
		},
	}
	notifier := &mockNotifier{}
	svc := NewService(userRepo, nil, tokenRepo, notifier, testConfig)

	if err := svc.RequestRecovery(context.Background(), "a@example.com"); err != nil {
		t.Fatalf("RequestRecovery() error = %v", err)
	}
	if stored == nil || notifier.calls != 1 {
		t.Fatalf("token stored = %v, notifier calls = %d", stored != nil, notifier.calls)
	}

	prefix := "https://summit.example.com/auth/verify?token="
	if !strings.HasPrefix(notifier.link, prefix) {
		t.Fatalf("link = %q, want prefix %q", notifier.link, prefix)
	}
	raw := strings.TrimPrefix(notifier.link, prefix)
	if stored.TokenHash != HashToken(raw) {
		t.Error("stored hash must match the hash of the raw token in the link")
	}
	if stored.TokenHash == raw {
		t.Error("raw token must not be stored")
	}
	if d := time.Until(stored.ExpiresAt); d > time.Hour || d < 59*time.Minute {
		t.Errorf("token TTL = %v, want ~1h", d)
	}
}

func TestRequestRecovery_UnknownEmailSucceedsSilently(t *testing.T) {
	notifier := &mockNotifier{}
	tokenRepo := &mockTokenRepo{
		createFn: func(_ context.Context, _ *model.RecoveryToken) error {
			t.Error("トークンを作成してはいけない")
			return nil
		},
	}
	svc := NewService(&mockUserRepo{}, nil, tokenRepo, notifier, testConfig)

	if err := svc.RequestRecovery(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("RequestRecovery() error = %v", err)
	}
	if notifier.calls != 0 {
		t.Errorf("notifier calls = %d, want 0", notifier.calls)
	}
}

func TestVerifyRecovery_ValidToken_CreatesRecoverySession(t *testing.T) {
	tokenRepo := &mockTokenRepo{
		consumeFn: func(_ context.Context, hash string) (*model.RecoveryToken, error) {
			if hash != HashToken("raw-token") {
				t.Errorf("Consume called with %q, want hash of raw token", hash)
			}
			return &model.RecoveryToken{UserID: "u-1"}, nil
		},
	}
	var created *model.Session
	sessionRepo := &mockSessionRepo{
		createFn: func(_ context.Context, s *model.Session) error {
			created = s
			return nil
		},
	}
	svc := NewService(nil, sessionRepo, tokenRepo, nil, testConfig)

	session, err := svc.VerifyRecovery(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("VerifyRecovery() error = %v", err)
	}
	if created == nil || !session.IsRecovery() || session.UserID != "u-1" {
		t.Errorf("session = %+v, want recovery session for u-1", session)
	}
	if d := time.Until(session.ExpiresAt); d > 15*time.Minute {
		t.Errorf("recovery session TTL = %v, want <= 15m", d)
	}
}

func TestVerifyRecovery_ExpiredOrUsedToken(t *testing.T) {
	svc := NewService(nil, &mockSessionRepo{}, &mockTokenRepo{}, nil, testConfig)

	_, err := svc.VerifyRecovery(context.Background(), "stale")
	if !errors.Is(err, ErrRecoveryExpired) {
		t.Errorf("err = %v, want ErrRecoveryExpired", err)
	}
}

func TestVerifyRecovery_EmptyToken(t *testing.T) {
	tokenRepo := &mockTokenRepo{
		consumeFn: func(_ context.Context, _ string) (*model.RecoveryToken, error) {
			t.Error("Consume should not be called for empty token")
			return nil, nil
		},
	}
	svc := NewService(nil, nil, tokenRepo, nil, testConfig)

	if _, err := svc.VerifyRecovery(context.Background(), ""); !errors.Is(err, ErrRecoveryExpired) {
		t.Errorf("err = %v, want ErrRecoveryExpired", err)
	}
}

func TestUpdateCredential_UpdatesHashAndRevokesSessions(t *testing.T) {
	var updatedHash string
	var revokedUser string
	userRepo := &mockUserRepo{
		updatePasswordHashFn: func(_ context.Context, id, hash string) error {
			if id != "u-1" {
				t.Errorf("id = %q, want u-1", id)
			}
			updatedHash = hash
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.Session, error) {
			return &model.Session{ID: "rec-1", UserID: "u-1", Kind: model.SessionKindRecovery}, nil
		},
		deleteByUserIDFn: func(_ context.Context, userID string) error {
			revokedUser = userID
			return nil
		},
	}
	svc := NewService(userRepo, sessionRepo, nil, nil, testConfig)

	if err := svc.UpdateCredential(context.Background(), "rec-1", "abcdef"); err != nil {
		t.Fatalf("UpdateCredential() error = %v", err)
	}
	if !VerifyPassword(updatedHash, "abcdef") {
		t.Error("new hash should verify against the new password")
	}
	if revokedUser != "u-1" {
		t.Errorf("revoked sessions of %q, want u-1", revokedUser)
	}
}

func TestUpdateCredential_NoSession(t *testing.T) {
	userRepo := &mockUserRepo{
		updatePasswordHashFn: func(_ context.Context, _, _ string) error {
			t.Error("パスワードを更新してはいけない")
			return nil
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, nil, nil, testConfig)

	err := svc.UpdateCredential(context.Background(), "gone", "abcdef")
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
	var ue *UserError
	if !errors.As(err, &ue) || ue.UserMessage() == "" {
		t.Error("expected a user-facing message")
	}
}

func TestHashToken_IsStableHex(t *testing.T) {
	a := HashToken("abc")
	if a != HashToken("abc") {
		t.Error("HashToken must be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
}

func TestLogNotifier_DefaultLogger(t *testing.T) {
	n := NewLogNotifier(nil)
	if err := n.SendRecoveryLink(context.Background(), "a@example.com", "https://x/y"); err != nil {
		t.Errorf("SendRecoveryLink() error = %v", err)
	}
}
