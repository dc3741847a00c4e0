// Package startup はスタートアップの応募受付と管理者による承認を提供する。
package startup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/hitoshi/summit/internal/model"
	"github.com/hitoshi/summit/internal/repository"
	"github.com/hitoshi/summit/internal/security"
)

const (
	// ReferencePrefix は応募受付番号の接頭辞。
	ReferencePrefix = "app-"
	// referenceAlphabet は受付番号のランダム部分に使う文字。
	referenceAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// referenceLength は受付番号のランダム部分の長さ。
	referenceLength = 10

	maxDisplayNameLen = 100
	maxDescriptionLen = 1000
	maxDomainLen      = 60
)

// Application は応募フォームの入力。
type Application struct {
	DisplayName   string `json:"display_name"`
	Stage         string `json:"stage"`
	Description   string `json:"description"`
	Domain        string `json:"domain"`
	EarningStatus string `json:"earning_status"`
	Website       string `json:"website"`
	ContactEmail  string `json:"contact_email"`
}

// Recorder は応募結果を記録する。
type Recorder interface {
	RecordApplication(result string)
}

// Service は応募と承認のビジネスロジックを提供する。
type Service struct {
	repo      repository.StartupRepository
	sanitizer security.TextSanitizer
	recorder  Recorder
	newRef    func() (string, error)
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(repo repository.StartupRepository, sanitizer security.TextSanitizer, recorder Recorder) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		recorder:  recorder,
		newRef:    GenerateReference,
	}
}

// GenerateReference は "app-" で始まる受付番号を生成する。
func GenerateReference() (string, error) {
	id, err := nanoid.Generate(referenceAlphabet, referenceLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate reference: %w", err)
	}
	return ReferencePrefix + id, nil
}

// Apply は応募を検証し、未承認状態で保存する。
// テキストはHTMLを除去してから検証・保存する。
func (s *Service) Apply(ctx context.Context, app Application) (*model.Startup, error) {
	st, apiErr := s.validate(app)
	if apiErr != nil {
		s.record("invalid")
		return nil, apiErr
	}

	ref, err := s.newRef()
	if err != nil {
		return nil, err
	}
	st.Reference = ref

	if err := s.repo.Create(ctx, st); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.record("duplicate")
			return nil, model.NewDuplicateApplicationError()
		}
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	s.record("created")
	slog.Info("startup application received",
		slog.Int64("startup_id", st.ID),
		slog.String("reference", st.Reference),
	)
	return st, nil
}

// ListPending は未承認の応募を古い順に返す。
func (s *Service) ListPending(ctx context.Context) ([]model.Startup, error) {
	startups, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending applications: %w", err)
	}
	return startups, nil
}

// Approve は応募を承認する。存在しない場合はSTARTUP_NOT_FOUNDを返す。
func (s *Service) Approve(ctx context.Context, id int64, approvedBy string) (*model.Startup, error) {
	st, err := s.repo.Approve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to approve startup: %w", err)
	}
	if st == nil {
		return nil, model.NewStartupNotFoundError(id)
	}

	slog.Info("startup approved",
		slog.Int64("startup_id", id),
		slog.String("approved_by", approvedBy),
	)
	return st, nil
}

// Counts は承認済み件数と未承認件数を返す。
func (s *Service) Counts(ctx context.Context) (approved, pending int, err error) {
	return s.repo.CountByApproval(ctx)
}

// validate は入力をサニタイズして検証する。
func (s *Service) validate(app Application) (*model.Startup, *model.APIError) {
	st := &model.Startup{
		DisplayName:   s.sanitizer.Sanitize(app.DisplayName),
		Stage:         strings.ToLower(strings.TrimSpace(app.Stage)),
		Description:   s.sanitizer.Sanitize(app.Description),
		Domain:        s.sanitizer.Sanitize(app.Domain),
		EarningStatus: strings.ToLower(strings.TrimSpace(app.EarningStatus)),
	}

	switch {
	case st.DisplayName == "":
		return nil, model.NewInvalidApplicationError("display_name is required")
	case utf8.RuneCountInString(st.DisplayName) > maxDisplayNameLen:
		return nil, model.NewInvalidApplicationError(fmt.Sprintf("display_name must be at most %d characters", maxDisplayNameLen))
	case !slices.Contains(model.StartupStages, st.Stage):
		return nil, model.NewInvalidApplicationError(fmt.Sprintf("stage must be one of %s", strings.Join(model.StartupStages, ", ")))
	case !slices.Contains(model.EarningStatuses, st.EarningStatus):
		return nil, model.NewInvalidApplicationError(fmt.Sprintf("earning_status must be one of %s", strings.Join(model.EarningStatuses, ", ")))
	case utf8.RuneCountInString(st.Description) > maxDescriptionLen:
		return nil, model.NewInvalidApplicationError(fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	case utf8.RuneCountInString(st.Domain) > maxDomainLen:
		return nil, model.NewInvalidApplicationError(fmt.Sprintf("domain must be at most %d characters", maxDomainLen))
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(app.ContactEmail))
	if err != nil {
		return nil, model.NewInvalidApplicationError("contact_email is not a valid email address")
	}
	st.ContactEmail = strings.ToLower(addr.Address)

	if strings.TrimSpace(app.Website) != "" {
		website, err := security.NormalizeWebsiteURL(app.Website)
		if err != nil {
			return nil, model.NewInvalidApplicationError("website must be a public http or https URL")
		}
		st.Website = website
	}

	return st, nil
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordApplication(result)
	}
}
