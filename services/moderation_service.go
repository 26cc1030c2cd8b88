package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iete-tsec/ascension-registration/ledger"
	"github.com/iete-tsec/ascension-registration/models"
	"github.com/iete-tsec/ascension-registration/repositories"
	"github.com/iete-tsec/ascension-registration/storage"
)

// ModerationService is the admin review surface: list every registration
// with the fields hidden from the public roster, approve or reject
// payments, and delete registrations.
type ModerationService interface {
	List(ctx context.Context) ([]models.Registration, error)
	SetPaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error
	Delete(ctx context.Context, id int) error
}

type moderationService struct {
	repo     repositories.RegistrationRepository
	ledger   *ledger.Ledger
	uploader storage.FileUploader // nil when proof storage is not configured
	logger   *slog.Logger
}

func NewModerationService(
	repo repositories.RegistrationRepository,
	ldg *ledger.Ledger,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ModerationService {
	return &moderationService{
		repo:     repo,
		ledger:   ldg,
		uploader: uploader,
		logger:   logger,
	}
}

func (s *moderationService) List(ctx context.Context) ([]models.Registration, error) {
	regs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	if s.uploader != nil {
		for i := range regs {
			if regs[i].ScreenshotKey != nil {
				url := s.uploader.GetPublicURL(*regs[i].ScreenshotKey)
				regs[i].ScreenshotURL = &url
			}
		}
	}
	return regs, nil
}

// SetPaymentStatus moves a registration to approved or rejected. Returning
// to pending_verification is not offered; re-review flips directly between
// the two final states.
func (s *moderationService) SetPaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error {
	if status != models.PaymentApproved && status != models.PaymentRejected {
		return ErrInvalidPaymentStatus
	}

	if err := s.repo.UpdatePaymentStatus(ctx, id, status); err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

// Delete removes the registration and its stored proof, then refreshes
// the ledger so the public capacity counter reflects the freed slot
// immediately.
func (s *moderationService) Delete(ctx context.Context, id int) error {
	reg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return fmt.Errorf("failed to load registration: %w", err)
	}

	if err = s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return fmt.Errorf("failed to delete registration: %w", err)
	}

	if reg.ScreenshotKey != nil && s.uploader != nil {
		if delErr := s.uploader.Delete(ctx, *reg.ScreenshotKey); delErr != nil {
			s.logger.Error("failed to delete proof object for removed registration",
				slog.Int("id", id), slog.Any("error", delErr))
		}
	}

	if refreshErr := s.ledger.Refresh(ctx); refreshErr != nil {
		s.logger.Error("failed to refresh ledger after deletion", slog.Any("error", refreshErr))
	}
	return nil
}
