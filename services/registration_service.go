package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/iete-tsec/ascension-registration/ledger"
	"github.com/iete-tsec/ascension-registration/models"
	"github.com/iete-tsec/ascension-registration/repositories"
	"github.com/iete-tsec/ascension-registration/storage"
)

// TeamSize is the number of additional players registered with the
// captain (teammates 2-5).
const TeamSize = 4

const minPhoneLength = 7

var emailPattern = regexp.MustCompile(`^\S+@\S+$`)

type PlayerInput struct {
	Name       string `json:"name"`
	ValorantID string `json:"valorant_id"`
}

type SubmitInput struct {
	TeamName     string        `json:"team_name"`
	CaptainName  string        `json:"captain_name"`
	CaptainEmail string        `json:"captain_email"`
	CaptainPhone string        `json:"captain_phone"`
	Players      []PlayerInput `json:"players"`
}

// ProofUpload is the payment-proof screenshot attached to a submission.
type ProofUpload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

// Mailer sends the post-registration confirmation. Implemented by
// EmailService; nil disables sending.
type Mailer interface {
	SendRegistrationConfirmation(toEmail, teamName string) error
}

type RegistrationService interface {
	Submit(ctx context.Context, input SubmitInput, proof *ProofUpload) (*models.Registration, error)
	// ProofRequired reports whether submissions must carry a proof upload.
	ProofRequired() bool
}

type registrationService struct {
	repo     repositories.RegistrationRepository
	ledger   *ledger.Ledger
	uploader storage.FileUploader // nil when proof storage is not configured
	mailer   Mailer               // nil when SMTP is not configured
	deadline time.Time            // zero means no deadline
	logger   *slog.Logger
}

func NewRegistrationService(
	repo repositories.RegistrationRepository,
	ldg *ledger.Ledger,
	uploader storage.FileUploader,
	mailer Mailer,
	deadline time.Time,
	logger *slog.Logger,
) RegistrationService {
	return &registrationService{
		repo:     repo,
		ledger:   ldg,
		uploader: uploader,
		mailer:   mailer,
		deadline: deadline,
		logger:   logger,
	}
}

func (s *registrationService) ProofRequired() bool {
	return s.uploader != nil
}

// Submit validates and persists a new team registration.
//
// The ledger's capacity gate and the duplicate pre-check run first so the
// common failure paths produce friendly errors without touching storage;
// the database constraints (unique team name, capacity-checked insert)
// remain authoritative under concurrent submissions.
func (s *registrationService) Submit(ctx context.Context, input SubmitInput, proof *ProofUpload) (*models.Registration, error) {
	input = trimInput(input)

	if err := validateSubmitInput(input); err != nil {
		return nil, err
	}

	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return nil, ErrRegistrationClosed
	}
	if s.ledger.IsClosed() {
		return nil, ErrRegistrationClosed
	}
	if s.ProofRequired() && proof == nil {
		return nil, ErrProofRequired
	}

	exists, err := s.repo.ExistsByTeamName(ctx, input.TeamName)
	if err != nil {
		return nil, fmt.Errorf("failed to check team name: %w", err)
	}
	if exists {
		return nil, ErrTeamNameTaken
	}

	reg := &models.Registration{
		TeamName:      input.TeamName,
		CaptainName:   input.CaptainName,
		CaptainEmail:  input.CaptainEmail,
		CaptainPhone:  input.CaptainPhone,
		Players:       make([]models.Player, 0, TeamSize),
		PaymentStatus: models.PaymentPendingVerification,
	}
	for _, p := range input.Players {
		reg.Players = append(reg.Players, models.Player{Name: p.Name, ValorantID: p.ValorantID})
	}

	var proofKey string
	if proof != nil && s.uploader != nil {
		proofKey, err = s.uploadProof(ctx, proof)
		if err != nil {
			return nil, fmt.Errorf("failed to upload payment proof: %w", err)
		}
		reg.ScreenshotKey = &proofKey
	}

	if err = s.repo.Create(ctx, reg, s.ledger.Capacity()); err != nil {
		if proofKey != "" {
			if delErr := s.uploader.Delete(ctx, proofKey); delErr != nil {
				s.logger.Error("failed to delete orphaned proof object",
					slog.String("key", proofKey), slog.Any("error", delErr))
			}
		}
		switch {
		case errors.Is(err, repositories.ErrCapacityReached):
			return nil, ErrRegistrationClosed
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameTaken
		}
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}

	if reg.ScreenshotKey != nil && s.uploader != nil {
		url := s.uploader.GetPublicURL(*reg.ScreenshotKey)
		reg.ScreenshotURL = &url
	}

	s.ledger.RecordLocally(models.TeamSummary{ID: reg.ID, TeamName: reg.TeamName})

	if s.mailer != nil {
		if mailErr := s.mailer.SendRegistrationConfirmation(reg.CaptainEmail, reg.TeamName); mailErr != nil {
			s.logger.Error("failed to send confirmation email",
				slog.String("team", reg.TeamName), slog.Any("error", mailErr))
		}
	}

	return reg, nil
}

func (s *registrationService) uploadProof(ctx context.Context, proof *ProofUpload) (string, error) {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate proof key: %w", err)
	}

	ext := strings.ToLower(path.Ext(proof.Filename))
	if ext == "" {
		ext = ".png"
	}
	key := fmt.Sprintf("registrations/proofs/%s%s", hex.EncodeToString(suffix), ext)

	contentType := proof.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	result, err := s.uploader.Upload(ctx, key, contentType, proof.Reader)
	if err != nil {
		return "", err
	}
	return result.Key, nil
}

func trimInput(input SubmitInput) SubmitInput {
	input.TeamName = strings.TrimSpace(input.TeamName)
	input.CaptainName = strings.TrimSpace(input.CaptainName)
	input.CaptainEmail = strings.TrimSpace(input.CaptainEmail)
	input.CaptainPhone = strings.TrimSpace(input.CaptainPhone)
	for i := range input.Players {
		input.Players[i].Name = strings.TrimSpace(input.Players[i].Name)
		input.Players[i].ValorantID = strings.TrimSpace(input.Players[i].ValorantID)
	}
	return input
}

func validateSubmitInput(input SubmitInput) error {
	fields := make(map[string]string)

	if input.TeamName == "" {
		fields["team_name"] = "team name is required"
	}
	if input.CaptainName == "" {
		fields["captain_name"] = "captain's name is required"
	}
	switch {
	case input.CaptainEmail == "":
		fields["captain_email"] = "captain's email is required"
	case !emailPattern.MatchString(input.CaptainEmail):
		fields["captain_email"] = "invalid email address"
	}
	switch {
	case input.CaptainPhone == "":
		fields["captain_phone"] = "captain's phone is required"
	case len(input.CaptainPhone) < minPhoneLength:
		fields["captain_phone"] = "must be a valid phone number"
	}

	if len(input.Players) != TeamSize {
		fields["players"] = fmt.Sprintf("exactly %d additional players are required", TeamSize)
	} else {
		for i, p := range input.Players {
			if p.Name == "" {
				fields[fmt.Sprintf("players.%d.name", i)] = fmt.Sprintf("player %d name is required", i+2)
			}
			if p.ValorantID == "" {
				fields[fmt.Sprintf("players.%d.valorant_id", i)] = fmt.Sprintf("player %d valorant id is required", i+2)
			}
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
