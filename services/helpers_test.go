package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/iete-tsec/ascension-registration/ledger"
	"github.com/iete-tsec/ascension-registration/models"
	"github.com/iete-tsec/ascension-registration/repositories"
	"github.com/iete-tsec/ascension-registration/storage"
)

// fakeRegistrationRepo is an in-memory stand-in for the Postgres
// repository, including the capacity and unique-name constraints the
// real one enforces.
type fakeRegistrationRepo struct {
	regs   []models.Registration
	nextID int

	createCalls int
	failCreate  error
	failList    error
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{nextID: 1}
}

func (f *fakeRegistrationRepo) Create(ctx context.Context, reg *models.Registration, capacity int) error {
	f.createCalls++
	if f.failCreate != nil {
		return f.failCreate
	}
	if len(f.regs) >= capacity {
		return repositories.ErrCapacityReached
	}
	for _, existing := range f.regs {
		if existing.TeamName == reg.TeamName {
			return repositories.ErrTeamNameConflict
		}
	}
	reg.ID = f.nextID
	f.nextID++
	reg.RegisteredAt = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(reg.ID) * time.Minute)
	f.regs = append(f.regs, *reg)
	return nil
}

func (f *fakeRegistrationRepo) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	for i := range f.regs {
		if f.regs[i].ID == id {
			reg := f.regs[i]
			return &reg, nil
		}
	}
	return nil, repositories.ErrRegistrationNotFound
}

func (f *fakeRegistrationRepo) List(ctx context.Context) ([]models.Registration, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	out := make([]models.Registration, len(f.regs))
	copy(out, f.regs)
	return out, nil
}

func (f *fakeRegistrationRepo) ListSummaries(ctx context.Context) ([]models.TeamSummary, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	out := make([]models.TeamSummary, 0, len(f.regs))
	for _, reg := range f.regs {
		out = append(out, models.TeamSummary{ID: reg.ID, TeamName: reg.TeamName})
	}
	return out, nil
}

func (f *fakeRegistrationRepo) ExistsByTeamName(ctx context.Context, name string) (bool, error) {
	for _, reg := range f.regs {
		if reg.TeamName == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRegistrationRepo) UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error {
	for i := range f.regs {
		if f.regs[i].ID == id {
			f.regs[i].PaymentStatus = status
			return nil
		}
	}
	return repositories.ErrRegistrationNotFound
}

func (f *fakeRegistrationRepo) Delete(ctx context.Context, id int) error {
	for i := range f.regs {
		if f.regs[i].ID == id {
			f.regs = append(f.regs[:i], f.regs[i+1:]...)
			return nil
		}
	}
	return repositories.ErrRegistrationNotFound
}

func (f *fakeRegistrationRepo) Count(ctx context.Context) (int, error) {
	return len(f.regs), nil
}

type fakeFileUploader struct {
	uploads map[string][]byte
	deleted []string
	failPut error
}

func newFakeFileUploader() *fakeFileUploader {
	return &fakeFileUploader{uploads: make(map[string][]byte)}
}

func (f *fakeFileUploader) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.uploads[key] = data
	return &storage.UploadResult{Key: key, Location: f.GetPublicURL(key)}, nil
}

func (f *fakeFileUploader) Delete(ctx context.Context, key string) error {
	if _, ok := f.uploads[key]; !ok {
		return errors.New("object not found: " + key)
	}
	delete(f.uploads, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeFileUploader) GetPublicURL(key string) string {
	return "https://proofs.example.com/" + strings.TrimPrefix(key, "/")
}

type fakeMailer struct {
	sent []string // "email|team"
	fail error
}

func (f *fakeMailer) SendRegistrationConfirmation(toEmail, teamName string) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, toEmail+"|"+teamName)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(repo *fakeRegistrationRepo, capacity int) *ledger.Ledger {
	return ledger.New(repo, capacity, testLogger())
}

func validInput() SubmitInput {
	return SubmitInput{
		TeamName:     "Phoenix Five",
		CaptainName:  "Arjun Mehta",
		CaptainEmail: "arjun@example.com",
		CaptainPhone: "9876543210",
		Players: []PlayerInput{
			{Name: "Player Two", ValorantID: "Duelist#1234"},
			{Name: "Player Three", ValorantID: "Sentinel#5678"},
			{Name: "Player Four", ValorantID: "Smokes#9012"},
			{Name: "Player Five", ValorantID: "Flex#3456"},
		},
	}
}
