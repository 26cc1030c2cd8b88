package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iete-tsec/ascension-registration/models"
	"github.com/lib/pq"
)

var (
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrTeamNameConflict     = errors.New("team name conflict")
	ErrCapacityReached      = errors.New("registration capacity reached")
)

// Advisory lock key serializing capacity-checked inserts. Any constant
// shared by all submitters works; the lock is released at commit/rollback.
const capacityLockKey = 874201

type RegistrationRepository interface {
	// Create inserts the registration if and only if fewer than capacity
	// rows exist. Fills ID, RegisteredAt and PaymentStatus on success.
	Create(ctx context.Context, reg *models.Registration, capacity int) error
	GetByID(ctx context.Context, id int) (*models.Registration, error)
	List(ctx context.Context) ([]models.Registration, error)
	ListSummaries(ctx context.Context) ([]models.TeamSummary, error)
	ExistsByTeamName(ctx context.Context, name string) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.Registration, capacity int) error {
	playersJSON, err := json.Marshal(reg.Players)
	if err != nil {
		return fmt.Errorf("failed to marshal players: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Serialize submitters so the count check below cannot race a
	// concurrent insert past capacity.
	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, capacityLockKey); err != nil {
		return fmt.Errorf("failed to acquire capacity lock: %w", err)
	}

	var count int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count registrations: %w", err)
	}
	if count >= capacity {
		return ErrCapacityReached
	}

	query := `
		INSERT INTO registrations (team_name, captain_name, captain_email, captain_phone, players, payment_status, screenshot_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, registered_at`

	err = tx.QueryRowContext(ctx, query,
		reg.TeamName,
		reg.CaptainName,
		reg.CaptainEmail,
		reg.CaptainPhone,
		playersJSON,
		reg.PaymentStatus,
		reg.ScreenshotKey,
	).Scan(&reg.ID, &reg.RegisteredAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "registrations_team_name_key" {
				return ErrTeamNameConflict
			}
		}
		return fmt.Errorf("failed to insert registration: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	query := `
		SELECT id, team_name, captain_name, captain_email, captain_phone, players, payment_status, screenshot_key, registered_at
		FROM registrations
		WHERE id = $1`
	return r.scanRegistration(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresRegistrationRepository) List(ctx context.Context) ([]models.Registration, error) {
	query := `
		SELECT id, team_name, captain_name, captain_email, captain_phone, players, payment_status, screenshot_key, registered_at
		FROM registrations
		ORDER BY registered_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := make([]models.Registration, 0)
	for rows.Next() {
		reg, scanErr := r.scanRegistrationRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		regs = append(regs, *reg)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *postgresRegistrationRepository) ListSummaries(ctx context.Context) ([]models.TeamSummary, error) {
	query := `
		SELECT id, team_name
		FROM registrations
		ORDER BY registered_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]models.TeamSummary, 0)
	for rows.Next() {
		var t models.TeamSummary
		if err = rows.Scan(&t.ID, &t.TeamName); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *postgresRegistrationRepository) ExistsByTeamName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE team_name = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *postgresRegistrationRepository) UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE registrations SET payment_status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *postgresRegistrationRepository) scanRegistration(row rowScanner) (*models.Registration, error) {
	reg, err := r.scanRegistrationRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) scanRegistrationRow(row rowScanner) (*models.Registration, error) {
	var reg models.Registration
	var playersJSON []byte

	err := row.Scan(
		&reg.ID,
		&reg.TeamName,
		&reg.CaptainName,
		&reg.CaptainEmail,
		&reg.CaptainPhone,
		&playersJSON,
		&reg.PaymentStatus,
		&reg.ScreenshotKey,
		&reg.RegisteredAt,
	)
	if err != nil {
		return nil, err
	}

	if err = json.Unmarshal(playersJSON, &reg.Players); err != nil {
		return nil, fmt.Errorf("failed to unmarshal players for registration %d: %w", reg.ID, err)
	}
	return &reg, nil
}
