// Package repository implements all database queries for the RSVP and
// ticketing flow. It uses pgx directly (no ORM) for transparency.
package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/millennialcircuit/launch-rsvp/internal/model"
	"github.com/millennialcircuit/launch-rsvp/internal/ticket"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an RSVP insert hits the unique email
// index, meaning a concurrent submission with the same email won the race.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrConstraint is returned when the store rejects a write for any other
// integrity reason.
var ErrConstraint = errors.New("store rejected write")

// ErrUnavailable is returned for network failures and timed-out store calls.
var ErrUnavailable = errors.New("store unavailable")

const uniqueViolation = "23505"

// ticketSeqLockID is the advisory-lock key serializing ticket-number
// allocation. Arbitrary but must be stable across all service instances.
const ticketSeqLockID = 20250131

// classify maps a pgx error onto the package sentinels so callers can use
// errors.Is without knowing Postgres error codes.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolation && pgErr.ConstraintName == "rsvps_email_key" {
			return ErrDuplicateEmail
		}
		if strings.HasPrefix(pgErr.Code, "23") {
			return fmt.Errorf("%w: %s", ErrConstraint, pgErr.Message)
		}
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// RSVPRepository handles persistence for RSVP records.
type RSVPRepository struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// NewRSVPRepository constructs an RSVPRepository. Every query runs under
// the given per-call timeout.
func NewRSVPRepository(db *pgxpool.Pool, timeout time.Duration) *RSVPRepository {
	return &RSVPRepository{db: db, timeout: timeout}
}

// Create inserts a new RSVP built from exactly the five submission fields
// and returns the stored row. A duplicate email surfaces as
// ErrDuplicateEmail.
func (r *RSVPRepository) Create(ctx context.Context, sub model.Submission) (*model.RSVP, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rsvp := &model.RSVP{
		ID:                      uuid.New().String(),
		FullName:                sub.FullName,
		Email:                   sub.Email,
		Phone:                   sub.Phone,
		InstitutionOrganization: sub.InstitutionOrganization,
		JobTitle:                sub.JobTitle,
		CreatedAt:               time.Now().UTC(),
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO rsvps (id, full_name, email, phone, institution_organization, job_title, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rsvp.ID, rsvp.FullName, rsvp.Email, rsvp.Phone,
		rsvp.InstitutionOrganization, rsvp.JobTitle, rsvp.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert rsvp: %w", classify(err))
	}
	return rsvp, nil
}

// FindByEmail returns the RSVP for the given email or ErrNotFound. Matching
// is case-insensitive, mirroring the unique index.
func (r *RSVPRepository) FindByEmail(ctx context.Context, email string) (*model.RSVP, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rsvp model.RSVP
	err := r.db.QueryRow(ctx,
		`SELECT id, full_name, email, phone, institution_organization, job_title, created_at
		 FROM rsvps WHERE lower(email) = lower($1)`,
		email,
	).Scan(&rsvp.ID, &rsvp.FullName, &rsvp.Email, &rsvp.Phone,
		&rsvp.InstitutionOrganization, &rsvp.JobTitle, &rsvp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find rsvp by email: %w", classify(err))
	}
	return &rsvp, nil
}

// GetByID returns a single RSVP or ErrNotFound.
func (r *RSVPRepository) GetByID(ctx context.Context, id string) (*model.RSVP, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rsvp model.RSVP
	err := r.db.QueryRow(ctx,
		`SELECT id, full_name, email, phone, institution_organization, job_title, created_at
		 FROM rsvps WHERE id = $1`,
		id,
	).Scan(&rsvp.ID, &rsvp.FullName, &rsvp.Email, &rsvp.Phone,
		&rsvp.InstitutionOrganization, &rsvp.JobTitle, &rsvp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get rsvp: %w", classify(err))
	}
	return &rsvp, nil
}

// TicketRepository handles persistence for tickets.
type TicketRepository struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// NewTicketRepository constructs a TicketRepository.
func NewTicketRepository(db *pgxpool.Pool, timeout time.Duration) *TicketRepository {
	return &TicketRepository{db: db, timeout: timeout}
}

// FindByRSVPID returns the ticket owned by the given RSVP or ErrNotFound.
func (r *TicketRepository) FindByRSVPID(ctx context.Context, rsvpID string) (*model.Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var t model.Ticket
	err := r.db.QueryRow(ctx,
		`SELECT id, rsvp_id, ticket_number, qr_code, status, created_at
		 FROM tickets WHERE rsvp_id = $1`,
		rsvpID,
	).Scan(&t.ID, &t.RSVPID, &t.TicketNumber, &t.QRCode, &t.Status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find ticket by rsvp: %w", classify(err))
	}
	return &t, nil
}

// FindByNumber returns the ticket with the given human-readable number or
// ErrNotFound.
func (r *TicketRepository) FindByNumber(ctx context.Context, number string) (*model.Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var t model.Ticket
	err := r.db.QueryRow(ctx,
		`SELECT id, rsvp_id, ticket_number, qr_code, status, created_at
		 FROM tickets WHERE ticket_number = $1`,
		number,
	).Scan(&t.ID, &t.RSVPID, &t.TicketNumber, &t.QRCode, &t.Status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find ticket by number: %w", classify(err))
	}
	return &t, nil
}

// Issue allocates the next sequential ticket number and inserts the ticket
// for the given RSVP, all inside one transaction.
//
// Naive count-then-insert is racy: two concurrent issuances can read the
// same count and produce duplicate ticket numbers. The transaction takes a
// Postgres advisory lock first, so allocation is serialized across all
// service instances; the lock is released automatically on commit or
// rollback.
func (r *TicketRepository) Issue(ctx context.Context, rsvp *model.RSVP) (*model.Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", classify(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ticketSeqLockID); err != nil {
		return nil, fmt.Errorf("acquire ticket number lock: %w", classify(err))
	}

	var count int
	if err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&count); err != nil {
		return nil, fmt.Errorf("count tickets: %w", classify(err))
	}

	number := ticket.FormatNumber(count + 1)
	payload := ticket.EncodePayload(ticket.Payload{
		Ticket: number,
		Email:  rsvp.Email,
		Name:   rsvp.FullName,
	})

	t := &model.Ticket{
		ID:           uuid.New().String(),
		RSVPID:       rsvp.ID,
		TicketNumber: number,
		QRCode:       payload,
		Status:       model.StatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO tickets (id, rsvp_id, ticket_number, qr_code, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.RSVPID, t.TicketNumber, t.QRCode, t.Status, t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ticket: %w", classify(err))
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", classify(err))
	}
	return t, nil
}
