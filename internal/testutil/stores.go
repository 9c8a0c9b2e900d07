// Package testutil provides in-memory store fakes that mimic the
// repository contracts, including the unique-email rule.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/millennialcircuit/launch-rsvp/internal/model"
	"github.com/millennialcircuit/launch-rsvp/internal/repository"
	"github.com/millennialcircuit/launch-rsvp/internal/ticket"
)

// FakeRSVPStore is an in-memory RSVPStore.
type FakeRSVPStore struct {
	mu sync.Mutex

	Rows []*model.RSVP

	// CreateErr, when set, fails every Create call with that error.
	CreateErr error

	// MissNextFind makes the next FindByEmail report ErrNotFound even when
	// the row exists. Simulates a concurrent writer committing between a
	// caller's lookup and its insert.
	MissNextFind bool
}

func (f *FakeRSVPStore) Create(ctx context.Context, sub model.Submission) (*model.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	for _, r := range f.Rows {
		if strings.EqualFold(r.Email, sub.Email) {
			return nil, repository.ErrDuplicateEmail
		}
	}
	r := &model.RSVP{
		ID:                      uuid.New().String(),
		FullName:                sub.FullName,
		Email:                   sub.Email,
		Phone:                   sub.Phone,
		InstitutionOrganization: sub.InstitutionOrganization,
		JobTitle:                sub.JobTitle,
		CreatedAt:               time.Now().UTC(),
	}
	f.Rows = append(f.Rows, r)
	return r, nil
}

func (f *FakeRSVPStore) FindByEmail(ctx context.Context, email string) (*model.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.MissNextFind {
		f.MissNextFind = false
		return nil, repository.ErrNotFound
	}
	for _, r := range f.Rows {
		if strings.EqualFold(r.Email, email) {
			return r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *FakeRSVPStore) GetByID(ctx context.Context, id string) (*model.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.Rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Seed inserts a row directly, bypassing Create's duplicate check.
func (f *FakeRSVPStore) Seed(r *model.RSVP) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rows = append(f.Rows, r)
}

// FakeTicketStore is an in-memory TicketStore with count-based sequential
// numbering, matching the real Issue transaction.
type FakeTicketStore struct {
	mu sync.Mutex

	Rows []*model.Ticket

	// IssueErr, when set, fails every Issue call with that error.
	IssueErr error
}

func (f *FakeTicketStore) Issue(ctx context.Context, rsvp *model.RSVP) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.IssueErr != nil {
		return nil, f.IssueErr
	}
	number := ticket.FormatNumber(len(f.Rows) + 1)
	t := &model.Ticket{
		ID:           uuid.New().String(),
		RSVPID:       rsvp.ID,
		TicketNumber: number,
		QRCode: ticket.EncodePayload(ticket.Payload{
			Ticket: number,
			Email:  rsvp.Email,
			Name:   rsvp.FullName,
		}),
		Status:    model.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	f.Rows = append(f.Rows, t)
	return t, nil
}

func (f *FakeTicketStore) FindByRSVPID(ctx context.Context, rsvpID string) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.Rows {
		if t.RSVPID == rsvpID {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *FakeTicketStore) FindByNumber(ctx context.Context, number string) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.Rows {
		if t.TicketNumber == number {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}
