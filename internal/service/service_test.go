package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/millennialcircuit/launch-rsvp/internal/model"
	"github.com/millennialcircuit/launch-rsvp/internal/repository"
	"github.com/millennialcircuit/launch-rsvp/internal/testutil"
	"github.com/millennialcircuit/launch-rsvp/internal/ticket"
)

const baseURL = "https://millennialcircuit.org"

func newTestService() (*IssuanceService, *testutil.FakeRSVPStore, *testutil.FakeTicketStore) {
	rsvps := &testutil.FakeRSVPStore{}
	tickets := &testutil.FakeTicketStore{}
	svc := NewIssuanceService(rsvps, tickets, slog.New(slog.DiscardHandler), baseURL)
	return svc, rsvps, tickets
}

func submission(email string) model.Submission {
	return model.Submission{
		FullName:                "Ada Lovelace",
		Email:                   email,
		Phone:                   "+2348000000001",
		InstitutionOrganization: "Analytical Engines Ltd",
		JobTitle:                "Engineer",
	}
}

func TestRSVPIssuesFirstTicket(t *testing.T) {
	svc, rsvps, tickets := newTestService()

	issued, err := svc.RSVP(context.Background(), submission("ada@example.org"))
	require.NoError(t, err)

	assert.Equal(t, "MC-2025-0001", issued.TicketNumber)
	assert.Equal(t, model.StatusActive, issued.Status)
	assert.Equal(t, "ada@example.org", issued.RSVP.Email)
	assert.Len(t, rsvps.Rows, 1)
	assert.Len(t, tickets.Rows, 1)
	assert.Contains(t, issued.QRImageURL, "MC-2025-0001")
}

func TestRSVPIsIdempotentPerEmail(t *testing.T) {
	svc, rsvps, tickets := newTestService()
	ctx := context.Background()

	first, err := svc.RSVP(ctx, submission("ada@example.org"))
	require.NoError(t, err)

	second, err := svc.RSVP(ctx, submission("ada@example.org"))
	require.NoError(t, err)

	assert.Equal(t, first.TicketNumber, second.TicketNumber)
	assert.Len(t, rsvps.Rows, 1, "no second RSVP row")
	assert.Len(t, tickets.Rows, 1, "no second ticket row")
}

func TestRSVPNormalizesEmailForLookup(t *testing.T) {
	svc, _, tickets := newTestService()
	ctx := context.Background()

	first, err := svc.RSVP(ctx, submission("ada@example.org"))
	require.NoError(t, err)

	second, err := svc.RSVP(ctx, submission("  Ada@Example.ORG "))
	require.NoError(t, err)

	assert.Equal(t, first.TicketNumber, second.TicketNumber)
	assert.Len(t, tickets.Rows, 1)
}

func TestSequentialNumbering(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		issued, err := svc.RSVP(ctx, submission(fmt.Sprintf("guest%d@example.org", i)))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("MC-2025-%04d", i), issued.TicketNumber)
	}
}

func TestFieldIsolationAndTrimming(t *testing.T) {
	svc, rsvps, _ := newTestService()

	sub := model.Submission{
		FullName:                "  Ada Lovelace  ",
		Email:                   " ADA@example.org ",
		Phone:                   " +2348000000001 ",
		InstitutionOrganization: " Analytical Engines Ltd ",
		JobTitle:                " Engineer ",
	}
	_, err := svc.RSVP(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, rsvps.Rows, 1)
	row := rsvps.Rows[0]
	assert.Equal(t, "Ada Lovelace", row.FullName)
	assert.Equal(t, "ada@example.org", row.Email)
	assert.Equal(t, "+2348000000001", row.Phone)
	assert.Equal(t, "Analytical Engines Ltd", row.InstitutionOrganization)
	assert.Equal(t, "Engineer", row.JobTitle)
}

func TestValidation(t *testing.T) {
	svc, rsvps, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*model.Submission)
		message string
	}{
		{
			name:    "missing name",
			mutate:  func(s *model.Submission) { s.FullName = "  " },
			message: "full_name is required",
		},
		{
			name:    "missing email",
			mutate:  func(s *model.Submission) { s.Email = "" },
			message: "email is required",
		},
		{
			name:    "malformed email",
			mutate:  func(s *model.Submission) { s.Email = "not-an-email" },
			message: "email is not a valid email address",
		},
		{
			name:    "missing phone",
			mutate:  func(s *model.Submission) { s.Phone = "" },
			message: "phone is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := submission("ada@example.org")
			tt.mutate(&sub)

			_, err := svc.RSVP(ctx, sub)
			require.ErrorIs(t, err, ErrInvalidSubmission)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
	assert.Empty(t, rsvps.Rows, "invalid submissions must not persist anything")
}

func TestOrphanRSVPGetsTicketOnRetry(t *testing.T) {
	svc, rsvps, tickets := newTestService()
	ctx := context.Background()

	// An RSVP row with no ticket, as left behind by a partial failure.
	rsvps.Seed(&model.RSVP{
		ID:       "orphan-1",
		FullName: "Ada Lovelace",
		Email:    "ada@example.org",
		Phone:    "+2348000000001",
	})

	issued, err := svc.RSVP(ctx, submission("ada@example.org"))
	require.NoError(t, err)

	assert.Equal(t, "MC-2025-0001", issued.TicketNumber)
	assert.Len(t, rsvps.Rows, 1, "orphan is reused, not duplicated")
	require.Len(t, tickets.Rows, 1)
	assert.Equal(t, "orphan-1", tickets.Rows[0].RSVPID)
}

func TestTicketFailureLeavesRSVPAndRetrySucceeds(t *testing.T) {
	svc, rsvps, tickets := newTestService()
	ctx := context.Background()

	tickets.IssueErr = repository.ErrUnavailable
	_, err := svc.RSVP(ctx, submission("ada@example.org"))
	require.ErrorIs(t, err, ErrPartialIssuance)
	assert.Len(t, rsvps.Rows, 1, "RSVP row persists through ticket failure")
	assert.Empty(t, tickets.Rows)

	tickets.IssueErr = nil
	issued, err := svc.RSVP(ctx, submission("ada@example.org"))
	require.NoError(t, err)
	assert.Equal(t, "MC-2025-0001", issued.TicketNumber)
	assert.Len(t, rsvps.Rows, 1, "retry reuses the existing RSVP row")
	assert.Len(t, tickets.Rows, 1)
}

func TestDuplicateEmailRaceIsIdempotentSuccess(t *testing.T) {
	svc, rsvps, tickets := newTestService()
	ctx := context.Background()

	winner, err := svc.RSVP(ctx, submission("ada@example.org"))
	require.NoError(t, err)

	// The loser's lookup runs before the winner's commit is visible, so it
	// sees nothing; its insert then hits the unique email index.
	rsvps.MissNextFind = true
	issued, err := svc.RSVP(ctx, submission("ada@example.org"))
	require.NoError(t, err)

	assert.Equal(t, winner.TicketNumber, issued.TicketNumber)
	assert.Len(t, rsvps.Rows, 1)
	assert.Len(t, tickets.Rows, 1)
}

func TestDuplicateEmailRaceAgainstOrphanIssuesTicket(t *testing.T) {
	svc, rsvps, tickets := newTestService()
	ctx := context.Background()

	// Concurrent winner wrote the RSVP but has not issued a ticket.
	rsvps.Seed(&model.RSVP{
		ID:       "orphan-1",
		FullName: "Ada Lovelace",
		Email:    "ada@example.org",
		Phone:    "+2348000000001",
	})
	rsvps.MissNextFind = true

	issued, err := svc.RSVP(ctx, submission("ada@example.org"))
	require.NoError(t, err)
	assert.Equal(t, "MC-2025-0001", issued.TicketNumber)
	assert.Len(t, rsvps.Rows, 1)
	require.Len(t, tickets.Rows, 1)
	assert.Equal(t, "orphan-1", tickets.Rows[0].RSVPID)
}

func TestPayloadRoundTripsThroughIssuance(t *testing.T) {
	svc, _, _ := newTestService()

	issued, err := svc.RSVP(context.Background(), submission("ada@example.org"))
	require.NoError(t, err)

	payload, err := ticket.DecodePayload(issued.QRCode)
	require.NoError(t, err)
	assert.Equal(t, issued.TicketNumber, payload.Ticket)
	assert.Equal(t, "ada@example.org", payload.Email)
	assert.Equal(t, "Ada Lovelace", payload.Name)
}

func TestTicketByNumber(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	issued, err := svc.RSVP(ctx, submission("ada@example.org"))
	require.NoError(t, err)

	got, err := svc.TicketByNumber(ctx, issued.TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, issued.TicketNumber, got.TicketNumber)
	assert.Equal(t, "ada@example.org", got.RSVP.Email)

	_, err = svc.TicketByNumber(ctx, "MC-2025-9999")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}
