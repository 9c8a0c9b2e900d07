// Package service implements the ticket issuance protocol: server-side
// validation, the idempotent lookup, and orchestration of the two-phase
// RSVP + ticket write.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/millennialcircuit/launch-rsvp/internal/model"
	"github.com/millennialcircuit/launch-rsvp/internal/repository"
	"github.com/millennialcircuit/launch-rsvp/internal/ticket"
)

// ErrInvalidSubmission wraps server-side validation failures.
var ErrInvalidSubmission = errors.New("invalid submission")

// ErrPartialIssuance marks the registered-no-ticket state: the RSVP row was
// written but the ticket step failed. The RSVP is intentionally left in
// place; a later submission with the same email reuses it and retries the
// ticket step.
var ErrPartialIssuance = errors.New("rsvp saved but ticket creation failed")

// RSVPStore is the persistence surface the service needs for RSVP rows.
type RSVPStore interface {
	Create(ctx context.Context, sub model.Submission) (*model.RSVP, error)
	FindByEmail(ctx context.Context, email string) (*model.RSVP, error)
	GetByID(ctx context.Context, id string) (*model.RSVP, error)
}

// TicketStore is the persistence surface the service needs for tickets.
type TicketStore interface {
	FindByRSVPID(ctx context.Context, rsvpID string) (*model.Ticket, error)
	FindByNumber(ctx context.Context, number string) (*model.Ticket, error)
	Issue(ctx context.Context, rsvp *model.RSVP) (*model.Ticket, error)
}

// IssuanceService runs the RSVP-to-ticket flow against injected stores.
type IssuanceService struct {
	rsvps    RSVPStore
	tickets  TicketStore
	validate *validator.Validate
	log      *slog.Logger
	baseURL  string
}

// NewIssuanceService constructs an IssuanceService. baseURL is the public
// site origin embedded in QR code links.
func NewIssuanceService(rsvps RSVPStore, tickets TicketStore, log *slog.Logger, baseURL string) *IssuanceService {
	v := validator.New()
	// Report field names from json tags so validation messages match the wire.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	return &IssuanceService{
		rsvps:    rsvps,
		tickets:  tickets,
		validate: v,
		log:      log,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// RSVP is the single entry point for a form submission. It returns the
// visitor's ticket, creating the RSVP and ticket rows only when needed:
// a repeat submission with a known email gets the already-issued ticket
// back, and an orphaned RSVP left by an earlier partial failure is reused
// rather than duplicated.
func (s *IssuanceService) RSVP(ctx context.Context, sub model.Submission) (*model.IssuedTicket, error) {
	clean, err := s.sanitize(sub)
	if err != nil {
		return nil, err
	}

	rsvp, err := s.rsvps.FindByEmail(ctx, clean.Email)
	switch {
	case err == nil:
		t, terr := s.tickets.FindByRSVPID(ctx, rsvp.ID)
		if terr == nil {
			// Re-fetch the full row so the result carries every field.
			full, ferr := s.rsvps.GetByID(ctx, rsvp.ID)
			if ferr != nil {
				return nil, fmt.Errorf("refetch rsvp: %w", ferr)
			}
			s.log.InfoContext(ctx, "returning existing ticket",
				"ticket_number", t.TicketNumber, "rsvp_id", rsvp.ID)
			return s.result(t, full), nil
		}
		if !errors.Is(terr, repository.ErrNotFound) {
			return nil, terr
		}
		// Orphaned RSVP from an earlier partial failure: retry the
		// ticket step against the existing row.
		return s.issue(ctx, rsvp)
	case errors.Is(err, repository.ErrNotFound):
		// New registrant.
	default:
		return nil, err
	}

	created, err := s.rsvps.Create(ctx, clean)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// A concurrent submission with the same email won the race
			// between our lookup and our insert. The conflict is
			// idempotent success: hand back whatever that winner made.
			return s.recoverDuplicate(ctx, clean.Email)
		}
		return nil, err
	}
	return s.issue(ctx, created)
}

// TicketByNumber resolves the ticket link encoded in QR codes.
func (s *IssuanceService) TicketByNumber(ctx context.Context, number string) (*model.IssuedTicket, error) {
	t, err := s.tickets.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	rsvp, err := s.rsvps.GetByID(ctx, t.RSVPID)
	if err != nil {
		return nil, fmt.Errorf("fetch rsvp for ticket: %w", err)
	}
	return s.result(t, rsvp), nil
}

// sanitize builds a clean submission carrying exactly the five recognized
// fields and validates it. Email is normalized since it is the idempotency
// key for the whole flow.
func (s *IssuanceService) sanitize(sub model.Submission) (model.Submission, error) {
	clean := model.Submission{
		FullName:                strings.TrimSpace(sub.FullName),
		Email:                   strings.ToLower(strings.TrimSpace(sub.Email)),
		Phone:                   strings.TrimSpace(sub.Phone),
		InstitutionOrganization: strings.TrimSpace(sub.InstitutionOrganization),
		JobTitle:                strings.TrimSpace(sub.JobTitle),
	}
	if err := s.validate.Struct(clean); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return model.Submission{}, fmt.Errorf("%w: %s", ErrInvalidSubmission, fieldMessage(fieldErrs[0]))
		}
		return model.Submission{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	return clean, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " is not a valid email address"
	default:
		return fe.Field() + " is invalid"
	}
}

// recoverDuplicate re-runs the idempotent lookup after losing the insert
// race: the winner's RSVP row must exist, but its ticket may or may not.
func (s *IssuanceService) recoverDuplicate(ctx context.Context, email string) (*model.IssuedTicket, error) {
	rsvp, err := s.rsvps.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup after duplicate email: %w", err)
	}
	t, err := s.tickets.FindByRSVPID(ctx, rsvp.ID)
	if err == nil {
		return s.result(t, rsvp), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return s.issue(ctx, rsvp)
}

// issue runs the ticket step for an RSVP that has no ticket yet. On failure
// the RSVP row stays behind; the distinct log line is the operator's signal
// that the reconciliation path will run on the visitor's next attempt.
func (s *IssuanceService) issue(ctx context.Context, rsvp *model.RSVP) (*model.IssuedTicket, error) {
	t, err := s.tickets.Issue(ctx, rsvp)
	if err != nil {
		s.log.ErrorContext(ctx, "partial issuance: rsvp row left without ticket",
			"rsvp_id", rsvp.ID, "email", rsvp.Email, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPartialIssuance, err)
	}
	s.log.InfoContext(ctx, "ticket issued",
		"ticket_number", t.TicketNumber, "rsvp_id", rsvp.ID)
	return s.result(t, rsvp), nil
}

func (s *IssuanceService) result(t *model.Ticket, rsvp *model.RSVP) *model.IssuedTicket {
	return &model.IssuedTicket{
		TicketNumber: t.TicketNumber,
		QRCode:       t.QRCode,
		Status:       t.Status,
		QRImageURL:   ticket.QRImageURL(s.baseURL, t.TicketNumber),
		RSVP:         *rsvp,
	}
}
