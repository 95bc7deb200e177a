package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/facility-reservation/internal/apperr"
	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/queue"
	"github.com/iliyamo/facility-reservation/internal/ratelimit"
	"github.com/iliyamo/facility-reservation/internal/repository"
)

// AdmissionStore is the persistence capability set the coordinator consumes.
// AdmitAndCreate must perform the capacity check-and-increment and the
// reservation insert as one atomic unit: on any failure nothing is mutated.
// CancelAndRelease is the inverse (cancel rows, then release the capacity
// slot) with the same all-or-nothing guarantee.
type AdmissionStore interface {
	ActiveDates(ctx context.Context, userID uint64) ([]time.Time, error)
	AdmitAndCreate(ctx context.Context, userID uint64, date time.Time, allowTransfer bool, defaultCapacity uint32) (*model.Reservation, uint32, error)
	CancelAndRelease(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error)
	ReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	CapacityFor(ctx context.Context, date time.Time, defaultCapacity uint32) (*model.DateCapacity, error)
}

// EventPublisher emits structured events for the external notification
// collaborator. Publishing is best-effort: the admission decision has
// already been committed when an event goes out, so failures are logged and
// never surfaced to the caller.
type EventPublisher interface {
	ReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error
	TransferChanged(ctx context.Context, ev queue.TransferEvent) error
}

// AdmissionConfig carries the admission rules.
type AdmissionConfig struct {
	DefaultDailyCapacity uint32 // capacity assumed for dates with no row yet
	MaxConsecutiveDays   int    // longest allowed run of booked days
}

// AdmissionService decides whether a reservation can be created or cancelled
// right now. It orders its checks so that the cheap, side-effect-free
// consecutive-day guard runs before the capacity mutation: a rejected
// booking must never consume a capacity slot it would immediately release.
type AdmissionService struct {
	store     AdmissionStore
	limiter   *ratelimit.Limiter
	publisher EventPublisher
	cfg       AdmissionConfig
	now       func() time.Time
}

// NewAdmissionService wires the coordinator. limiter guards the
// "reservation:create" purpose; publisher may be nil when notifications are
// disabled.
func NewAdmissionService(store AdmissionStore, limiter *ratelimit.Limiter, publisher EventPublisher, cfg AdmissionConfig) *AdmissionService {
	if cfg.DefaultDailyCapacity == 0 {
		cfg.DefaultDailyCapacity = 10
	}
	if cfg.MaxConsecutiveDays <= 0 {
		cfg.MaxConsecutiveDays = 3
	}
	return &AdmissionService{store: store, limiter: limiter, publisher: publisher, cfg: cfg, now: time.Now}
}

// WithClock overrides the time source for tests.
func (s *AdmissionService) WithClock(now func() time.Time) *AdmissionService {
	s.now = now
	return s
}

// CreateReservation admits a new booking for userID on date. clientAddr is
// the caller's network address supplied by the auth collaborator and keys
// the rate-limit budget. Returns the persisted reservation and the number of
// spots remaining on the date after admission.
func (s *AdmissionService) CreateReservation(ctx context.Context, clientAddr string, userID uint64, date time.Time, allowTransfer bool) (*model.Reservation, uint32, error) {
	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, clientAddr); err != nil {
			return nil, 0, err
		}
	}

	day := DayStart(date)
	if day.Before(DayStart(s.now())) {
		return nil, 0, apperr.New(apperr.KindValidation, "cannot book a date in the past")
	}

	existing, err := s.store.ActiveDates(ctx, userID)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "loading active dates failed", err)
	}
	if WouldExceedConsecutive(existing, day, s.cfg.MaxConsecutiveDays) {
		return nil, 0, apperr.New(apperr.KindValidation, "consecutive day limit exceeded")
	}

	res, remaining, err := s.store.AdmitAndCreate(ctx, userID, day, allowTransfer, s.cfg.DefaultDailyCapacity)
	if err != nil {
		if errors.Is(err, repository.ErrCapacityFull) {
			return nil, 0, apperr.New(apperr.KindCapacityExceeded, "this date is fully booked")
		}
		return nil, 0, apperr.Wrap(apperr.KindInternal, "creating reservation failed", err)
	}

	s.publishConfirmed(ctx, res, remaining)
	return res, remaining, nil
}

// CancelReservation marks the reservation and its occupants CANCELLED and
// releases the capacity slot. Only the primary user may cancel.
func (s *AdmissionService) CancelReservation(ctx context.Context, userID, reservationID uint64) error {
	_, err := s.store.CancelAndRelease(ctx, reservationID, userID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrReservationNotFound):
		return apperr.New(apperr.KindValidation, "reservation not found")
	case errors.Is(err, repository.ErrForbidden):
		return apperr.New(apperr.KindAuthorization, "only the reservation owner can cancel it")
	case errors.Is(err, repository.ErrConflict):
		return apperr.New(apperr.KindConflict, "reservation is not active")
	default:
		return apperr.Wrap(apperr.KindInternal, "cancelling reservation failed", err)
	}
}

// ListReservations returns the user's reservations, newest first.
func (s *AdmissionService) ListReservations(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	list, err := s.store.ReservationsByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "listing reservations failed", err)
	}
	return list, nil
}

// CapacityFor reports the capacity row for a date. Dates without a row read
// as zero bookings against the configured default maximum.
func (s *AdmissionService) CapacityFor(ctx context.Context, date time.Time) (*model.DateCapacity, error) {
	cap, err := s.store.CapacityFor(ctx, DayStart(date), s.cfg.DefaultDailyCapacity)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "loading capacity failed", err)
	}
	return cap, nil
}

func (s *AdmissionService) publishConfirmed(ctx context.Context, res *model.Reservation, remaining uint32) {
	if s.publisher == nil {
		return
	}
	ev := queue.NewReservationConfirmedEvent(res, remaining)
	if err := s.publisher.ReservationConfirmed(ctx, ev); err != nil {
		log.Printf("booking: publish reservation.confirmed failed id=%d: %v", res.ID, err)
	}
}
