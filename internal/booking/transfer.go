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

// Transfer response actions accepted by Respond.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// TransferStore is the persistence capability set the workflow consumes.
// CreatePending must enforce the at-most-one live PENDING per (reservation,
// target) invariant. AcceptAndReassign must cancel the initiator's occupant
// row, activate the target's row and close the transfer as one atomic unit;
// a partial application would leave the slot with zero or two active
// occupants. Decline and AcceptAndReassign must only succeed while the
// stored state is still PENDING and the deadline has not passed, which
// serializes concurrent responses to the same transfer.
type TransferStore interface {
	Reservation(ctx context.Context, id uint64) (*model.Reservation, error)
	IsActiveOccupant(ctx context.Context, reservationID, userID uint64) (bool, error)
	CreatePending(ctx context.Context, t *model.TransferRequest) error
	Transfer(ctx context.Context, id uint64) (*model.TransferRequest, error)
	MarkExpired(ctx context.Context, id uint64) error
	Decline(ctx context.Context, id uint64) error
	AcceptAndReassign(ctx context.Context, t *model.TransferRequest) error
	PendingFor(ctx context.Context, userID uint64, now time.Time) ([]model.TransferRequest, error)
}

// TransferService governs the time-boxed accept/decline workflow that moves
// an occupant slot between users. Expiry is lazy: no background sweeper
// exists, a transfer past its deadline self-invalidates on the next touch.
type TransferService struct {
	store      TransferStore
	createLim  *ratelimit.Limiter
	respondLim *ratelimit.Limiter
	publisher  EventPublisher
	ttl        time.Duration
	now        func() time.Time
}

// NewTransferService wires the workflow. ttl defaults to 24 hours.
func NewTransferService(store TransferStore, createLim, respondLim *ratelimit.Limiter, publisher EventPublisher, ttl time.Duration) *TransferService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TransferService{
		store:      store,
		createLim:  createLim,
		respondLim: respondLim,
		publisher:  publisher,
		ttl:        ttl,
		now:        time.Now,
	}
}

// WithClock overrides the time source for tests.
func (s *TransferService) WithClock(now func() time.Time) *TransferService {
	s.now = now
	return s
}

// Create opens a PENDING transfer offering one of initiatorID's occupant
// slots on the reservation to targetID. The initiator must be an active
// occupant, the reservation must be active and transferable, and no live
// PENDING transfer may already exist for the same (reservation, target)
// pair.
func (s *TransferService) Create(ctx context.Context, clientAddr string, reservationID, initiatorID, targetID uint64) (*model.TransferRequest, error) {
	if s.createLim != nil {
		if err := s.createLim.Allow(ctx, clientAddr); err != nil {
			return nil, err
		}
	}
	if targetID == 0 || targetID == initiatorID {
		return nil, apperr.New(apperr.KindValidation, "transfer target must be another user")
	}

	res, err := s.store.Reservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, apperr.New(apperr.KindValidation, "reservation not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "loading reservation failed", err)
	}
	if res.Status != model.ReservationActive {
		return nil, apperr.New(apperr.KindConflict, "reservation is not active")
	}
	if !res.AllowTransfer {
		return nil, apperr.New(apperr.KindValidation, "reservation does not allow transfers")
	}

	isOcc, err := s.store.IsActiveOccupant(ctx, reservationID, initiatorID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "checking occupancy failed", err)
	}
	if !isOcc {
		return nil, apperr.New(apperr.KindAuthorization, "only an active occupant can offer a transfer")
	}

	now := s.now().UTC()
	t := &model.TransferRequest{
		ReservationID: reservationID,
		InitiatorID:   initiatorID,
		TargetUserID:  targetID,
		Status:        model.TransferPending,
		ExpiresAt:     now.Add(s.ttl),
		CreatedAt:     now,
	}
	if err := s.store.CreatePending(ctx, t); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.New(apperr.KindConflict, "a pending transfer for this user already exists")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "creating transfer failed", err)
	}

	s.publishTransfer(ctx, queue.TransferCreated, t)
	return t, nil
}

// Respond lets the target user accept or decline a pending transfer. The
// lazy expiry check always runs first: a transfer past its deadline fails
// with a transfer-expired error regardless of the stored state, and the row
// is rewritten to EXPIRED since it was touched. On accept the occupant slot
// is reassigned atomically; on decline nothing on the reservation changes.
func (s *TransferService) Respond(ctx context.Context, clientAddr string, transferID, actingUserID uint64, action string) (*model.TransferRequest, error) {
	if s.respondLim != nil {
		if err := s.respondLim.Allow(ctx, clientAddr); err != nil {
			return nil, err
		}
	}
	if action != ActionAccept && action != ActionDecline {
		return nil, apperr.New(apperr.KindValidation, "action must be accept or decline")
	}

	t, err := s.store.Transfer(ctx, transferID)
	if err != nil {
		if errors.Is(err, repository.ErrTransferNotFound) {
			return nil, apperr.New(apperr.KindValidation, "transfer not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "loading transfer failed", err)
	}

	now := s.now().UTC()
	if t.EffectiveStatus(now) == model.TransferExpired {
		if t.Status == model.TransferPending {
			// Touched past the deadline: persist the lazy transition.
			if err := s.store.MarkExpired(ctx, t.ID); err != nil {
				log.Printf("booking: persisting lazy expiry failed transfer=%d: %v", t.ID, err)
			} else {
				t.Status = model.TransferExpired
				s.publishTransfer(ctx, queue.TransferExpiredEvent, t)
			}
		}
		return nil, apperr.New(apperr.KindTransferExpired, "transfer has expired")
	}
	if actingUserID != t.TargetUserID {
		return nil, apperr.New(apperr.KindAuthorization, "only the transfer target can respond")
	}
	if t.Status != model.TransferPending {
		return nil, apperr.New(apperr.KindConflict, "transfer has already been handled")
	}

	switch action {
	case ActionAccept:
		if err := s.store.AcceptAndReassign(ctx, t); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, apperr.New(apperr.KindConflict, "transfer has already been handled")
			}
			return nil, apperr.Wrap(apperr.KindInternal, "accepting transfer failed", err)
		}
		t.Status = model.TransferAccepted
		s.publishTransfer(ctx, queue.TransferAcceptedEvent, t)
	case ActionDecline:
		if err := s.store.Decline(ctx, t.ID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, apperr.New(apperr.KindConflict, "transfer has already been handled")
			}
			return nil, apperr.Wrap(apperr.KindInternal, "declining transfer failed", err)
		}
		t.Status = model.TransferDeclined
		s.publishTransfer(ctx, queue.TransferDeclinedEvent, t)
	}
	decided := now
	t.DecidedAt = &decided
	return t, nil
}

// PendingFor lists live PENDING transfers targeting userID. Expired rows are
// excluded from the view but not rewritten; they stay untouched until
// someone acts on them.
func (s *TransferService) PendingFor(ctx context.Context, userID uint64) ([]model.TransferRequest, error) {
	list, err := s.store.PendingFor(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "listing transfers failed", err)
	}
	return list, nil
}

func (s *TransferService) publishTransfer(ctx context.Context, typ string, t *model.TransferRequest) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.TransferChanged(ctx, queue.NewTransferEvent(typ, t)); err != nil {
		log.Printf("booking: publish %s failed transfer=%d: %v", typ, t.ID, err)
	}
}
