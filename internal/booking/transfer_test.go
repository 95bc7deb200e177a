package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/facility-reservation/internal/apperr"
	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/repository"
)

type occKey struct {
	reservationID uint64
	userID        uint64
}

// fakeTransferStore mimics the MySQL store in memory. Decline and
// AcceptAndReassign reproduce the conditional-update contract: they only
// succeed while the stored row is still PENDING and inside its deadline,
// which is what serializes concurrent responses.
type fakeTransferStore struct {
	mu           sync.Mutex
	nextID       uint64
	reservations map[uint64]*model.Reservation
	occupants    map[occKey]*model.ReservationOccupant
	transfers    map[uint64]*model.TransferRequest
	now          func() time.Time
}

func newFakeTransferStore(now func() time.Time) *fakeTransferStore {
	return &fakeTransferStore{
		reservations: make(map[uint64]*model.Reservation),
		occupants:    make(map[occKey]*model.ReservationOccupant),
		transfers:    make(map[uint64]*model.TransferRequest),
		now:          now,
	}
}

// seedReservation creates an active reservation owned by userID with the
// owner as primary occupant.
func (f *fakeTransferStore) seedReservation(userID uint64, date time.Time, allowTransfer bool) *model.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	res := &model.Reservation{
		ID: f.nextID, UserID: userID, Date: date,
		Status: model.ReservationActive, AllowTransfer: allowTransfer,
	}
	f.reservations[res.ID] = res
	f.occupants[occKey{res.ID, userID}] = &model.ReservationOccupant{
		ReservationID: res.ID, UserID: userID, IsPrimary: true, Status: model.OccupantActive,
	}
	return res
}

func (f *fakeTransferStore) Reservation(_ context.Context, id uint64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

func (f *fakeTransferStore) IsActiveOccupant(_ context.Context, reservationID, userID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	occ, ok := f.occupants[occKey{reservationID, userID}]
	return ok && occ.Status == model.OccupantActive, nil
}

func (f *fakeTransferStore) CreatePending(_ context.Context, t *model.TransferRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	for _, ex := range f.transfers {
		if ex.ReservationID == t.ReservationID && ex.TargetUserID == t.TargetUserID &&
			ex.Status == model.TransferPending && now.Before(ex.ExpiresAt) {
			return repository.ErrConflict
		}
	}
	f.nextID++
	t.ID = f.nextID
	cp := *t
	f.transfers[t.ID] = &cp
	return nil
}

func (f *fakeTransferStore) Transfer(_ context.Context, id uint64) (*model.TransferRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok {
		return nil, repository.ErrTransferNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTransferStore) MarkExpired(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transfers[id]; ok && t.Status == model.TransferPending {
		t.Status = model.TransferExpired
	}
	return nil
}

func (f *fakeTransferStore) Decline(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok || t.Status != model.TransferPending || !f.now().Before(t.ExpiresAt) {
		return repository.ErrConflict
	}
	t.Status = model.TransferDeclined
	return nil
}

func (f *fakeTransferStore) AcceptAndReassign(_ context.Context, t *model.TransferRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.transfers[t.ID]
	if !ok || stored.Status != model.TransferPending || !f.now().Before(stored.ExpiresAt) {
		return repository.ErrConflict
	}
	stored.Status = model.TransferAccepted

	from := f.occupants[occKey{t.ReservationID, t.InitiatorID}]
	wasPrimary := from != nil && from.IsPrimary
	if from != nil {
		from.Status = model.OccupantCancelled
	}
	f.occupants[occKey{t.ReservationID, t.TargetUserID}] = &model.ReservationOccupant{
		ReservationID: t.ReservationID, UserID: t.TargetUserID,
		IsPrimary: wasPrimary, Status: model.OccupantActive,
	}
	if wasPrimary {
		f.reservations[t.ReservationID].UserID = t.TargetUserID
	}
	return nil
}

func (f *fakeTransferStore) PendingFor(_ context.Context, userID uint64, now time.Time) ([]model.TransferRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TransferRequest
	for _, t := range f.transfers {
		if t.TargetUserID == userID && t.Status == model.TransferPending && now.Before(t.ExpiresAt) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTransferStore) occupant(reservationID, userID uint64) *model.ReservationOccupant {
	f.mu.Lock()
	defer f.mu.Unlock()
	occ, ok := f.occupants[occKey{reservationID, userID}]
	if !ok {
		return nil
	}
	cp := *occ
	return &cp
}

func newTestTransfer(store TransferStore, now time.Time) *TransferService {
	return NewTransferService(store, nil, nil, nil, 24*time.Hour).WithClock(fixedClock(now))
}

func TestTransferCreate(t *testing.T) {
	now := day(2026, time.January, 20)
	store := newFakeTransferStore(fixedClock(now))
	res := store.seedReservation(1, day(2026, time.January, 24), true)
	svc := newTestTransfer(store, now)
	ctx := context.Background()

	tr, err := svc.Create(ctx, "addr", res.ID, 1, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tr.Status != model.TransferPending {
		t.Fatalf("status = %s, want PENDING", tr.Status)
	}
	if want := now.Add(24 * time.Hour); !tr.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %s, want %s", tr.ExpiresAt, want)
	}

	// A second live pending offer to the same target conflicts.
	_, err = svc.Create(ctx, "addr", res.ID, 1, 2)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("duplicate pending: got %v, want conflict error", err)
	}
}

func TestTransferCreateRejections(t *testing.T) {
	now := day(2026, time.January, 20)
	store := newFakeTransferStore(fixedClock(now))
	open := store.seedReservation(1, day(2026, time.January, 24), true)
	locked := store.seedReservation(1, day(2026, time.January, 25), false)
	svc := newTestTransfer(store, now)
	ctx := context.Background()

	// Self-transfer is meaningless.
	if _, err := svc.Create(ctx, "addr", open.ID, 1, 1); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("self target: got %v, want validation error", err)
	}
	// Unknown reservation.
	if _, err := svc.Create(ctx, "addr", 999, 1, 2); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("unknown reservation: got %v, want validation error", err)
	}
	// Reservation that forbids transfers.
	if _, err := svc.Create(ctx, "addr", locked.ID, 1, 2); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("non-transferable: got %v, want validation error", err)
	}
	// Initiator who holds no active slot.
	if _, err := svc.Create(ctx, "addr", open.ID, 5, 2); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("non-occupant: got %v, want authorization error", err)
	}
}

func TestTransferRespondAcceptReassignsSlot(t *testing.T) {
	now := day(2026, time.January, 20)
	store := newFakeTransferStore(fixedClock(now))
	res := store.seedReservation(1, day(2026, time.January, 24), true)
	svc := newTestTransfer(store, now)
	ctx := context.Background()

	tr, err := svc.Create(ctx, "addr", res.ID, 1, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Respond(ctx, "addr", tr.ID, 2, ActionAccept)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != model.TransferAccepted || got.DecidedAt == nil {
		t.Fatalf("unexpected result %+v", got)
	}

	if occ := store.occupant(res.ID, 1); occ == nil || occ.Status != model.OccupantCancelled {
		t.Fatalf("initiator slot not cancelled: %+v", occ)
	}
	target := store.occupant(res.ID, 2)
	if target == nil || target.Status != model.OccupantActive || !target.IsPrimary {
		t.Fatalf("target slot not activated as primary: %+v", target)
	}
	after, _ := store.Reservation(ctx, res.ID)
	if after.UserID != 2 {
		t.Fatalf("ownership not reassigned: owner=%d", after.UserID)
	}
}

func TestTransferRespondDeclineLeavesSlot(t *testing.T) {
	now := day(2026, time.January, 20)
	store := newFakeTransferStore(fixedClock(now))
	res := store.seedReservation(1, day(2026, time.January, 24), true)
	svc := newTestTransfer(store, now)
	ctx := context.Background()

	tr, _ := svc.Create(ctx, "addr", res.ID, 1, 2)
	got, err := svc.Respond(ctx, "addr", tr.ID, 2, ActionDecline)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if got.Status != model.TransferDeclined {
		t.Fatalf("status = %s, want DECLINED", got.Status)
	}
	if occ := store.occupant(res.ID, 1); occ == nil || occ.Status != model.OccupantActive {
		t.Fatalf("initiator slot must stay active after decline: %+v", occ)
	}
	if occ := store.occupant(res.ID, 2); occ != nil {
		t.Fatalf("decline must not create a slot for the target: %+v", occ)
	}
}

func TestTransferRespondAuthorization(t *testing.T) {
	now := day(2026, time.January, 20)
	store := newFakeTransferStore(fixedClock(now))
	res := store.seedReservation(1, day(2026, time.January, 24), true)
	svc := newTestTransfer(store, now)
	ctx := context.Background()

	tr, _ := svc.Create(ctx, "addr", res.ID, 1, 2)

	// Neither the initiator nor a bystander may respond.
	if _, err := svc.Respond(ctx, "addr", tr.ID, 1, ActionAccept); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("initiator respond: got %v, want authorization error", err)
	}
	if _, err := svc.Respond(ctx, "addr", tr.ID, 7, ActionDecline); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("bystander respond: got %v, want authorization error", err)
	}
	if _, err := svc.Respond(ctx, "addr", tr.ID, 2, "postpone"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("bad action: got %v, want validation error", err)
	}
}

func TestTransferLazyExpiry(t *testing.T) {
	created := day(2026, time.January, 20)
	clock := created
	now := func() time.Time { return clock }
	store := newFakeTransferStore(now)
	res := store.seedReservation(1, day(2026, time.January, 24), true)
	svc := NewTransferService(store, nil, nil, nil, 24*time.Hour).WithClock(now)
	ctx := context.Background()

	tr, err := svc.Create(ctx, "addr", res.ID, 1, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Step past the deadline. The stored row still says PENDING; responding
	// must fail as expired and rewrite the row.
	clock = created.Add(24*time.Hour + time.Minute)
	_, err = svc.Respond(ctx, "addr", tr.ID, 2, ActionAccept)
	if !apperr.IsKind(err, apperr.KindTransferExpired) {
		t.Fatalf("expired respond: got %v, want transfer expired", err)
	}
	stored, _ := store.Transfer(ctx, tr.ID)
	if stored.Status != model.TransferExpired {
		t.Fatalf("lazy expiry not persisted: status=%s", stored.Status)
	}
	// Expiry beats authorization: even a bystander sees 410, not 403.
	if _, err := svc.Respond(ctx, "addr", tr.ID, 7, ActionAccept); !apperr.IsKind(err, apperr.KindTransferExpired) {
		t.Fatalf("expired respond by bystander: got %v, want transfer expired", err)
	}
	// And the occupant slot never moved.
	if occ := store.occupant(res.ID, 1); occ == nil || occ.Status != model.OccupantActive {
		t.Fatalf("expired transfer must not touch occupants: %+v", occ)
	}
}

func TestTransferConcurrentRespondSingleWinner(t *testing.T) {
	now := day(2026, time.January, 20)
	store := newFakeTransferStore(fixedClock(now))
	res := store.seedReservation(1, day(2026, time.January, 24), true)
	svc := newTestTransfer(store, now)
	ctx := context.Background()

	tr, _ := svc.Create(ctx, "addr", res.ID, 1, 2)

	const attempts = 8
	var wg sync.WaitGroup
	wins := make(chan string, attempts)
	for i := 0; i < attempts; i++ {
		action := ActionAccept
		if i%2 == 1 {
			action = ActionDecline
		}
		wg.Add(1)
		go func(action string) {
			defer wg.Done()
			if _, err := svc.Respond(ctx, "addr", tr.ID, 2, action); err == nil {
				wins <- action
			}
		}(action)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("got %d winning responses, want exactly 1", len(winners))
	}
	stored, _ := store.Transfer(ctx, tr.ID)
	if stored.Status == model.TransferPending {
		t.Fatalf("transfer still pending after responses")
	}
}

func TestTransferPendingForExcludesExpired(t *testing.T) {
	created := day(2026, time.January, 20)
	clock := created
	now := func() time.Time { return clock }
	store := newFakeTransferStore(now)
	resA := store.seedReservation(1, day(2026, time.January, 24), true)
	resB := store.seedReservation(3, day(2026, time.January, 25), true)
	svc := NewTransferService(store, nil, nil, nil, 24*time.Hour).WithClock(now)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "addr", resA.ID, 1, 2); err != nil {
		t.Fatalf("create A: %v", err)
	}

	// The second offer is created twelve hours later, so it outlives the
	// first by twelve hours.
	clock = created.Add(12 * time.Hour)
	if _, err := svc.Create(ctx, "addr", resB.ID, 3, 2); err != nil {
		t.Fatalf("create B: %v", err)
	}

	clock = created.Add(30 * time.Hour) // first expired, second still live
	list, err := svc.PendingFor(ctx, 2)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(list) != 1 || list[0].ReservationID != resB.ID {
		t.Fatalf("pending list = %+v, want only the later offer", list)
	}
}
