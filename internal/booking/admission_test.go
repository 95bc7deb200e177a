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

// fakeAdmissionStore mimics the MySQL store in memory. AdmitAndCreate holds
// the same atomicity contract as the real implementation: the capacity
// increment and the reservation insert happen under one lock, and a full date
// mutates nothing.
type fakeAdmissionStore struct {
	mu           sync.Mutex
	nextID       uint64
	reservations map[uint64]*model.Reservation
	bookings     map[time.Time]uint32 // per-date admitted count
	capacity     map[time.Time]uint32 // per-date max, defaulted on first touch
}

func newFakeAdmissionStore() *fakeAdmissionStore {
	return &fakeAdmissionStore{
		reservations: make(map[uint64]*model.Reservation),
		bookings:     make(map[time.Time]uint32),
		capacity:     make(map[time.Time]uint32),
	}
}

func (f *fakeAdmissionStore) ActiveDates(_ context.Context, userID uint64) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []time.Time
	for _, r := range f.reservations {
		if r.UserID == userID && r.Status == model.ReservationActive {
			out = append(out, r.Date)
		}
	}
	return out, nil
}

func (f *fakeAdmissionStore) AdmitAndCreate(_ context.Context, userID uint64, date time.Time, allowTransfer bool, defaultCapacity uint32) (*model.Reservation, uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max, ok := f.capacity[date]
	if !ok {
		max = defaultCapacity
		f.capacity[date] = max
	}
	if f.bookings[date] >= max {
		return nil, 0, repository.ErrCapacityFull
	}
	f.bookings[date]++
	f.nextID++
	res := &model.Reservation{
		ID:            f.nextID,
		UserID:        userID,
		Date:          date,
		Status:        model.ReservationActive,
		AllowTransfer: allowTransfer,
		CreatedAt:     time.Now().UTC(),
	}
	f.reservations[res.ID] = res
	return res, max - f.bookings[date], nil
}

func (f *fakeAdmissionStore) CancelAndRelease(_ context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[reservationID]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	if res.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if res.Status != model.ReservationActive {
		return nil, repository.ErrConflict
	}
	res.Status = model.ReservationCancelled
	if f.bookings[res.Date] > 0 {
		f.bookings[res.Date]--
	}
	return res, nil
}

func (f *fakeAdmissionStore) ReservationsByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, r := range f.reservations {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeAdmissionStore) CapacityFor(_ context.Context, date time.Time, defaultCapacity uint32) (*model.DateCapacity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max, ok := f.capacity[date]
	if !ok {
		max = defaultCapacity
	}
	return &model.DateCapacity{Date: date, MaxCapacity: max, TotalBookings: f.bookings[date]}, nil
}

func (f *fakeAdmissionStore) bookingsOn(date time.Time) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookings[date]
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestAdmission(store AdmissionStore, now time.Time) *AdmissionService {
	return NewAdmissionService(store, nil, nil, AdmissionConfig{
		DefaultDailyCapacity: 10,
		MaxConsecutiveDays:   3,
	}).WithClock(fixedClock(now))
}

func TestCreateReservationAdmits(t *testing.T) {
	store := newFakeAdmissionStore()
	now := day(2026, time.January, 20)
	svc := newTestAdmission(store, now)

	res, remaining, err := svc.CreateReservation(context.Background(), "10.0.0.1", 1, day(2026, time.January, 24), true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Status != model.ReservationActive || !res.AllowTransfer {
		t.Fatalf("unexpected reservation %+v", res)
	}
	if remaining != 9 {
		t.Fatalf("remaining = %d, want 9", remaining)
	}
}

func TestCreateReservationRejectsPastDate(t *testing.T) {
	store := newFakeAdmissionStore()
	svc := newTestAdmission(store, day(2026, time.January, 20))

	_, _, err := svc.CreateReservation(context.Background(), "10.0.0.1", 1, day(2026, time.January, 19), false)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("past date: got %v, want validation error", err)
	}
}

func TestCreateReservationConsecutiveLimit(t *testing.T) {
	store := newFakeAdmissionStore()
	now := day(2026, time.January, 20)
	svc := newTestAdmission(store, now)
	ctx := context.Background()

	for _, d := range []int{24, 25, 26} {
		if _, _, err := svc.CreateReservation(ctx, "10.0.0.1", 1, day(2026, time.January, d), false); err != nil {
			t.Fatalf("day %d: %v", d, err)
		}
	}

	target := day(2026, time.January, 27)
	_, _, err := svc.CreateReservation(ctx, "10.0.0.1", 1, target, false)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("fourth consecutive day: got %v, want validation error", err)
	}
	// The guard runs before the capacity mutation: the rejected date must
	// not have consumed a slot.
	if n := store.bookingsOn(target); n != 0 {
		t.Fatalf("rejected booking consumed capacity: bookings=%d", n)
	}

	// A different user is unaffected by the first user's streak.
	if _, _, err := svc.CreateReservation(ctx, "10.0.0.2", 2, target, false); err != nil {
		t.Fatalf("other user: %v", err)
	}
}

func TestCreateReservationCapacityExceeded(t *testing.T) {
	store := newFakeAdmissionStore()
	target := day(2026, time.February, 14)
	store.capacity[target] = 2
	svc := newTestAdmission(store, day(2026, time.January, 20))
	ctx := context.Background()

	for uid := uint64(1); uid <= 2; uid++ {
		if _, _, err := svc.CreateReservation(ctx, "addr", uid, target, false); err != nil {
			t.Fatalf("user %d: %v", uid, err)
		}
	}
	_, _, err := svc.CreateReservation(ctx, "addr", 3, target, false)
	if !apperr.IsKind(err, apperr.KindCapacityExceeded) {
		t.Fatalf("full date: got %v, want capacity exceeded", err)
	}
	if n := store.bookingsOn(target); n != 2 {
		t.Fatalf("bookings = %d, want 2", n)
	}
}

func TestCreateReservationConcurrentNeverOverbooks(t *testing.T) {
	store := newFakeAdmissionStore()
	target := day(2026, time.March, 1)
	store.capacity[target] = 5
	svc := newTestAdmission(store, day(2026, time.January, 20))

	const callers = 20
	var wg sync.WaitGroup
	admitted := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			if _, _, err := svc.CreateReservation(context.Background(), "addr", uid, target, false); err == nil {
				admitted <- struct{}{}
			}
		}(uint64(i + 1))
	}
	wg.Wait()
	close(admitted)

	var n int
	for range admitted {
		n++
	}
	if n != 5 {
		t.Fatalf("admitted %d callers, want exactly 5", n)
	}
	if got := store.bookingsOn(target); got != 5 {
		t.Fatalf("bookings = %d, want 5", got)
	}
}

func TestCancelReservationReleasesCapacity(t *testing.T) {
	store := newFakeAdmissionStore()
	svc := newTestAdmission(store, day(2026, time.January, 20))
	ctx := context.Background()
	target := day(2026, time.January, 24)

	res, _, err := svc.CreateReservation(ctx, "addr", 1, target, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Only the owner may cancel.
	err = svc.CancelReservation(ctx, 2, res.ID)
	if !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("foreign cancel: got %v, want authorization error", err)
	}

	if err := svc.CancelReservation(ctx, 1, res.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if n := store.bookingsOn(target); n != 0 {
		t.Fatalf("slot not released: bookings=%d", n)
	}

	// Cancelling twice conflicts.
	err = svc.CancelReservation(ctx, 1, res.ID)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("double cancel: got %v, want conflict error", err)
	}

	// Unknown id reads as validation.
	err = svc.CancelReservation(ctx, 1, 999)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("unknown id: got %v, want validation error", err)
	}
}

func TestCancelOnFullDateFreesExactlyOneSlot(t *testing.T) {
	store := newFakeAdmissionStore()
	target := day(2026, time.April, 10)
	store.capacity[target] = 2
	svc := newTestAdmission(store, day(2026, time.January, 20))
	ctx := context.Background()

	first, _, err := svc.CreateReservation(ctx, "addr", 1, target, false)
	if err != nil {
		t.Fatalf("first admit: %v", err)
	}
	if _, _, err := svc.CreateReservation(ctx, "addr", 2, target, false); err != nil {
		t.Fatalf("second admit: %v", err)
	}
	if _, _, err := svc.CreateReservation(ctx, "addr", 3, target, false); !apperr.IsKind(err, apperr.KindCapacityExceeded) {
		t.Fatalf("admit on full date: got %v, want capacity exceeded", err)
	}

	if err := svc.CancelReservation(ctx, 1, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The released slot admits exactly one further booking; the date is full
	// again afterwards.
	if _, _, err := svc.CreateReservation(ctx, "addr", 3, target, false); err != nil {
		t.Fatalf("re-admit after release: %v", err)
	}
	if _, _, err := svc.CreateReservation(ctx, "addr", 4, target, false); !apperr.IsKind(err, apperr.KindCapacityExceeded) {
		t.Fatalf("admit beyond released slot: got %v, want capacity exceeded", err)
	}
	if n := store.bookingsOn(target); n != 2 {
		t.Fatalf("bookings = %d, want 2", n)
	}
}

func TestCapacityForDefaultsUnbookedDates(t *testing.T) {
	store := newFakeAdmissionStore()
	svc := newTestAdmission(store, day(2026, time.January, 20))

	cap, err := svc.CapacityFor(context.Background(), day(2026, time.July, 4))
	if err != nil {
		t.Fatalf("capacity: %v", err)
	}
	if cap.MaxCapacity != 10 || cap.TotalBookings != 0 || cap.RemainingSpots() != 10 {
		t.Fatalf("unexpected default capacity %+v", cap)
	}
}
