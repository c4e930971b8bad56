package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/auth"
)

// memRepo enforces slot exclusivity the way the unique index does: the check and the insert
// happen under one lock, like a single constrained INSERT.
type memRepo struct {
	mu       sync.Mutex
	slots    map[uuid.UUID]Slot
	users    map[uuid.UUID]auth.User
	bySlot   map[uuid.UUID]Booking
	listErr  error
	listHits int
}

func newMemRepo() *memRepo {
	return &memRepo{
		slots:  make(map[uuid.UUID]Slot),
		users:  make(map[uuid.UUID]auth.User),
		bySlot: make(map[uuid.UUID]Booking),
	}
}

func (m *memRepo) addSlot(start time.Time) Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Slot{ID: uuid.New(), StartAt: start, EndAt: start.Add(30 * time.Minute)}
	m.slots[s.ID] = s
	return s
}

func (m *memRepo) addUser(name string) auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := auth.User{ID: uuid.New(), Name: name, Email: name + "@test.com", Role: auth.RolePatient}
	m.users[u.ID] = u
	return u
}

func (m *memRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *memRepo) ListAvailableSlots(_ context.Context, from, to time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listHits++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Slot
	for _, s := range m.slots {
		if _, booked := m.bySlot[s.ID]; booked {
			continue
		}
		if !s.StartAt.Before(from) && s.StartAt.Before(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (m *memRepo) CreateBooking(_ context.Context, userID, slotID uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bySlot[slotID]; ok {
		return nil, ErrSlotAlreadyBooked
	}
	if _, ok := m.slots[slotID]; !ok {
		return nil, ErrSlotNotFound
	}
	if _, ok := m.users[userID]; !ok {
		return nil, auth.ErrUserNotFound
	}
	b := Booking{ID: uuid.New(), UserID: userID, SlotID: slotID, CreatedAt: time.Now()}
	m.bySlot[slotID] = b
	return &b, nil
}

func (m *memRepo) list(keep func(Booking) bool) []Booking {
	var out []Booking
	for _, b := range m.bySlot {
		if !keep(b) {
			continue
		}
		s := m.slots[b.SlotID]
		u := m.users[b.UserID]
		b.Slot = &s
		b.User = &auth.User{ID: u.ID, Name: u.Name, Email: u.Email}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot.StartAt.Before(out[j].Slot.StartAt) })
	return out
}

func (m *memRepo) ListBookingsByUser(_ context.Context, userID uuid.UUID) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.list(func(b Booking) bool { return b.UserID == userID })
	for i := range out {
		out[i].User = nil
	}
	return out, nil
}

func (m *memRepo) ListAllBookings(context.Context) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(Booking) bool { return true }), nil
}

// memCache is a versioned in-process SlotCache.
type memCache struct {
	mu            sync.Mutex
	version       int64
	entries       map[int64][]Slot
	ttl           time.Duration
	invalidateErr error
	reads         int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[int64][]Slot)}
}

func (c *memCache) Available(context.Context) ([]Slot, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	s, ok := c.entries[c.version]
	return s, c.version, ok, nil
}

func (c *memCache) StoreAvailable(_ context.Context, version int64, slots []Slot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[version] = slots
	return nil
}

func (c *memCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidateErr != nil {
		return c.invalidateErr
	}
	c.version++
	return nil
}

func (c *memCache) TTL() time.Duration { return c.ttl }

func newTestService(repo Repository, cache SlotCache) *Service {
	return NewService(repo, cache, 7*24*time.Hour, zap.NewNop())
}

func TestBookConcurrentExactlyOneWins(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	slot := repo.addSlot(time.Now().Add(24 * time.Hour))

	const n = 25
	users := make([]auth.User, n)
	for i := range users {
		users[i] = repo.addUser("patient")
	}

	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		mu       sync.Mutex
		wins     int
		conflict int
		other    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(u auth.User) {
			defer wg.Done()
			<-start
			_, err := svc.Book(context.Background(), u.ID, slot.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSlotAlreadyBooked):
				conflict++
			default:
				other = append(other, err)
			}
		}(users[i])
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly 1 successful booking, got %d", wins)
	}
	if conflict != n-1 {
		t.Fatalf("expected %d conflicts, got %d (other errors: %v)", n-1, conflict, other)
	}
}

func TestBookReturnsSlot(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	slot := repo.addSlot(time.Now().Add(2 * time.Hour))
	u := repo.addUser("ada")

	b, err := svc.Book(context.Background(), u.ID, slot.ID)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if b.Slot == nil || b.Slot.ID != slot.ID {
		t.Fatalf("booking slot = %+v, want %s", b.Slot, slot.ID)
	}
	if b.UserID != u.ID {
		t.Errorf("user id = %s, want %s", b.UserID, u.ID)
	}
}

func TestBookUnknownSlot(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	u := repo.addUser("ada")

	for i := 0; i < 3; i++ {
		_, err := svc.Book(context.Background(), u.ID, uuid.New())
		if !errors.Is(err, ErrSlotNotFound) {
			t.Fatalf("expected ErrSlotNotFound, got %v", err)
		}
		if errors.Is(err, ErrSlotAlreadyBooked) {
			t.Fatal("unknown slot reported as already booked")
		}
	}
}

func TestListAvailableExcludesBookedAndOutOfWindow(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	now := time.Now()

	past := repo.addSlot(now.Add(-time.Hour))
	later := repo.addSlot(now.Add(3 * time.Hour))
	sooner := repo.addSlot(now.Add(time.Hour))
	booked := repo.addSlot(now.Add(2 * time.Hour))
	beyond := repo.addSlot(now.Add(8 * 24 * time.Hour))
	u := repo.addUser("ada")

	if _, err := svc.Book(context.Background(), u.ID, booked.ID); err != nil {
		t.Fatalf("book: %v", err)
	}

	slots, err := svc.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(slots) != 2 || slots[0].ID != sooner.ID || slots[1].ID != later.ID {
		t.Fatalf("got %d slots %+v, want [sooner later]", len(slots), slots)
	}
	for _, s := range slots {
		if s.ID == past.ID || s.ID == booked.ID || s.ID == beyond.ID {
			t.Fatalf("slot %s should not be listed", s.ID)
		}
	}
}

func TestListAvailableCacheInvalidatedByBooking(t *testing.T) {
	repo := newMemRepo()
	cache := newMemCache()
	svc := newTestService(repo, cache)
	slot := repo.addSlot(time.Now().Add(time.Hour))
	u := repo.addUser("ada")
	ctx := context.Background()

	if _, err := svc.ListAvailable(ctx); err != nil {
		t.Fatalf("first list: %v", err)
	}
	if _, err := svc.ListAvailable(ctx); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if repo.listHits != 1 {
		t.Fatalf("expected second listing from cache, repo hit %d times", repo.listHits)
	}

	if _, err := svc.Book(ctx, u.ID, slot.ID); err != nil {
		t.Fatalf("book: %v", err)
	}

	slots, err := svc.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("list after booking: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("booked slot still listed: %+v", slots)
	}
	if repo.listHits != 2 {
		t.Errorf("expected cache miss after booking, repo hit %d times", repo.listHits)
	}
}

func TestListAvailableStorageError(t *testing.T) {
	repo := newMemRepo()
	repo.listErr = errors.New("connection reset")
	svc := newTestService(repo, nil)

	_, err := svc.ListAvailable(context.Background())
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestMyAndAllBookingsOrdered(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	now := time.Now()

	ada := repo.addUser("ada")
	bob := repo.addUser("bob")
	s3 := repo.addSlot(now.Add(3 * time.Hour))
	s1 := repo.addSlot(now.Add(1 * time.Hour))
	s2 := repo.addSlot(now.Add(2 * time.Hour))

	for _, step := range []struct {
		user auth.User
		slot Slot
	}{{ada, s3}, {bob, s2}, {ada, s1}} {
		if _, err := svc.Book(ctx, step.user.ID, step.slot.ID); err != nil {
			t.Fatalf("book: %v", err)
		}
	}

	mine, err := svc.MyBookings(ctx, ada.ID)
	if err != nil {
		t.Fatalf("my bookings: %v", err)
	}
	if len(mine) != 2 || mine[0].SlotID != s1.ID || mine[1].SlotID != s3.ID {
		t.Fatalf("my bookings out of order: %+v", mine)
	}

	all, err := svc.AllBookings(ctx)
	if err != nil {
		t.Fatalf("all bookings: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 bookings, got %d", len(all))
	}
	want := []uuid.UUID{s1.ID, s2.ID, s3.ID}
	for i, b := range all {
		if b.SlotID != want[i] {
			t.Errorf("all[%d] slot = %s, want %s", i, b.SlotID, want[i])
		}
		if b.User == nil || b.User.Email == "" {
			t.Errorf("all[%d] missing user", i)
		}
	}
}

func TestListAvailableSkipsCacheAfterFailedInvalidate(t *testing.T) {
	repo := newMemRepo()
	cache := newMemCache()
	cache.ttl = time.Minute
	svc := newTestService(repo, cache)
	now := time.Now()
	svc.now = func() time.Time { return now }
	slot := repo.addSlot(now.Add(time.Hour))
	u := repo.addUser("ada")
	ctx := context.Background()

	if _, err := svc.ListAvailable(ctx); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	cache.invalidateErr = errors.New("redis: connection refused")
	if _, err := svc.Book(ctx, u.ID, slot.ID); err != nil {
		t.Fatalf("book should succeed despite the cache: %v", err)
	}

	reads := cache.reads
	slots, err := svc.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("booked slot served from stale cache: %+v", slots)
	}
	if cache.reads != reads {
		t.Error("cache read while its entry is known to be stale")
	}

	// once the stale entry has expired the cache is used again
	now = now.Add(2 * time.Minute)
	if _, err := svc.ListAvailable(ctx); err != nil {
		t.Fatalf("list after ttl: %v", err)
	}
	if cache.reads != reads+1 {
		t.Errorf("cache reads = %d, want %d", cache.reads, reads+1)
	}
}
