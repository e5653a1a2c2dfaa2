// Package repotest provides an in-memory stand-in for the MySQL
// repositories, for tests of the packages built on top of them.
package repotest

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/appointment-booking/internal/model"
	"github.com/iliyamo/appointment-booking/internal/repository"
)

// MemoryStore is an in-process implementation of the same methods as
// repository.Store.  It follows the MySQL semantics (half-open overlap, id
// ordering, upsert by e-mail) and is safe for concurrent use.  Service and engine
// tests run against it.
type MemoryStore struct {
	mu        sync.Mutex
	items     map[uint64]model.BookableItem
	resources map[uint64]model.Resource
	bookings  map[uint64]model.Booking
	customers map[uint64]model.Customer
	breaks    []model.StaffBreak
	nextID    uint64
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:     map[uint64]model.BookableItem{},
		resources: map[uint64]model.Resource{},
		bookings:  map[uint64]model.Booking{},
		customers: map[uint64]model.Customer{},
		now:       time.Now,
	}
}

// PutItem adds or replaces an item.
func (m *MemoryStore) PutItem(it model.BookableItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = it
}

// PutResource adds or replaces a resource.
func (m *MemoryStore) PutResource(r model.Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[r.ID] = r
}

// AddBreak records a staff break.
func (m *MemoryStore) AddBreak(b model.StaffBreak) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaks = append(m.breaks, b)
}

// Bookings returns a snapshot of every booking ordered by id.
func (m *MemoryStore) Bookings() []model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b model.Booking) int { return cmpID(a.ID, b.ID) })
	return out
}

func (m *MemoryStore) FindItem(_ context.Context, id uint64) (*model.BookableItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, repository.ErrItemNotFound
	}
	it.ResourceIDs = slices.Clone(it.ResourceIDs)
	return &it, nil
}

func (m *MemoryStore) ListEligibleResources(_ context.Context, itemID uint64) ([]model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok {
		return nil, nil
	}
	var out []model.Resource
	for _, r := range m.resources {
		if !r.Active {
			continue
		}
		if len(it.ResourceIDs) > 0 && !slices.Contains(it.ResourceIDs, r.ID) {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.Resource) int { return cmpID(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryStore) GetResource(_ context.Context, id uint64) (*model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	if !ok {
		return nil, repository.ErrResourceNotFound
	}
	return &r, nil
}

func (m *MemoryStore) CountOverlappingBookings(_ context.Context, itemID uint64, start, end time.Time, excludeStatuses []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bookings {
		if b.ItemID == itemID && overlap(b, start, end) && !slices.Contains(excludeStatuses, b.Status) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) OccupiedCountsByResource(_ context.Context, start, end time.Time, includePending bool) (map[uint64]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uint64]int{}
	for _, b := range m.bookings {
		if b.ResourceID == nil || b.Status == model.StatusCancelled || !overlap(b, start, end) {
			continue
		}
		if b.Status == model.StatusPending && !includePending {
			continue
		}
		out[*b.ResourceID]++
	}
	return out, nil
}

func (m *MemoryStore) CreateBooking(_ context.Context, b *model.Booking) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b.ID = m.nextID
	now := m.now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	b.Start, b.End = b.Start.UTC(), b.End.UTC()
	m.bookings[b.ID] = *b
	return b.ID, nil
}

func (m *MemoryStore) AssignResource(_ context.Context, bookingID, resourceID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.ResourceID != nil {
		return false, nil
	}
	rid := resourceID
	b.ResourceID = &rid
	b.UpdatedAt = m.now().UTC()
	m.bookings[bookingID] = b
	return true, nil
}

func (m *MemoryStore) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

func (m *MemoryStore) UpdateBookingStatus(_ context.Context, id uint64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.Status = status
	b.UpdatedAt = m.now().UTC()
	m.bookings[id] = b
	return nil
}

func (m *MemoryStore) UpsertCustomer(_ context.Context, c model.Customer) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(c.Email))
	for id, existing := range m.customers {
		if existing.Email == email {
			existing.Name, existing.Phone = c.Name, c.Phone
			m.customers[id] = existing
			return id, nil
		}
	}
	m.nextID++
	c.ID, c.Email = m.nextID, email
	m.customers[c.ID] = c
	return c.ID, nil
}

func (m *MemoryStore) StaffBreaks(_ context.Context, resourceID uint64, start, end time.Time) ([]model.StaffBreak, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.StaffBreak
	for _, b := range m.breaks {
		if b.ResourceID == resourceID && b.Start.Before(end) && b.End.After(start) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b model.StaffBreak) int { return a.Start.Compare(b.Start) })
	return out, nil
}

func overlap(b model.Booking, start, end time.Time) bool {
	return b.Start.Before(end) && b.End.After(start)
}

func cmpID(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
