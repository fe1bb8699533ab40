package booking

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
)

// memoryRepository mirrors the Mongo repository's contract closely
// enough for service tests: ErrDayFull when a branch-day counter is at
// the limit, mongo.ErrNoDocuments for missing appointments.
type memoryRepository struct {
	mu       sync.Mutex
	items    map[string]Appointment
	counters map[string]int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		items:    make(map[string]Appointment),
		counters: make(map[string]int),
	}
}

func (m *memoryRepository) Insert(ctx context.Context, appt Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[appt.ID] = appt
	return nil
}

func (m *memoryRepository) CountActive(ctx context.Context, branch, date string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, appt := range m.items {
		if appt.BranchSlug == branch && appt.AppointmentDate == date && IsActiveStatus(appt.Status) {
			count++
		}
	}
	return count, nil
}

func (m *memoryRepository) ReserveSlot(ctx context.Context, branch, date string, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := branch + "|" + date
	if m.counters[key] >= limit {
		return ErrDayFull
	}
	m.counters[key]++
	return nil
}

func (m *memoryRepository) ReleaseSlot(ctx context.Context, branch, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := branch + "|" + date
	if m.counters[key] > 0 {
		m.counters[key]--
	}
	return nil
}

func (m *memoryRepository) GetByID(ctx context.Context, id string) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.items[id]
	if !ok {
		return Appointment{}, mongo.ErrNoDocuments
	}
	return appt, nil
}

func (m *memoryRepository) UpdateStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.items[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	appt.Status = status
	m.items[id] = appt
	return nil
}

func (m *memoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(m.items, id)
	return nil
}

func (m *memoryRepository) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Appointment, error) {
	matched := m.matching(filter)
	if offset >= int64(len(matched)) {
		return []Appointment{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && int64(len(matched)) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *memoryRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return int64(len(m.matching(filter))), nil
}

func (m *memoryRepository) matching(filter ListFilter) []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]Appointment, 0)
	for _, appt := range m.items {
		if filter.Branch != "" && appt.BranchSlug != filter.Branch {
			continue
		}
		if filter.Status != "" && appt.Status != filter.Status {
			continue
		}
		if filter.From != "" && appt.AppointmentDate < filter.From {
			continue
		}
		if filter.To != "" && appt.AppointmentDate > filter.To {
			continue
		}
		if filter.Query != "" {
			q := strings.ToLower(filter.Query)
			if !strings.Contains(strings.ToLower(appt.FullName), q) &&
				!strings.Contains(strings.ToLower(appt.Reference), q) &&
				!strings.Contains(appt.Mobile, q) {
				continue
			}
		}
		matched = append(matched, appt)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].AppointmentDate != matched[j].AppointmentDate {
			return matched[i].AppointmentDate < matched[j].AppointmentDate
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched
}

func (m *memoryRepository) counterValue(branch, date string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[branch+"|"+date]
}

// failingReleaseRepo makes ReleaseSlot always fail while counting the
// attempts.
type failingReleaseRepo struct {
	*memoryRepository
	releaseCalls int
}

func (r *failingReleaseRepo) ReleaseSlot(ctx context.Context, branch, date string) error {
	r.releaseCalls++
	return errors.New("release failed")
}

// collidingInsertRepo makes Insert fail a configured number of times
// with a duplicate-key error (a reference collision against the unique
// index), or always with insertErr when set.
type collidingInsertRepo struct {
	*memoryRepository
	dupFailures int
	insertErr   error
	insertCalls int
}

func (r *collidingInsertRepo) Insert(ctx context.Context, appt Appointment) error {
	r.insertCalls++
	if r.insertErr != nil {
		return r.insertErr
	}
	if r.insertCalls <= r.dupFailures {
		return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
	}
	return r.memoryRepository.Insert(ctx, appt)
}
