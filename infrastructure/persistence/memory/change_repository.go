package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"graphitti-backend/application/ports"
	"graphitti-backend/domain/versioning"
)

// ChangeRecordRepository is an in-memory change log for tests and local
// development
type ChangeRecordRepository struct {
	mu      sync.RWMutex
	records []*versioning.ChangeRecord
}

// NewChangeRecordRepository creates an empty in-memory change log
func NewChangeRecordRepository() *ChangeRecordRepository {
	return &ChangeRecordRepository{}
}

// Save appends a change record
func (r *ChangeRecordRepository) Save(ctx context.Context, record *versioning.ChangeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *record
	r.records = append(r.records, &copied)
	return nil
}

// List returns matching records, newest first
func (r *ChangeRecordRepository) List(ctx context.Context, filter ports.ChangeFilter) ([]*versioning.ChangeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*versioning.ChangeRecord
	for _, rec := range r.records {
		if !matches(rec, filter) {
			continue
		}
		copied := *rec
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matches(rec *versioning.ChangeRecord, filter ports.ChangeFilter) bool {
	if filter.EntityID != "" && rec.EntityID != filter.EntityID {
		return false
	}
	if filter.EntityType != "" && rec.EntityType != filter.EntityType {
		return false
	}
	if filter.ChangeType != "" && rec.Type != filter.ChangeType {
		return false
	}
	if filter.BatchID != "" && rec.BatchID != filter.BatchID {
		return false
	}
	if filter.SessionID != "" && rec.SessionID != filter.SessionID {
		return false
	}
	if filter.Since != nil && rec.Timestamp.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && rec.Timestamp.After(*filter.Until) {
		return false
	}
	return true
}

// CountSince counts records after the given time
func (r *ChangeRecordRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.records {
		if rec.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

// CountDistinctSessionsSince counts distinct sessions with activity after
// the given time
func (r *ChangeRecordRepository) CountDistinctSessionsSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := map[string]bool{}
	for _, rec := range r.records {
		if rec.Timestamp.After(since) {
			sessions[rec.SessionID] = true
		}
	}
	return len(sessions), nil
}

// DailyRollup recomputes per-day change counts for the range
func (r *ChangeRecordRepository) DailyRollup(ctx context.Context, start, end time.Time) ([]versioning.DailyChangeCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byDay := map[string]*versioning.DailyChangeCount{}
	for _, rec := range r.records {
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		day := rec.Timestamp.UTC().Format("2006-01-02")
		entry, ok := byDay[day]
		if !ok {
			entry = &versioning.DailyChangeCount{
				Day:           day,
				ChangesByType: map[versioning.ChangeType]int{},
			}
			byDay[day] = entry
		}
		entry.TotalChanges++
		entry.ChangesByType[rec.Type]++
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make([]versioning.DailyChangeCount, 0, len(days))
	for _, day := range days {
		out = append(out, *byDay[day])
	}
	return out, nil
}
