package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"notifyhub/internal/common"
	"notifyhub/internal/domain/notification"
)

var (
	_ notification.InboxStore       = (*MemoryStore)(nil)
	_ notification.ContactDirectory = (*MemoryStore)(nil)
)

// MemoryStore keeps inbox records and contacts in process memory.
// It backs the "memory" storage driver and tests.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	records  []*notification.InboxRecord
	contacts map[int64]notification.Contact
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts: make(map[int64]notification.Contact),
		now:      time.Now,
	}
}

// PutContact adds or replaces a contact.
func (s *MemoryStore) PutContact(c notification.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.UserID] = c
}

// LookupContact returns the contact for userID, or nil when unknown.
func (s *MemoryStore) LookupContact(_ context.Context, userID int64) (*notification.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Insert stores a copy of rec and assigns it the next sequential id.
func (s *MemoryStore) Insert(_ context.Context, rec *notification.InboxRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stored := cloneRecord(rec)
	stored.ID = s.nextID
	if stored.ReadState == nil {
		stored.ReadState = map[string]string{}
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.records = append(s.records, stored)
	return stored.ID, nil
}

// UpdateReadState stamps at into the read-state of record id for userID.
func (s *MemoryStore) UpdateReadState(_ context.Context, id, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.ID == id {
			rec.ReadState[notification.ReadStateKey(userID)] = at.UTC().Format(time.RFC3339Nano)
			return nil
		}
	}
	return common.NewNotFoundError("notification", notification.ReadStateKey(id))
}

// Query returns copies of the records visible to q.UserID, newest first.
func (s *MemoryStore) Query(_ context.Context, q notification.InboxQuery) ([]*notification.InboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*notification.InboxRecord
	for _, rec := range s.records {
		if !visibleTo(rec, q.UserID, q.Role) {
			continue
		}
		if q.Type != "" && rec.Type != q.Type {
			continue
		}
		if q.Importance != "" && rec.Importance != q.Importance {
			continue
		}
		matched = append(matched, cloneRecord(rec))
	}

	// Newest first; later inserts win ties.
	slices.SortStableFunc(matched, func(a, b *notification.InboxRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})

	return page(matched, q.Offset, q.Limit), nil
}

func visibleTo(rec *notification.InboxRecord, userID int64, role notification.TargetRole) bool {
	if rec.TargetUserID != nil {
		return *rec.TargetUserID == userID
	}
	return rec.TargetRole == role || rec.TargetRole == notification.RoleAll
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneRecord(rec *notification.InboxRecord) *notification.InboxRecord {
	c := *rec
	c.ReadState = maps.Clone(rec.ReadState)
	if rec.TargetUserID != nil {
		id := *rec.TargetUserID
		c.TargetUserID = &id
	}
	if rec.ExpiresAt != nil {
		exp := *rec.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}
