// Package memory is an in-process UserDirectory for tests, demos and
// single node deployments seeded at startup.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-pwauth"
	"github.com/google/uuid"
)

// Directory keeps user records in a map guarded by a RWMutex
type Directory struct {
	mu    sync.RWMutex
	users map[string]auth.UserRecord
	now   func() time.Time
}

var (
	_ auth.UserDirectory  = (*Directory)(nil)
	_ auth.EmailDirectory = (*Directory)(nil)
)

// New returns a Directory seeded with records
func New(records ...auth.UserRecord) (*Directory, error) {
	d := &Directory{
		users: make(map[string]auth.UserRecord, len(records)),
		now:   time.Now,
	}
	for _, r := range records {
		if _, err := d.Save(context.Background(), r); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// FindByIdentifier returns a copy of the record for identifier
func (d *Directory) FindByIdentifier(ctx context.Context, identifier string) (*auth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	record, ok := d.users[identifier]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return &record, nil
}

// FindByEmail returns a copy of the record whose email matches, case
// insensitively
func (d *Directory) FindByEmail(ctx context.Context, email string) (*auth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, record := range d.users {
		if email != "" && strings.EqualFold(record.Email, email) {
			return &record, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

// Save inserts or replaces record, keyed by identifier
func (d *Directory) Save(ctx context.Context, record auth.UserRecord) (*auth.UserRecord, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if existing, ok := d.users[record.Identifier]; ok {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now

	d.users[record.Identifier] = record
	return &record, nil
}

// SetActive flips the active flag for identifier
func (d *Directory) SetActive(ctx context.Context, identifier string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	record, ok := d.users[identifier]
	if !ok {
		return auth.ErrUserNotFound
	}
	now := d.now()
	record.Active = active
	record.UpdatedAt = &now
	d.users[identifier] = record
	return nil
}

// Delete removes identifier. Deleting an unknown identifier is not an error.
func (d *Directory) Delete(ctx context.Context, identifier string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, identifier)
	return nil
}

// Len returns the number of stored records
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}
