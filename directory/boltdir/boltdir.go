// Package boltdir is a UserDirectory stored in a single bbolt file.
package boltdir

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-pwauth"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	bucketUsers  = []byte("users")
	bucketEmails = []byte("emails")
)

// DefaultOpenTimeout bounds waiting for the file lock held by another process
const DefaultOpenTimeout = time.Second

// Directory implements auth.UserDirectory using bbolt
type Directory struct {
	db  *bbolt.DB
	now func() time.Time
}

var (
	_ auth.UserDirectory  = (*Directory)(nil)
	_ auth.EmailDirectory = (*Directory)(nil)
)

// Open opens or creates the database at path
func Open(path string) (*Directory, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: DefaultOpenTimeout})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open boltdb").
			WithMetadata(map[string]any{"path": path})
	}

	d := &Directory{db: db, now: time.Now}
	if err := d.initBuckets(); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

// Close closes the database
func (d *Directory) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Directory) initBuckets() error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketEmails} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to create bucket").
					WithMetadata(map[string]any{"bucket": string(name)})
			}
		}
		return nil
	})
}

// FindByIdentifier loads the record for identifier
func (d *Directory) FindByIdentifier(ctx context.Context, identifier string) (*auth.UserRecord, error) {
	return d.find(ctx, func(tx *bbolt.Tx) []byte {
		return tx.Bucket(bucketUsers).Get([]byte(identifier))
	})
}

// FindByEmail resolves email through the emails bucket, case insensitively
func (d *Directory) FindByEmail(ctx context.Context, email string) (*auth.UserRecord, error) {
	return d.find(ctx, func(tx *bbolt.Tx) []byte {
		owner := tx.Bucket(bucketEmails).Get(emailKey(email))
		if owner == nil {
			return nil
		}
		return tx.Bucket(bucketUsers).Get(owner)
	})
}

func (d *Directory) find(ctx context.Context, get func(tx *bbolt.Tx) []byte) (*auth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record *auth.UserRecord
	err := d.db.View(func(tx *bbolt.Tx) error {
		data := get(tx)
		if data == nil {
			return auth.ErrUserNotFound
		}

		record = &auth.UserRecord{}
		if err := json.Unmarshal(data, record); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to unmarshal user record")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Save inserts or replaces the record keyed by identifier
func (d *Directory) Save(ctx context.Context, record auth.UserRecord) (*auth.UserRecord, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	err := d.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		emails := tx.Bucket(bucketEmails)
		key := []byte(record.Identifier)

		if data := users.Get(key); data != nil {
			var existing auth.UserRecord
			if err := json.Unmarshal(data, &existing); err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to unmarshal user record")
			}
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			if existing.Email != "" && !strings.EqualFold(existing.Email, record.Email) {
				if err := deleteOwnedEmail(emails, existing.Email, key); err != nil {
					return err
				}
			}
		}

		now := d.now().UTC()
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
		if record.CreatedAt == nil {
			record.CreatedAt = &now
		}
		record.UpdatedAt = &now

		payload, err := json.Marshal(record)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to marshal user record")
		}
		if err := users.Put(key, payload); err != nil {
			return err
		}
		if record.Email != "" {
			return emails.Put(emailKey(record.Email), key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// SetActive flips the active flag for identifier
func (d *Directory) SetActive(ctx context.Context, identifier string, active bool) error {
	record, err := d.FindByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	record.Active = active
	_, err = d.Save(ctx, *record)
	return err
}

// Delete removes identifier and its email index entry. The index entry is
// left alone when it already belongs to another user.
func (d *Directory) Delete(ctx context.Context, identifier string) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		key := []byte(identifier)
		data := users.Get(key)
		if data == nil {
			return nil
		}
		var existing auth.UserRecord
		if err := json.Unmarshal(data, &existing); err == nil && existing.Email != "" {
			if err := deleteOwnedEmail(tx.Bucket(bucketEmails), existing.Email, key); err != nil {
				return err
			}
		}
		return users.Delete(key)
	})
}

func deleteOwnedEmail(emails *bbolt.Bucket, email string, owner []byte) error {
	if !bytes.Equal(emails.Get(emailKey(email)), owner) {
		return nil
	}
	return emails.Delete(emailKey(email))
}

func emailKey(email string) []byte {
	return []byte(strings.ToLower(email))
}
