// Package redisdir is a UserDirectory that keeps each user record as a JSON
// document in Redis.
package redisdir

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-pwauth"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key the directory writes
const DefaultKeyPrefix = "pwauth:"

// Config contains configuration options for the Redis directory
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "pwauth:"
	KeyPrefix string
}

// Directory implements auth.UserDirectory using Redis
type Directory struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

var (
	_ auth.UserDirectory  = (*Directory)(nil)
	_ auth.EmailDirectory = (*Directory)(nil)
)

// New creates a new Redis backed directory.
func New(config Config) (*Directory, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required", errors.CategoryBadInput)
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}

	return &Directory{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
		now:       time.Now,
	}, nil
}

// FindByIdentifier loads the record stored for identifier
func (d *Directory) FindByIdentifier(ctx context.Context, identifier string) (*auth.UserRecord, error) {
	return d.get(ctx, d.userKey(identifier))
}

// FindByEmail resolves email through the email index, case insensitively
func (d *Directory) FindByEmail(ctx context.Context, email string) (*auth.UserRecord, error) {
	owner, err := d.emailOwner(ctx, email)
	if err != nil {
		return nil, err
	}
	if owner == "" {
		return nil, auth.ErrUserNotFound
	}
	return d.get(ctx, d.userKey(owner))
}

func (d *Directory) emailOwner(ctx context.Context, email string) (string, error) {
	owner, err := d.client.Get(ctx, d.emailKey(email)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to read email index")
	}
	return owner, nil
}

func (d *Directory) get(ctx context.Context, key string) (*auth.UserRecord, error) {
	raw, err := d.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, auth.ErrUserNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to get user record").
			WithMetadata(map[string]any{"key": key})
	}

	var record auth.UserRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to unmarshal user record").
			WithMetadata(map[string]any{"key": key})
	}

	return &record, nil
}

// Save stores record and refreshes its email index entry
func (d *Directory) Save(ctx context.Context, record auth.UserRecord) (*auth.UserRecord, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	existing, err := d.get(ctx, d.userKey(record.Identifier))
	if err != nil && !auth.IsNotFound(err) {
		return nil, err
	}

	now := d.now().UTC()
	if existing != nil {
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

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to marshal user record")
	}

	staleEmail := ""
	if existing != nil && existing.Email != "" && !strings.EqualFold(existing.Email, record.Email) {
		owner, err := d.emailOwner(ctx, existing.Email)
		if err != nil {
			return nil, err
		}
		if owner == record.Identifier {
			staleEmail = existing.Email
		}
	}

	_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, d.userKey(record.Identifier), payload, 0)
		if staleEmail != "" {
			pipe.Del(ctx, d.emailKey(staleEmail))
		}
		if record.Email != "" {
			pipe.Set(ctx, d.emailKey(record.Email), record.Identifier, 0)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to store user record")
	}

	return &record, nil
}

// SetActive flips the active flag for identifier
func (d *Directory) SetActive(ctx context.Context, identifier string, active bool) error {
	record, err := d.get(ctx, d.userKey(identifier))
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
	record, err := d.get(ctx, d.userKey(identifier))
	if err != nil {
		if auth.IsNotFound(err) {
			return nil
		}
		return err
	}

	keys := []string{d.userKey(identifier)}
	if record.Email != "" {
		owner, err := d.emailOwner(ctx, record.Email)
		if err != nil {
			return err
		}
		if owner == identifier {
			keys = append(keys, d.emailKey(record.Email))
		}
	}
	return d.client.Del(ctx, keys...).Err()
}

// Ping checks the server answers
func (d *Directory) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *Directory) userKey(identifier string) string {
	return d.keyPrefix + "user:" + identifier
}

func (d *Directory) emailKey(email string) string {
	return d.keyPrefix + "email:" + strings.ToLower(email)
}
