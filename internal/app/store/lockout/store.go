// internal/app/store/lockout/store.go
package lockout

import (
	"context"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/system/authutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Attempt tracks failed logins for one email inside a counting window.
type Attempt struct {
	Email        string     `bson:"_id"`
	AttemptCount int        `bson:"attempt_count"`
	WindowStart  time.Time  `bson:"window_start"`
	LockedUntil  *time.Time `bson:"locked_until,omitempty"`
	LastAttempt  time.Time  `bson:"last_attempt"` // TTL anchor
}

// Store locks an email out after too many failed logins, independently of
// the per-IP limiter, so a distributed guess against one account is still
// bounded.
type Store struct {
	c           *mongo.Collection
	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time
}

// New creates a lockout Store.
func New(db *mongo.Database, maxAttempts int, window, lockout time.Duration) *Store {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Store{
		c:           db.Collection("login_lockouts"),
		maxAttempts: maxAttempts,
		window:      window,
		lockout:     lockout,
		now:         time.Now,
	}
}

// LockedUntil returns the lockout expiry for email, or nil when a login may
// be attempted. Lookup failures fail open.
func (s *Store) LockedUntil(ctx context.Context, email string) *time.Time {
	var a Attempt
	if err := s.c.FindOne(ctx, bson.M{"_id": authutil.NormalizeEmail(email)}).Decode(&a); err != nil {
		return nil
	}
	if a.LockedUntil != nil && s.now().Before(*a.LockedUntil) {
		return a.LockedUntil
	}
	return nil
}

// RecordFailure counts one failed login and reports whether it triggered a lockout.
func (s *Store) RecordFailure(ctx context.Context, email string) (bool, error) {
	email = authutil.NormalizeEmail(email)
	now := s.now()

	var a Attempt
	err := s.c.FindOne(ctx, bson.M{"_id": email}).Decode(&a)
	if err != nil && err != mongo.ErrNoDocuments {
		return false, err
	}
	if err == mongo.ErrNoDocuments || now.After(a.WindowStart.Add(s.window)) {
		a = Attempt{Email: email, WindowStart: now}
	}
	a.AttemptCount++
	a.LastAttempt = now
	a.LockedUntil = nil

	locked := a.AttemptCount >= s.maxAttempts
	if locked {
		until := now.Add(s.lockout)
		a.LockedUntil = &until
	}

	_, err = s.c.ReplaceOne(ctx, bson.M{"_id": email}, a, options.Replace().SetUpsert(true))
	return locked, err
}

// Clear forgets failures for email after a successful login.
func (s *Store) Clear(ctx context.Context, email string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": authutil.NormalizeEmail(email)})
	return err
}
