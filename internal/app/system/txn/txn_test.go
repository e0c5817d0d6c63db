package txn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dalemusser/tourdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestIsNotSupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"generic", errors.New("boom"), false},
		{"code 20", mongo.CommandError{Code: 20}, true},
		{"code 51", mongo.CommandError{Code: 51}, true},
		{"wrapped code 20", fmt.Errorf("insert: %w", mongo.CommandError{Code: 20}), true},
		{"other code", mongo.CommandError{Code: 11000, Message: "E11000 duplicate key"}, false},
		{"standalone message", errors.New("Transaction numbers are only allowed on a replica set member or mongos"), true},
		{"single keyword", errors.New("session expired"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotSupported(tt.err); got != tt.want {
				t.Errorf("IsNotSupported(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRun_CommitsBothWrites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := Run(ctx, db, zap.NewNop(), func(ctx context.Context) error {
		if _, err := db.Collection("tours").InsertOne(ctx, bson.M{"slug": "a"}); err != nil {
			return err
		}
		_, err := db.Collection("audit_logs").InsertOne(ctx, bson.M{"action": "CREATE"})
		return err
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, name := range []string{"tours", "audit_logs"} {
		n, err := db.Collection(name).CountDocuments(ctx, bson.M{})
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("%s count = %d, want 1", name, n)
		}
	}
}

func TestRun_ReturnsFnError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	want := errors.New("audit failed")
	err := Run(ctx, db, nil, func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("Run() error = %v, want %v", err, want)
	}
}
