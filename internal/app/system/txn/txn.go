// Package txn runs an entity write and its audit record as one unit.
//
// Usage:
//
//	err := txn.Run(ctx, db, log, func(ctx context.Context) error {
//	    if err := tours.Insert(ctx, &t); err != nil {
//	        return err
//	    }
//	    return recorder.Record(ctx, r, entry)
//	})
//
// On a replica set both writes commit or neither does. A standalone server
// cannot run multi-document transactions; there the writes run in sequence
// and an audit failure leaves the entity committed. The audit-reconcile job
// repairs missing CREATE records in that case.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Func receives a mongo.SessionContext inside a transaction, or the caller's
// context when transactions are unavailable. All writes must use it.
type Func func(ctx context.Context) error

// Run executes fn within a MongoDB transaction if possible, falling back to
// plain sequential execution when the deployment does not support one.
// log may be nil.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn Func) error {
	session, err := db.Client().StartSession()
	if err != nil {
		if log != nil {
			log.Warn("failed to start session, running without transaction",
				zap.Error(err))
		}
		return fn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil {
		if IsNotSupported(err) {
			if log != nil {
				log.Debug("transactions not supported, running without transaction",
					zap.Error(err))
			}
			return fn(ctx)
		}
		return err
	}
	return nil
}

// IsNotSupported checks if an error indicates that transactions are not supported.
//
// Known error codes:
//   - 20: "Transaction numbers are only allowed on a replica set member or mongos"
//   - 51: IllegalOperation
//   - 263: "Cannot run 'aggregate' in a multi-document transaction"
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 20, 51, 263:
			return true
		}
	}

	// Message fallback for driver and server variants; two keywords must
	// match so unrelated errors mentioning "session" are not swallowed.
	errStr := strings.ToLower(err.Error())
	keywords := []string{
		"transaction",
		"replica set",
		"session",
		"not supported",
		"illegal operation",
	}
	n := 0
	for _, kw := range keywords {
		if strings.Contains(errStr, kw) {
			n++
		}
	}
	return n >= 2
}
