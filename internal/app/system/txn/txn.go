// internal/app/system/txn/txn.go

// Package txn wraps multi-document mutations in a MongoDB transaction.
//
// Assignment, reassignment, and group formation each touch 2–4 documents;
// all of those writes must commit or none may. Transactions require a
// replica set (or mongos); on a standalone server Run degrades to calling
// the mutation function directly so local development still works, with a
// warning that the atomicity guarantee is gone.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Run executes fn inside a multi-document transaction. fn must perform all
// of its reads and writes through the context it is given so they join the
// session. Any error from fn aborts the transaction and is returned.
//
// If the server does not support transactions, fn runs without one.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			warnNoTxn(log, err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		warnNoTxn(log, err)
		return fn(ctx)
	}
	return err
}

func warnNoTxn(log *zap.Logger, err error) {
	if log != nil {
		log.Warn("mongo transactions unsupported; running mutation without transactional guarantees",
			zap.Error(err))
	}
}

// Server error codes that indicate transactions are unavailable:
// 20 IllegalOperation (standalone), 51 — transaction numbers rejected,
// 263 OperationNotSupportedInTransaction.
var notSupportedCodes = map[int32]bool{20: true, 51: true, 263: true}

// IsNotSupported reports whether err indicates the server cannot run
// multi-document transactions (standalone mongod, old DocumentDB, etc.).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) && notSupportedCodes[ce.Code] {
		return true
	}

	s := strings.ToLower(err.Error())
	has := func(sub string) bool { return strings.Contains(s, sub) }
	switch {
	case has("transaction") && has("replica set"):
		return true
	case has("transaction") && has("session"):
		return true
	case has("session") && has("not supported"):
		return true
	case has("illegal operation") && has("transaction"):
		return true
	}
	return false
}
