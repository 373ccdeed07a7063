// Package repository provides data access interfaces and implementations
// for the Paper Digest Service.
//
// # Overview
//
// This package defines the PaperRepository interface and its PostgreSQL
// implementation, following the repository pattern to abstract data
// persistence from the generation pipeline and HTTP handlers.
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple
// goroutines. The underlying pgxpool handles connection pooling and
// synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrInvalidInput: Invalid parameters provided
//   - domain.ErrStoreUnavailable: Driver, network, or server failure
//
// # Usage Pattern
//
// Repositories are typically created at application startup and passed to services:
//
//	db, _ := database.New(ctx, cfg, logger)
//	paperRepo := repository.NewPgPaperRepository(db)
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scholardigest/paper-digest-service/internal/database"
	"github.com/scholardigest/paper-digest-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows repositories to work with both direct pool connections and
// transactions, and makes testing with pgxmock straightforward:
//
//	err := database.RunInTx(ctx, db, func(tx pgx.Tx) error {
//	    txRepo := repository.NewPgPaperRepository(tx)
//	    _, err := txRepo.Upsert(ctx, paper)
//	    return err
//	})
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

// storeErr maps a database error to the domain error taxonomy. Integrity
// violations (SQLSTATE class 23) carry enough context to surface as-is;
// everything else means the store could not serve the request.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
