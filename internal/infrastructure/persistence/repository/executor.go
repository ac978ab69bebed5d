package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/infrastructure/persistence/sqlite"
)

// getExecutor returns the transaction carried by ctx, or db when there is none
func getExecutor(ctx context.Context, db *sql.DB) sqlite.Executor {
	return sqlite.GetExecutor(ctx, db)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
