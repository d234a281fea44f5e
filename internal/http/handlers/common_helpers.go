package handlers

import (
	"context"
	"strings"
	"time"

	"kitchen-order-service/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func textPtr(v pgtype.Text) *string {
	if v.Valid {
		return &v.String
	}
	return nil
}

func int4Ptr(v pgtype.Int4) *int32 {
	if v.Valid {
		return &v.Int32
	}
	return nil
}

func int8Ptr(v pgtype.Int8) *int64 {
	if v.Valid {
		return &v.Int64
	}
	return nil
}

func timePtr(v pgtype.Timestamptz) *time.Time {
	if v.Valid {
		return &v.Time
	}
	return nil
}

func nullIfEmpty(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func nullIfEmptyPtr(v *string) *string {
	if v == nil {
		return nil
	}
	return nullIfEmpty(*v)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullDate(v time.Time) *time.Time {
	if v.IsZero() {
		return nil
	}
	return &v
}

func numericString(v pgtype.Numeric) string {
	return utils.NumericToDecimal(v).StringFixed(2)
}
