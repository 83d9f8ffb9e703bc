package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err into structured log fields: message, typed code,
// wrap chain and, for postgres failures, SQLSTATE with the violated
// constraint.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
		fields["error_retryable"] = MetadataFor(typed.Code()).Retryable
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	if pg := postgresDetail(err); pg != nil {
		fields["pg_code"] = pg.code
		if pg.constraint != "" {
			fields["pg_constraint"] = pg.constraint
		}
		if pg.table != "" {
			fields["pg_table"] = pg.table
		}
		if pg.detail != "" {
			fields["pg_detail"] = pg.detail
		}
	}
	return fields
}

type pgDetail struct {
	code, constraint, table, detail string
}

// postgresDetail understands both the pgx driver gorm uses and lib/pq.
func postgresDetail(err error) *pgDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &pgDetail{code: pgxErr.Code, constraint: pgxErr.ConstraintName, table: pgxErr.TableName, detail: pgxErr.Detail}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &pgDetail{code: string(pqErr.Code), constraint: pqErr.Constraint, table: pqErr.Table, detail: pqErr.Detail}
	}
	return nil
}
