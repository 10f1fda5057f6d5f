package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrorDump flattens an error chain into log fields.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Retryable  bool     `json:"retryable,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	// UpstreamStatus is the backend HTTP status when the chain carries one.
	UpstreamStatus int `json:"upstream_status,omitempty"`

	DB *DBDump `json:"db,omitempty"`
}

// DBDump holds driver details for SQL failures.
type DBDump struct {
	Driver     string `json:"driver"`
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

type upstreamStatuser interface {
	UpstreamStatus() int
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	var upstream upstreamStatuser
	if errors.As(err, &upstream) {
		d.UpstreamStatus = upstream.UpstreamStatus()
	}
	d.DB = dbDump(err)
	return d
}

func dbDump(err error) *DBDump {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return &DBDump{
			Driver:  "sqlite",
			Code:    sqliteErr.ExtendedCode.Error(),
			Message: sqliteErr.Error(),
		}
	}
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &DBDump{
			Driver:     "pgx",
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &DBDump{
			Driver:     "pq",
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
