package db

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	// Need this import for sqlx
	_ "github.com/lib/pq"
)

type DbConnector interface {
	CreateTransactionConnector() (DbConnector, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
	Commit() error
	Rollback() error
	Ping() error
}

type dbConnector struct {
	pg Postgres
	db *sqlx.DB
	tx *sqlx.Tx
}

func NewDbConnector(pg Postgres) DbConnector {
	return &dbConnector{
		pg: pg,
	}
}

func (c *dbConnector) CreateTransactionConnector() (DbConnector, error) {
	dbConn, err := c.pg.GetDbConnection()
	if err != nil {
		log.Error().Err(err).Msg(MsgDbConnectionNotAvailable)
		return nil, ErrDbConnectionNotAvailable
	}

	tx, err := dbConn.Beginx()
	if err != nil {
		log.Error().Err(err).Msg(MsgBeginTransactionFailed)
		return nil, ErrBeginTransactionFailed
	}

	return &dbConnector{pg: c.pg, db: dbConn, tx: tx}, nil
}

func (c *dbConnector) connection() (*sqlx.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	return c.pg.GetDbConnection()
}

func (c *dbConnector) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if c.tx != nil {
		return c.tx.ExecContext(ctx, query, args...)
	}
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	return conn.ExecContext(ctx, query, args...)
}

func (c *dbConnector) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	if c.tx != nil {
		return c.tx.NamedExecContext(ctx, query, arg)
	}
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	return conn.NamedExecContext(ctx, query, arg)
}

func (c *dbConnector) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	if c.tx != nil {
		return c.tx.QueryxContext(ctx, query, args...)
	}
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	return conn.QueryxContext(ctx, query, args...)
}

func (c *dbConnector) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	if c.tx != nil {
		return c.tx.QueryRowxContext(ctx, query, args...)
	}
	conn, err := c.connection()
	if err != nil {
		return nil
	}
	return conn.QueryRowxContext(ctx, query, args...)
}

func (c *dbConnector) Rebind(query string) string {
	if c.tx != nil {
		return c.tx.Rebind(query)
	}
	conn, err := c.connection()
	if err != nil {
		return query
	}
	return conn.Rebind(query)
}

func (c *dbConnector) Commit() error {
	if c.tx == nil {
		return nil
	}
	if err := c.tx.Commit(); err != nil {
		log.Error().Err(err).Msg(MsgCommitTransactionFailed)
		return ErrCommitTransactionFailed
	}
	return nil
}

func (c *dbConnector) Rollback() error {
	if c.tx == nil {
		return nil
	}
	if err := c.tx.Rollback(); err != nil {
		log.Error().Err(err).Msg(MsgRollbackTransactionFailed)
		return ErrRollbackTransactionFailed
	}
	return nil
}

func (c *dbConnector) Ping() error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	return conn.Ping()
}
