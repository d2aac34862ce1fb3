package migrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// in order! do not skip any number
var migrations = []string{
	migration_1,
	migration_2,
}

type notifierMigrator struct {
}

type NotifierMigrator interface {
	Run(ctx context.Context, db *sqlx.DB, schemaName string) error
}

func NewNotifierMigrator() NotifierMigrator {
	return &notifierMigrator{}
}

func (nm *notifierMigrator) Run(ctx context.Context, db *sqlx.DB, schemaName string) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	err = nm.createMigrationsTableIfNotExists(ctx, tx, schemaName)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	currentVersion, err := nm.getLastAppliedMigrationVersion(ctx, tx, schemaName)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for i, query := range migrations {
		version := i + 1
		if version <= currentVersion {
			continue
		}
		query = strings.ReplaceAll(query, "<SCHEMA_PLACEHOLDER>", schemaName)
		_, err = tx.ExecContext(ctx, query)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		err = nm.insertMigration(ctx, tx, schemaName, version)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (nm *notifierMigrator) createMigrationsTableIfNotExists(ctx context.Context, tx *sqlx.Tx, schemaName string) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.np_migrations(
		version int not null,
		applied_at timestamp not null default(timezone('utc', now())),
		constraint pk_np_migrations primary key (version)
	);`, schemaName)
	_, err := tx.ExecContext(ctx, query)
	return err
}

func (nm *notifierMigrator) getLastAppliedMigrationVersion(ctx context.Context, tx *sqlx.Tx, schemaName string) (int, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(version), 0) FROM %s.np_migrations;`, schemaName)
	var version int
	err := tx.QueryRowxContext(ctx, query).Scan(&version)
	return version, err
}

func (nm *notifierMigrator) insertMigration(ctx context.Context, tx *sqlx.Tx, schemaName string, version int) error {
	query := fmt.Sprintf(`INSERT INTO %s.np_migrations(version) VALUES ($1);`, schemaName)
	_, err := tx.ExecContext(ctx, query, version)
	return err
}
