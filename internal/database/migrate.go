// Package database はセッションストア用のPostgreSQL接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrator は applyMigrations が必要とする *migrate.Migrate の操作。
type migrator interface {
	Up() error
	Version() (version uint, dirty bool, err error)
}

// NewMigrator はsessionsテーブル用のmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用し、適用後のバージョンをログに記録する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(databaseURL string, logger *slog.Logger) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	return applyMigrations(m, logger)
}

func applyMigrations(m migrator, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	// 1. 適用前のバージョン
	before, _, err := currentVersion(m)
	if err != nil {
		return err
	}

	// 2. Up
	changed := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		changed = false
	}

	// 3. 適用後のバージョン
	after, dirty, err := currentVersion(m)
	if err != nil {
		return err
	}

	logger.Info("database migrations applied",
		slog.Uint64("from_version", uint64(before)),
		slog.Uint64("version", uint64(after)),
		slog.Bool("changed", changed),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// currentVersion は適用済みバージョンを返す。未適用の場合は0を返す。
func currentVersion(m migrator) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return v, dirty, nil
}
