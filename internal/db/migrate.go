package db

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/banshee-data/incident.report/internal/monitoring"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationsFS returns the embedded migrations, rooted at the directory
// holding the .sql files.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// MigrationStatus summarises the schema state.
type MigrationStatus struct {
	Current uint `json:"current_version"`
	Latest  uint `json:"latest_version"`
	Dirty   bool `json:"dirty"`
	Pending uint `json:"pending"`
}

// MigrateUp applies every pending migration. No change is not an error.
func (db *DB) MigrateUp(src fs.FS) error {
	m, err := db.newMigrate(src)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (db *DB) MigrateDown(src fs.FS) error {
	m, err := db.newMigrate(src)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateTo moves the schema up or down to version.
func (db *DB) MigrateTo(src fs.FS, version uint) error {
	m, err := db.newMigrate(src)
	if err != nil {
		return err
	}
	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

// MigrateForce sets the recorded version without running anything. It is
// only for recovering from a dirty state.
func (db *DB) MigrateForce(src fs.FS, version int) error {
	m, err := db.newMigrate(src)
	if err != nil {
		return err
	}
	if err := m.Force(version); err != nil {
		return fmt.Errorf("force migration to version %d failed: %w", version, err)
	}
	return nil
}

// MigrateVersion returns the applied version; 0 when nothing is applied.
func (db *DB) MigrateVersion(src fs.FS) (version uint, dirty bool, err error) {
	m, err := db.newMigrate(src)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Status compares the applied version with the newest in src.
func (db *DB) Status(src fs.FS) (MigrationStatus, error) {
	current, dirty, err := db.MigrateVersion(src)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	latest, err := LatestMigrationVersion(src)
	if err != nil {
		return MigrationStatus{}, err
	}
	s := MigrationStatus{Current: current, Latest: latest, Dirty: dirty}
	if latest > current {
		s.Pending = latest - current
	}
	return s, nil
}

// LatestMigrationVersion scans src for the highest NNNNNN_name.up.sql.
func LatestMigrationVersion(src fs.FS) (uint, error) {
	entries, err := fs.Glob(src, "*.up.sql")
	if err != nil {
		return 0, fmt.Errorf("failed to read migrations: %w", err)
	}
	var latest uint
	for _, name := range entries {
		var v uint
		if _, err := fmt.Sscanf(name, "%d_", &v); err == nil && v > latest {
			latest = v
		}
	}
	if latest == 0 {
		return 0, errors.New("no migration files found")
	}
	return latest, nil
}

// newMigrate binds src to this database. The instance is not closed: that
// would close the shared connection pool.
func (db *DB) newMigrate(src fs.FS) (*migrate.Migrate, error) {
	source, err := iofs.New(src, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }
