package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	errs "github.com/iamwavecut/ngwarden/internal/errors"
	"github.com/iamwavecut/ngwarden/resources"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type sqlClient struct {
	db     *sqlx.DB
	driver string
	mutex  sync.RWMutex
}

// SQLiteDSN builds a data source for a database file inside dir.
func SQLiteDSN(dir, file string) string {
	return "file:" + filepath.Join(dir, file) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLClient(ctx context.Context, driver, dataSource string) (*sqlClient, error) {
	var dialect string
	switch driver {
	case DriverSQLite:
		dialect = "sqlite3"
	case DriverPostgres:
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("unsupported db driver %q: %w", driver, errs.ErrInvalidInput)
	}

	dbx, err := sqlx.ConnectContext(ctx, driver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		dbx.SetMaxOpenConns(1)
	} else {
		dbx.SetMaxOpenConns(16)
	}

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.ExecContext(ctx, dbx.DB, dialect, migrationsSource, migrate.Up)
	if err != nil {
		_ = dbx.Close()
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	if n > 0 {
		log.WithField("object", "sqlClient").Infof("applied %d migrations", n)
	}

	return &sqlClient{db: dbx, driver: driver}, nil
}

func (c *sqlClient) Close() error {
	return c.db.Close()
}

func (c *sqlClient) rebind(query string) string {
	return c.db.Rebind(query)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errs.ErrStoreFailure, err)
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
