package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"

	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

// Store keeps every collection as a table of JSON documents inside a single
// SQLite database file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Backend = (*Store)(nil)

// driverName is go-sqlite3 with the store's SQL functions registered on
// every connection.
const driverName = "sqlite3_documents"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("go_fold", foldText, true)
		},
	})
}

// foldText applies full Unicode case folding; SQLite's LOWER only folds
// ASCII letters.
func foldText(s string) string {
	return cases.Fold().String(s)
}

// Open initializes a new SQLite store. Collections are created by Migrate.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open(driverName, fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	return &Store{db: conn, logger: logger}, nil
}

// Close releases the database resources.
func (s *Store) Close(context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Collection returns the table-backed collection called name.
func (s *Store) Collection(name string) storage.Collection {
	return &collection{db: s.db, table: name}
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Migrate creates one table per collection plus expression indexes over the
// JSON fields each spec lists.
func (s *Store) Migrate(ctx context.Context, specs []storage.CollectionSpec) error {
	var stmts []string
	for _, spec := range specs {
		if err := storage.ValidateField(spec.Name); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
            id TEXT PRIMARY KEY,
            data TEXT NOT NULL
        );`, spec.Name))

		for _, idx := range spec.Indexes {
			stmt, err := indexStatement(spec.Name, idx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			stmts = append(stmts, stmt)
		}
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	s.logger.Debug("sqlite migrations applied", slog.Int("collections", len(specs)))
	return nil
}

func indexStatement(table string, idx storage.Index) (string, error) {
	if len(idx.Fields) == 0 {
		return "", fmt.Errorf("index on %s without fields", table)
	}
	exprs := make([]string, 0, len(idx.Fields))
	for _, f := range idx.Fields {
		if err := storage.ValidateField(f); err != nil {
			return "", err
		}
		exprs = append(exprs, fieldExpr(f))
	}
	name := "idx_" + table + "_" + strings.ReplaceAll(strings.Join(idx.Fields, "_"), ".", "_")
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
		name = "u" + name
	}
	where := ""
	if idx.Sparse != "" {
		if err := storage.ValidateField(idx.Sparse); err != nil {
			return "", err
		}
		where = " WHERE " + fieldExpr(idx.Sparse) + " IS NOT NULL"
	}
	return fmt.Sprintf(`CREATE %sINDEX IF NOT EXISTS %q ON %q(%s)%s;`, unique, name, table, strings.Join(exprs, ", "), where), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
