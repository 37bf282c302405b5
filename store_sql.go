package memocache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/goforj/memocache/cachecore"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// sqlMaxKeyLen matches the MySQL key column, VARBINARY(767).
const sqlMaxKeyLen = 767

// sqlStore keeps entries in a single table (k, v, ea) where ea is the unix
// millisecond expiry and 0 means forever.
type sqlStore struct {
	db             *sql.DB
	table          string
	driverName     string
	prefix         string
	now            Clock
	getStmt        *sql.Stmt
	upsertStmt     *sql.Stmt
	deleteLiveStmt *sql.Stmt
	deleteStmt     *sql.Stmt
}

var sqlIdentPartRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func newSQLStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	if cfg.SQLDriverName == "" || cfg.SQLDSN == "" {
		return nil, errors.New("sql driver requires driver name and dsn")
	}
	table := cfg.SQLTable
	if table == "" {
		table = defaultSQLTable
	}
	if err := validateSQLTableName(table); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.SQLDriverName, cfg.SQLDSN)
	if err != nil {
		return nil, fmt.Errorf("open sql store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sql store: %w", err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = cachecore.SystemClock
	}
	s := &sqlStore{
		db:         db,
		table:      table,
		driverName: cfg.SQLDriverName,
		prefix:     cfg.Prefix,
		now:        clock,
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.prepareStatements(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) Driver() Driver { return DriverSQL }

func (s *sqlStore) ensureSchema(ctx context.Context) error {
	var stmt string
	switch s.driverName {
	case "postgres", "pgx":
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BYTEA NOT NULL,
			ea BIGINT NOT NULL
		);`, s.table)
	case "mysql":
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k VARBINARY(767) PRIMARY KEY,
			v LONGBLOB NOT NULL,
			ea BIGINT NOT NULL
		) ENGINE=InnoDB;`, s.table)
	default: // sqlite
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BLOB NOT NULL,
			ea INTEGER NOT NULL
		);`, s.table)
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create sql table %q: %w", s.table, err)
	}
	return nil
}

func (s *sqlStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		_, err := s.Delete(ctx, key)
		return err
	}
	return s.upsert(ctx, "set", key, cachecore.NewPayload(value, ttl, s.now()))
}

func (s *sqlStore) Forever(ctx context.Context, key string, value []byte) error {
	return s.upsert(ctx, "forever", key, cachecore.ForeverPayload(value))
}

func (s *sqlStore) upsert(ctx context.Context, op, key string, payload cachecore.Payload) error {
	value := payload.Data
	if value == nil {
		value = []byte{}
	}
	exp := payload.ExpiresAtMillis()
	_, err := s.upsertStmt.ExecContext(ctx, s.cacheKey(key), value, exp, value, exp)
	return s.wrap(op, key, err)
}

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.read(ctx, "get", key)
}

func (s *sqlStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.read(ctx, "has", key)
	return ok, err
}

func (s *sqlStore) read(ctx context.Context, op, key string) ([]byte, bool, error) {
	var v []byte
	var exp int64
	err := s.getStmt.QueryRowContext(ctx, s.cacheKey(key)).Scan(&v, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap(op, key, err)
	}
	if cachecore.ExpiredAtMillis(exp, s.now()) {
		_, _ = s.deleteStmt.ExecContext(ctx, s.cacheKey(key))
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

// Delete removes a live row first so the affected count tells whether a live
// entry existed, then clears any expired leftover.
func (s *sqlStore) Delete(ctx context.Context, key string) (bool, error) {
	cacheKey := s.cacheKey(key)
	res, err := s.deleteLiveStmt.ExecContext(ctx, cacheKey, s.now().UnixMilli())
	if err != nil {
		return false, s.wrap("delete", key, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, s.wrap("delete", key, err)
	}
	if rows > 0 {
		return true, nil
	}
	if _, err := s.deleteStmt.ExecContext(ctx, cacheKey); err != nil {
		return false, s.wrap("delete", key, err)
	}
	return false, nil
}

// cacheKey keeps keys within the MySQL VARBINARY(767) primary key on every
// dialect so a table can move between them.
func (s *sqlStore) cacheKey(key string) string {
	return boundedKey(s.prefix, key, sqlMaxKeyLen)
}

func (s *sqlStore) wrap(op, key string, err error) error {
	return cachecore.WrapStoreError(DriverSQL, op, key, err)
}

func (s *sqlStore) upsertSQL() string {
	// Placeholders must be positional for postgres/pgx.
	p1, p2, p3, p4, p5 := s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5)
	switch s.driverName {
	case "postgres", "pgx":
		return fmt.Sprintf("INSERT INTO %s (k, v, ea) VALUES (%s, %s, %s) ON CONFLICT (k) DO UPDATE SET v = %s, ea = %s", s.table, p1, p2, p3, p4, p5)
	case "mysql":
		return fmt.Sprintf("INSERT INTO %s (k, v, ea) VALUES (%s, %s, %s) ON DUPLICATE KEY UPDATE v = %s, ea = %s", s.table, p1, p2, p3, p4, p5)
	default: // sqlite
		return fmt.Sprintf("INSERT INTO %s (k, v, ea) VALUES (%s, %s, %s) ON CONFLICT(k) DO UPDATE SET v = %s, ea = %s", s.table, p1, p2, p3, p4, p5)
	}
}

func (s *sqlStore) getSQL() string {
	return fmt.Sprintf("SELECT v, ea FROM %s WHERE k = %s", s.table, s.ph(1))
}

func (s *sqlStore) deleteLiveSQL() string {
	return fmt.Sprintf("DELETE FROM %s WHERE k = %s AND (ea = 0 OR ea > %s)", s.table, s.ph(1), s.ph(2))
}

func (s *sqlStore) deleteSQL() string {
	return fmt.Sprintf("DELETE FROM %s WHERE k = %s", s.table, s.ph(1))
}

func (s *sqlStore) prepareStatements(ctx context.Context) error {
	var err error
	if s.getStmt, err = s.db.PrepareContext(ctx, s.getSQL()); err != nil {
		return fmt.Errorf("prepare get: %w", err)
	}
	if s.upsertStmt, err = s.db.PrepareContext(ctx, s.upsertSQL()); err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	if s.deleteLiveStmt, err = s.db.PrepareContext(ctx, s.deleteLiveSQL()); err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	if s.deleteStmt, err = s.db.PrepareContext(ctx, s.deleteSQL()); err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	return nil
}

func (s *sqlStore) ph(i int) string {
	if s.driverName == "postgres" || s.driverName == "pgx" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func validateSQLTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("sql table name is required")
	}
	for _, part := range strings.Split(name, ".") {
		if !sqlIdentPartRE.MatchString(part) {
			return fmt.Errorf("invalid sql table name %q", name)
		}
	}
	return nil
}
