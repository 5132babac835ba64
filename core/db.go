package core

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

type SQLiteDBOption struct {
	// mode can be ro | rw | rwc | memory
	Mode string
	// cache can be shared | private
	Cache string
	// JournalMode be DELETE | TRUNCATE | PERSIST | MEMORY | WAL | OFF
	JournalMode string
	// BusyTimeout in milliseconds.
	BusyTimeout int
	// TxLock can be deferred | immediate | exclusive
	TxLock string
	// MaxOpenConns caps the pool. Zero means a single connection.
	MaxOpenConns int
}

func (config *SQLiteDBOption) DSN(sb *strings.Builder) {
	if config == nil {
		return
	}

	params := make([]string, 0, 5)
	if config.Mode != "" {
		params = append(params, "mode="+config.Mode)
	}
	if config.Cache != "" {
		params = append(params, "cache="+config.Cache)
	}
	if config.JournalMode != "" {
		params = append(params, "_journal_mode="+config.JournalMode)
	}
	if config.BusyTimeout > 0 {
		params = append(params, "_busy_timeout="+strconv.Itoa(config.BusyTimeout))
	}
	if config.TxLock != "" {
		params = append(params, "_txlock="+config.TxLock)
	}
	if len(params) > 0 {
		sb.WriteString("?")
		sb.WriteString(strings.Join(params, "&"))
	}
}

type SQLiteDB struct {
	*sql.DB
	config       *SQLiteDBOption
	file         string
	migrationDir string
}

func NewSQLiteDB(file, migrationDir string, config *SQLiteDBOption) (*SQLiteDB, error) {
	db := &SQLiteDB{config: config, migrationDir: migrationDir, file: file}

	var dsn strings.Builder
	dsn.WriteString("file:")
	dsn.WriteString(db.file)
	config.DSN(&dsn)

	d, err := sql.Open("sqlite3", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	// Without WAL sqlite readers and the writer exclude each other, so a
	// single connection queues them in database/sql. In WAL mode readers run
	// beside the writer and immediate transactions queue writers on the busy
	// timeout.
	conns := 1
	if config != nil && config.MaxOpenConns > 1 {
		conns = config.MaxOpenConns
	}
	d.SetMaxOpenConns(conns)

	db.DB = d
	return db, nil
}

func (db *SQLiteDB) Migrate() error {
	return Migrate(db.DB, os.DirFS(db.migrationDir))
}

// Migrate applies every goose migration in fsys.
func Migrate(db *sql.DB, fsys fs.FS) error {
	goose.SetBaseFS(fsys)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("SetDialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("goose.Up: %w", err)
	}
	return nil
}
