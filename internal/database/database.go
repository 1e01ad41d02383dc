package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"riad/internal/models"
	"riad/internal/retry"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const memoryPath = ":memory:"

type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
	retry  retry.Policy
}

// NewDB открывает базу, применяет схему и возвращает готовое хранилище.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != memoryPath {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == memoryPath {
		// каждое новое соединение к :memory: получает свою пустую базу
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:     sqlDB,
		path:   path,
		logger: logger,
		retry: retry.Policy{
			MaxRetries:    models.DefaultLockRetries,
			InitialDelay:  20 * time.Millisecond,
			MaxDelay:      500 * time.Millisecond,
			BackoffFactor: 2,
		},
	}

	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// SetLockRetries задает число повторов при SQLITE_BUSY/SQLITE_LOCKED.
func (db *DB) SetLockRetries(n int) {
	if n < 0 {
		n = 0
	}
	db.retry.MaxRetries = n
}

// Path returns the file path the store was opened with.
func (db *DB) Path() string {
	return db.path
}

func dsn(path string) string {
	params := []string{"_txlock=immediate", "_busy_timeout=5000", "_foreign_keys=on"}
	if path != memoryPath {
		params = append(params, "_journal_mode=WAL")
	}
	return path + "?" + strings.Join(params, "&")
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS room_types (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT UNIQUE NOT NULL,
            information TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS rooms (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            number TEXT UNIQUE NOT NULL,
            type_id INTEGER NOT NULL REFERENCES room_types(id),
            capacity INTEGER NOT NULL CHECK (capacity > 0),
            price INTEGER NOT NULL CHECK (price >= 0),
            status_code TEXT NOT NULL DEFAULT 'AVL',
            view TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS customers (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER,
            name TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		// Даты заезда/выезда хранятся как YYYY-MM-DD, чтобы сравнение строк совпадало с календарным
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            customer_id INTEGER NOT NULL REFERENCES customers(id),
            room_id INTEGER NOT NULL REFERENCES rooms(id),
            check_in TEXT NOT NULL,
            check_out TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'Reservation',
            total_price INTEGER NOT NULL CHECK (total_price >= 0),
            cancel_reason TEXT NOT NULL DEFAULT '',
            created_by INTEGER NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1,
            CHECK (check_in < check_out)
        )`,
		`CREATE TABLE IF NOT EXISTS payments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            reservation_id INTEGER NOT NULL REFERENCES reservations(id),
            kind TEXT NOT NULL CHECK (kind IN ('deposit', 'settlement', 'refund', 'penalty')),
            amount INTEGER NOT NULL CHECK (amount > 0),
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_rooms_type_id ON rooms(type_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_room_check_in ON reservations(room_id, check_in)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_dates ON reservations(check_in, check_out)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_reservation_id ON payments(reservation_id)`,
		// Не более одной записи возврата/штрафа на бронь
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_cancellation
            ON payments(reservation_id) WHERE kind IN ('refund', 'penalty')`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// withTx runs fn in a write transaction and retries it while SQLite reports
// the database as busy or locked.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return db.retry.Do(ctx, isLockError, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

func isLockError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func formatDate(t time.Time) string {
	return t.Format(models.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %s: %w", s, err)
	}
	return t, nil
}
