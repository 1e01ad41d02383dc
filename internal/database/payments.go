package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"riad/internal/domain"
	"riad/internal/models"
)

// CreatePaymentEntryWithLock appends a deposit or settlement after checking,
// in the same transaction, that the reservation accepts payments and that
// the amount does not exceed the outstanding balance.
func (db *DB) CreatePaymentEntryWithLock(ctx context.Context, entry *models.PaymentEntry) error {
	if !entry.CountsAsPaid() {
		return fmt.Errorf("%w: unexpected payment kind %q", domain.ErrInvalidInput, entry.Kind)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		var total int64
		err := tx.QueryRowContext(ctx, `SELECT status, total_price FROM reservations WHERE id = ?`,
			entry.ReservationID).Scan(&status, &total)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("reservation %d: %w", entry.ReservationID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load reservation in tx: %w", err)
		}
		if status != models.StatusReservation && status != models.StatusCheckedIn {
			return fmt.Errorf("%w: reservation is %s", domain.ErrInvalidState, status)
		}

		paid, err := paidAmount(ctx, tx, entry.ReservationID)
		if err != nil {
			return err
		}
		if entry.Amount > total-paid {
			return fmt.Errorf("%w: %d exceeds outstanding balance %d", domain.ErrInvalidAmount, entry.Amount, total-paid)
		}

		now := time.Now()
		if err := insertPayment(ctx, tx, entry, now); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE reservations SET version = version + 1, updated_at = ? WHERE id = ?`,
			now, entry.ReservationID)
		if err != nil {
			return fmt.Errorf("failed to bump reservation version: %w", err)
		}
		return nil
	})
}

// CreateCancellationEntry appends the refund or penalty of an already
// cancelled reservation. The amount may not exceed what was paid, and a
// reservation carries at most one such entry.
func (db *DB) CreateCancellationEntry(ctx context.Context, entry *models.PaymentEntry) error {
	if !models.IsCancellationKind(entry.Kind) {
		return fmt.Errorf("%w: unexpected cancellation kind %q", domain.ErrInvalidInput, entry.Kind)
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return insertCancellationEntry(ctx, tx, entry, time.Now())
	})
}

// insertCancellationEntry проверяет статус, сумму и единственность записи в той же транзакции
func insertCancellationEntry(ctx context.Context, tx *sql.Tx, entry *models.PaymentEntry, now time.Time) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = ?`, entry.ReservationID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reservation %d: %w", entry.ReservationID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load reservation in tx: %w", err)
	}
	if status != models.StatusCancelled {
		return fmt.Errorf("%w: reservation is %s, not cancelled", domain.ErrInvalidState, status)
	}

	var existing int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE reservation_id = ? AND kind IN (?, ?)`,
		entry.ReservationID, models.PaymentRefund, models.PaymentPenalty).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to count cancellation entries: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("%w: cancellation entry already recorded", domain.ErrInvalidState)
	}

	paid, err := paidAmount(ctx, tx, entry.ReservationID)
	if err != nil {
		return err
	}
	if entry.Amount > paid {
		return fmt.Errorf("%w: %s %d exceeds paid amount %d", domain.ErrInvalidAmount, entry.Kind, entry.Amount, paid)
	}
	return insertPayment(ctx, tx, entry, now)
}

func (db *DB) GetPaymentEntries(ctx context.Context, reservationID int64) ([]*models.PaymentEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, reservation_id, kind, amount, created_at
		FROM payments WHERE reservation_id = ? ORDER BY id ASC`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.PaymentEntry
	for rows.Next() {
		p := &models.PaymentEntry{}
		if err := rows.Scan(&p.ID, &p.ReservationID, &p.Kind, &p.Amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment entry: %w", err)
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

// GetPaidAmount sums deposits and settlements of a reservation.
func (db *DB) GetPaidAmount(ctx context.Context, reservationID int64) (int64, error) {
	return paidAmount(ctx, db.DB, reservationID)
}

// GetPaymentEntriesByDateRange lists entries of reservations intersecting [start, end].
func (db *DB) GetPaymentEntriesByDateRange(ctx context.Context, start, end time.Time) ([]*models.PaymentEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT p.id, p.reservation_id, p.kind, p.amount, p.created_at
		FROM payments p JOIN reservations r ON r.id = p.reservation_id
		WHERE r.check_in <= ? AND r.check_out >= ?
		ORDER BY p.reservation_id ASC, p.id ASC`, formatDate(end), formatDate(start))
	if err != nil {
		return nil, fmt.Errorf("failed to get payment entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.PaymentEntry
	for rows.Next() {
		p := &models.PaymentEntry{}
		if err := rows.Scan(&p.ID, &p.ReservationID, &p.Kind, &p.Amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment entry: %w", err)
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

func paidAmount(ctx context.Context, q queryRower, reservationID int64) (int64, error) {
	var paid int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE reservation_id = ? AND kind IN (?, ?)`,
		reservationID, models.PaymentDeposit, models.PaymentSettlement).Scan(&paid)
	if err != nil {
		return 0, fmt.Errorf("failed to sum payments: %w", err)
	}
	return paid, nil
}

func insertPayment(ctx context.Context, tx *sql.Tx, entry *models.PaymentEntry, now time.Time) error {
	if entry.Amount <= 0 {
		return fmt.Errorf("%w: payment amount must be positive", domain.ErrInvalidAmount)
	}
	result, err := tx.ExecContext(ctx, `INSERT INTO payments (reservation_id, kind, amount, created_at) VALUES (?, ?, ?, ?)`,
		entry.ReservationID, entry.Kind, entry.Amount, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: cancellation entry already recorded", domain.ErrInvalidState)
		}
		return fmt.Errorf("failed to insert payment entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now
	return nil
}
