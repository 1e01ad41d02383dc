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

const reservationColumns = `id, customer_id, room_id, check_in, check_out, status, total_price,
	cancel_reason, created_by, created_at, updated_at, version`

// Бронь R конфликтует с [a, b), если она не отменена и R.check_in < b и R.check_out > a
const conflictCondition = `room_id = ? AND status != ? AND check_in < ? AND check_out > ?`

// IsRoomFree reports whether no active reservation other than excludeID
// overlaps dr. Pass 0 to consider every reservation.
func (db *DB) IsRoomFree(ctx context.Context, roomID int64, dr models.DateRange, excludeID int64) (bool, error) {
	count, err := countConflicts(ctx, db.DB, roomID, dr, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check availability: %w", err)
	}
	return count == 0, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countConflicts(ctx context.Context, q queryRower, roomID int64, dr models.DateRange, excludeID int64) (int, error) {
	query := `SELECT COUNT(*) FROM reservations WHERE ` + conflictCondition + ` AND id != ?`
	var count int
	err := q.QueryRowContext(ctx, query, roomID, models.StatusCancelled,
		formatDate(dr.CheckOut), formatDate(dr.CheckIn), excludeID).Scan(&count)
	return count, err
}

// CreateReservationWithLock re-checks availability and inserts the reservation
// together with its deposit entry inside one immediate transaction.
func (db *DB) CreateReservationWithLock(ctx context.Context, res *models.Reservation, deposit *models.PaymentEntry) error {
	var (
		id  int64
		now time.Time
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		// 1. Check availability inside transaction
		count, err := countConflicts(ctx, tx, res.RoomID, res.Range(), 0)
		if err != nil {
			return fmt.Errorf("failed to check availability in tx: %w", err)
		}
		if count > 0 {
			return domain.ErrConflict
		}

		// 2. Create reservation
		now = time.Now()
		result, err := tx.ExecContext(ctx, `INSERT INTO reservations (
				customer_id, room_id, check_in, check_out, status, total_price,
				cancel_reason, created_by, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.CustomerID,
			res.RoomID,
			formatDate(res.CheckIn),
			formatDate(res.CheckOut),
			models.StatusReservation,
			res.TotalPrice,
			"",
			res.CreatedBy,
			now,
			now,
			1,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reservation in tx: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id in tx: %w", err)
		}

		// 3. Deposit
		if deposit != nil && deposit.Amount > 0 {
			deposit.ReservationID = id
			if err := insertPayment(ctx, tx, deposit, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	res.ID = id
	res.Status = models.StatusReservation
	res.CreatedAt = now
	res.UpdatedAt = now
	res.Version = 1
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return res, nil
}

func (db *DB) GetRoomReservations(ctx context.Context, roomID int64) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE room_id = ? ORDER BY check_in ASC, id ASC`
	return db.queryReservations(ctx, query, roomID)
}

// GetReservationsByDateRange returns reservations whose stay intersects [start, end].
func (db *DB) GetReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE check_in <= ? AND check_out >= ? ORDER BY check_in ASC, id ASC`
	return db.queryReservations(ctx, query, formatDate(end), formatDate(start))
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...any) ([]*models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var list []*models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

func (db *DB) UpdateReservationStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE reservations SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	return db.retry.Do(ctx, isLockError, func() error {
		result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
		if err != nil {
			return fmt.Errorf("failed to update reservation status: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return domain.ErrConcurrentModification
		}
		return nil
	})
}

// CancelReservation marks the reservation cancelled and appends the optional
// refund/penalty entry in the same transaction.
func (db *DB) CancelReservation(ctx context.Context, id, fromVersion int64, reason string, entry *models.PaymentEntry) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		result, err := tx.ExecContext(ctx, `UPDATE reservations
			SET status = ?, cancel_reason = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ? AND status IN (?, ?)`,
			models.StatusCancelled, reason, now, id, fromVersion,
			models.StatusReservation, models.StatusCheckedIn)
		if err != nil {
			return fmt.Errorf("failed to cancel reservation: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return domain.ErrConcurrentModification
		}

		if entry != nil {
			entry.ReservationID = id
			if err := insertCancellationEntry(ctx, tx, entry, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanReservation(s scanner) (*models.Reservation, error) {
	res := &models.Reservation{}
	var checkIn, checkOut string
	err := s.Scan(&res.ID, &res.CustomerID, &res.RoomID, &checkIn, &checkOut, &res.Status,
		&res.TotalPrice, &res.CancelReason, &res.CreatedBy, &res.CreatedAt, &res.UpdatedAt, &res.Version)
	if err != nil {
		return nil, err
	}
	if res.CheckIn, err = parseDate(checkIn); err != nil {
		return nil, err
	}
	if res.CheckOut, err = parseDate(checkOut); err != nil {
		return nil, err
	}
	return res, nil
}
