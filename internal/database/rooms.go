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

const roomColumns = `r.id, r.number, r.type_id, t.name, r.capacity, r.price, r.status_code, r.view, r.created_at, r.updated_at`

// SyncCatalog upserts room types and rooms by their natural keys (type name,
// room number) and fills in the generated ids.
func (db *DB) SyncCatalog(ctx context.Context, types []*models.RoomType, rooms []*models.Room) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		typeIDs := make(map[string]int64, len(types))

		for _, rt := range types {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO room_types (name, information, created_at, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(name) DO UPDATE SET information = excluded.information, updated_at = excluded.updated_at`,
				rt.Name, rt.Information, now, now)
			if err != nil {
				return fmt.Errorf("failed to upsert room type %s: %w", rt.Name, err)
			}
			if err := tx.QueryRowContext(ctx, `SELECT id FROM room_types WHERE name = ?`, rt.Name).Scan(&rt.ID); err != nil {
				return fmt.Errorf("failed to read room type id %s: %w", rt.Name, err)
			}
			typeIDs[rt.Name] = rt.ID
		}

		for _, room := range rooms {
			if room.TypeID == 0 {
				id, ok := typeIDs[room.TypeName]
				if !ok {
					return fmt.Errorf("%w: room %s has unknown type %q", domain.ErrInvalidInput, room.Number, room.TypeName)
				}
				room.TypeID = id
			}
			if room.StatusCode == "" {
				room.StatusCode = models.RoomStatusAvailable
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO rooms (number, type_id, capacity, price, status_code, view, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(number) DO UPDATE SET
					type_id = excluded.type_id,
					capacity = excluded.capacity,
					price = excluded.price,
					status_code = excluded.status_code,
					view = excluded.view,
					updated_at = excluded.updated_at`,
				room.Number, room.TypeID, room.Capacity, room.Price, room.StatusCode, room.View, now, now)
			if err != nil {
				return fmt.Errorf("failed to upsert room %s: %w", room.Number, err)
			}
			if err := tx.QueryRowContext(ctx, `SELECT id FROM rooms WHERE number = ?`, room.Number).Scan(&room.ID); err != nil {
				return fmt.Errorf("failed to read room id %s: %w", room.Number, err)
			}
		}
		return nil
	})
}

func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms r JOIN room_types t ON t.id = r.type_id WHERE r.id = ?`
	room, err := scanRoom(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (db *DB) GetRooms(ctx context.Context) ([]*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms r JOIN room_types t ON t.id = r.type_id ORDER BY r.number`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (db *DB) GetRoomTypes(ctx context.Context) ([]*models.RoomType, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, information, created_at, updated_at FROM room_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get room types: %w", err)
	}
	defer rows.Close()

	var types []*models.RoomType
	for rows.Next() {
		rt := &models.RoomType{}
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.Information, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room type: %w", err)
		}
		types = append(types, rt)
	}
	return types, rows.Err()
}

// UpdateRoomStatus меняет статус уборки/обслуживания номера.
func (db *DB) UpdateRoomStatus(ctx context.Context, id int64, status string) error {
	if !models.ValidRoomStatus(status) {
		return fmt.Errorf("%w: unknown room status %q", domain.ErrInvalidInput, status)
	}
	result, err := db.ExecContext(ctx, `UPDATE rooms SET status_code = ?, updated_at = ? WHERE id = ?`, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update room status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("room %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (*models.Room, error) {
	room := &models.Room{}
	err := s.Scan(&room.ID, &room.Number, &room.TypeID, &room.TypeName, &room.Capacity,
		&room.Price, &room.StatusCode, &room.View, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return room, nil
}
