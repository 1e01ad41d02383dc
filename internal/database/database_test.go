package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"riad/internal/domain"
	"riad/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	room     *models.Room
	customer *models.Customer
}

func seed(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()

	types := []*models.RoomType{{Name: "Patio Double", Information: "Ground floor, garden patio"}}
	rooms := []*models.Room{{Number: "101", TypeName: "Patio Double", Capacity: 2, Price: 1000000}}
	require.NoError(t, db.SyncCatalog(ctx, types, rooms))

	customer := &models.Customer{Name: "Amal Idrissi", Phone: "+212600000000"}
	require.NoError(t, db.CreateCustomer(ctx, customer))

	return fixture{room: rooms[0], customer: customer}
}

func date(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newReservation(f fixture, in, out string) *models.Reservation {
	return &models.Reservation{
		CustomerID: f.customer.ID,
		RoomID:     f.room.ID,
		CheckIn:    date(in),
		CheckOut:   date(out),
		TotalPrice: 2000000,
		CreatedBy:  1,
	}
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "riad.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_SchemaIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.createTables())
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestSyncCatalog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	types := []*models.RoomType{{Name: "Atlas Suite"}, {Name: "Family Duplex"}}
	rooms := []*models.Room{
		{Number: "201", TypeName: "Atlas Suite", Capacity: 3, Price: 1650000},
		{Number: "301", TypeName: "Family Duplex", Capacity: 4, Price: 2150000, StatusCode: models.RoomStatusOutOfService},
	}
	require.NoError(t, db.SyncCatalog(ctx, types, rooms))

	got, err := db.GetRooms(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Atlas Suite", got[0].TypeName)
	assert.Equal(t, models.RoomStatusAvailable, got[0].StatusCode)
	assert.Equal(t, models.RoomStatusOutOfService, got[1].StatusCode)

	// re-sync updates in place
	rooms[0].Price = 1700000
	require.NoError(t, db.SyncCatalog(ctx, types, rooms[:1]))
	room, err := db.GetRoom(ctx, rooms[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000), room.Price)

	rts, err := db.GetRoomTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, rts, 2)

	require.NoError(t, db.UpdateRoomStatus(ctx, room.ID, models.RoomStatusHousekeeping))
	room, err = db.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusHousekeeping, room.StatusCode)

	assert.ErrorIs(t, db.UpdateRoomStatus(ctx, room.ID, "DIRTY"), domain.ErrInvalidInput)
	assert.ErrorIs(t, db.UpdateRoomStatus(ctx, 9999, models.RoomStatusAvailable), domain.ErrNotFound)
}

func TestSyncCatalog_UnknownType(t *testing.T) {
	db := setupTestDB(t)
	err := db.SyncCatalog(context.Background(), nil, []*models.Room{{Number: "999", TypeName: "Nope", Capacity: 1}})
	assert.Error(t, err)
}

func TestClosedDB_Errors(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()
	_, err = db.GetRooms(ctx)
	assert.Error(t, err)
	_, err = db.IsRoomFree(ctx, 1, models.DateRange{CheckIn: date("2025-01-01"), CheckOut: date("2025-01-02")}, 0)
	assert.Error(t, err)
	err = db.CreateCustomer(ctx, &models.Customer{Name: "x"})
	assert.Error(t, err)
}
