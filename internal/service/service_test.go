package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"riad/internal/database"
	"riad/internal/events"
	"riad/internal/models"
	"riad/internal/pricing"
	"riad/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	Type    string
	Payload events.ReservationEventPayload
}

// eventRecorder collects everything published on the bus.
type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) handle(e *events.Event) error {
	p, err := e.Decode()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{Type: e.Type, Payload: p})
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db           *database.DB
	rooms        map[string]*models.Room
	customer     *models.Customer
	ledger       *PaymentLedger
	reservations *ReservationService
	wizard       *WizardService
	store        *repository.MemoryWizardStore
	recorder     *eventRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	types := []*models.RoomType{{Name: "Patio Double"}, {Name: "Atlas Suite"}, {Name: "Family Duplex"}}
	rooms := []*models.Room{
		{Number: "101", TypeName: "Patio Double", Capacity: 2, Price: 1000000},
		{Number: "201", TypeName: "Atlas Suite", Capacity: 3, Price: 1650000},
		{Number: "301", TypeName: "Family Duplex", Capacity: 4, Price: 2150000},
		{Number: "302", TypeName: "Family Duplex", Capacity: 4, Price: 2150000, StatusCode: models.RoomStatusOutOfService},
	}
	require.NoError(t, db.SyncCatalog(ctx, types, rooms))

	customer := &models.Customer{Name: "Youssef Benali"}
	require.NoError(t, db.CreateCustomer(ctx, customer))

	bus := events.NewEventBus()
	recorder := &eventRecorder{}
	bus.SubscribeAll(events.AllReservationEvents, recorder.handle)

	calc := pricing.NewCalculator(15, 0)
	ledger := NewPaymentLedger(db, bus, &logger)
	policy := NewCancellationPolicy(3, 50, models.PenaltyBasisPaid)
	reservations := NewReservationService(db, ledger, policy, calc, bus, &logger)
	store := repository.NewMemoryWizardStore()
	wizard := NewWizardService(store, db, calc, reservations, 30*time.Minute, &logger)

	byNumber := make(map[string]*models.Room, len(rooms))
	for _, r := range rooms {
		byNumber[r.Number] = r
	}

	return &testEnv{
		db:           db,
		rooms:        byNumber,
		customer:     customer,
		ledger:       ledger,
		reservations: reservations,
		wizard:       wizard,
		store:        store,
		recorder:     recorder,
	}
}

// today is the fixed "now" of the service tests.
var today = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func daysFromToday(n int) time.Time {
	return models.DateOf(today).AddDate(0, 0, n)
}
