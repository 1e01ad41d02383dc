package models

const (
	StatusReservation = "Reservation"
	StatusCheckedIn   = "CheckedIn"
	StatusCheckedOut  = "CheckedOut"
	StatusCancelled   = "Cancelled"
)

const (
	PaymentDeposit    = "deposit"
	PaymentSettlement = "settlement"
	PaymentRefund     = "refund"
	PaymentPenalty    = "penalty"
)

const (
	RoomStatusAvailable    = "AVL"
	RoomStatusOccupied     = "OCC"
	RoomStatusHousekeeping = "CLN"
	RoomStatusOutOfService = "OOS"
)

const (
	WizardIdentitySelection = "identity_selection"
	WizardGuestCountEntry   = "guest_count_entry"
	WizardRoomSelection     = "room_selection"
	WizardDateConfirmation  = "date_confirmation"
	WizardFinalized         = "finalized"
)

const (
	PenaltyBasisPaid  = "paid"
	PenaltyBasisTotal = "total"
)

// DateLayout is the storage and wire format of stay dates.
const DateLayout = "2006-01-02"

const (
	// DefaultWizardTTL время жизни сессии мастера бронирования без активности
	DefaultWizardTTL = 30 * 60 // 30 минут в секундах

	DefaultDepositPercent  = 15
	DefaultGracePeriodDays = 3
	DefaultPenaltyPercent  = 50

	// DefaultLockRetries число повторов при занятой блокировке SQLite
	DefaultLockRetries = 3

	// NotificationQueueSize размер очереди уведомлений
	NotificationQueueSize = 256
)
