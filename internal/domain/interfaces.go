package domain

import (
	"context"
	"errors"

	"clothingrental/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	// ErrKeyNotFound is returned by KVStore.Get when the key is absent.
	ErrKeyNotFound = errors.New("key not found")
	// ErrVersionConflict is returned by KVStore.SetIfVersion when the stored
	// version differs from the expected one.
	ErrVersionConflict = errors.New("version conflict")
	// ErrRangeTaken is returned by Store when a booking would overlap a
	// non-cancelled booking of the same item.
	ErrRangeTaken = errors.New("date range already taken")
)

// KVStore is the persistence medium behind the domain store. Every key carries
// a version that starts at 0 for an absent key and grows by one on each write.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, version int64, err error)
	Set(ctx context.Context, key, value string) error
	SetIfVersion(ctx context.Context, key, value string, version int64) (int64, error)
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

type Store interface {
	ListItems(ctx context.Context) ([]models.Item, error)
	ListBookings(ctx context.Context) ([]models.Booking, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	FindItem(ctx context.Context, id string) (*models.Item, error)
	BookingsForItem(ctx context.Context, itemID string) ([]models.Booking, error)
	UpsertItem(ctx context.Context, item models.Item) error
	UpsertBooking(ctx context.Context, booking models.Booking) error
	InsertBookingIfFree(ctx context.Context, booking models.Booking) error
	UpsertUser(ctx context.Context, user models.User) error
	SetItemAdminFlag(ctx context.Context, id string, flag models.AdminStatus) error
	SetBookingStatus(ctx context.Context, id string, status models.BookingStatus) error
	CurrentSession(ctx context.Context) (*models.User, error)
	SetCurrentSession(ctx context.Context, user *models.User) error
	EnsureDefaultAdmin(ctx context.Context, email string) (bool, error)
	NewItemID() string
	NewBookingID() string
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID string, status string) error
}

type CatalogService interface {
	CreateItem(ctx context.Context, input models.NewItemInput) (*models.Item, error)
	SetItemStatus(ctx context.Context, id string, status models.AdminStatus) error
	ListItemViews(ctx context.Context, filter models.ItemFilter) ([]models.ItemView, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, input models.NewBookingInput) (*models.Booking, error)
	CheckConflict(ctx context.Context, itemID, from, to string) (bool, error)
	SetBookingStatus(ctx context.Context, id string, status models.BookingStatus) error
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetails, error)
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (bool, error)
	Logout(ctx context.Context) error
	Current(ctx context.Context) (*models.User, error)
	IsAdmin(ctx context.Context) (bool, error)
	RequireAdmin(ctx context.Context) error
	EnsureDefaultAdmin(ctx context.Context) error
}
