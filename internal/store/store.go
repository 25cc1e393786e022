package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"clothingrental/internal/availability"
	"clothingrental/internal/domain"
	"clothingrental/internal/models"

	"github.com/rs/zerolog"
)

// ErrConcurrentModification is returned when a collection changed between
// read and write. The caller may re-submit.
var ErrConcurrentModification = fmt.Errorf("collection modified concurrently: %w", domain.ErrVersionConflict)

// Store keeps the items, bookings and users collections plus the session
// slot on top of a KVStore. Each collection is one JSON array under its own
// key; every write is a full read-modify-write guarded by the key version.
type Store struct {
	kv     domain.KVStore
	logger *zerolog.Logger
	ids    *IDGenerator

	// сериализует писателей внутри процесса
	mu sync.Mutex
}

func New(kv domain.KVStore, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{
		kv:     kv,
		logger: logger,
		ids:    NewIDGenerator(),
	}
}

var _ domain.Store = (*Store)(nil)

func (s *Store) NewItemID() string    { return s.ids.New(models.ItemIDPrefix) }
func (s *Store) NewBookingID() string { return s.ids.New(models.BookingIDPrefix) }

func (s *Store) ListItems(ctx context.Context) ([]models.Item, error) {
	items, _, err := loadCollection[models.Item](ctx, s, models.KeyProducts)
	return items, err
}

func (s *Store) ListBookings(ctx context.Context) ([]models.Booking, error) {
	bookings, _, err := loadCollection[models.Booking](ctx, s, models.KeyBookings)
	return bookings, err
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	users, _, err := loadCollection[models.User](ctx, s, models.KeyUsers)
	return users, err
}

// FindItem returns nil without error when the id is unknown.
func (s *Store) FindItem(ctx context.Context, id string) (*models.Item, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, nil
}

func (s *Store) BookingsForItem(ctx context.Context, itemID string) ([]models.Booking, error) {
	bookings, err := s.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	return bookingsOf(bookings, itemID, ""), nil
}

func (s *Store) UpsertItem(ctx context.Context, item models.Item) error {
	return modify(ctx, s, models.KeyProducts, func(items []models.Item) ([]models.Item, bool, error) {
		return upsert(items, item, func(x models.Item) string { return x.ID }), true, nil
	})
}

func (s *Store) UpsertBooking(ctx context.Context, booking models.Booking) error {
	return modify(ctx, s, models.KeyBookings, func(bookings []models.Booking) ([]models.Booking, bool, error) {
		return upsert(bookings, booking, func(x models.Booking) string { return x.ID }), true, nil
	})
}

// InsertBookingIfFree appends booking unless its range overlaps a
// non-cancelled booking of the same item. The check and the write happen in
// one versioned cycle, so two callers can never both take the same dates.
func (s *Store) InsertBookingIfFree(ctx context.Context, booking models.Booking) error {
	return modify(ctx, s, models.KeyBookings, func(bookings []models.Booking) ([]models.Booking, bool, error) {
		if availability.HasConflict(booking.FromDate, booking.ToDate, bookingsOf(bookings, booking.ProductID, booking.ID)) {
			return nil, false, domain.ErrRangeTaken
		}
		return upsert(bookings, booking, func(x models.Booking) string { return x.ID }), true, nil
	})
}

func (s *Store) UpsertUser(ctx context.Context, user models.User) error {
	return modify(ctx, s, models.KeyUsers, func(users []models.User) ([]models.User, bool, error) {
		return upsert(users, user, func(x models.User) string { return x.ID }), true, nil
	})
}

// SetItemAdminFlag silently ignores unknown ids.
func (s *Store) SetItemAdminFlag(ctx context.Context, id string, flag models.AdminStatus) error {
	return modify(ctx, s, models.KeyProducts, func(items []models.Item) ([]models.Item, bool, error) {
		for i := range items {
			if items[i].ID == id {
				items[i].AdminStatus = flag
				return items, true, nil
			}
		}
		s.logger.Debug().Str("item_id", id).Msg("admin flag change for unknown item ignored")
		return items, false, nil
	})
}

// SetBookingStatus silently ignores unknown ids. Moving a booking back to
// active fails with domain.ErrRangeTaken when its dates are taken by now.
func (s *Store) SetBookingStatus(ctx context.Context, id string, status models.BookingStatus) error {
	return modify(ctx, s, models.KeyBookings, func(bookings []models.Booking) ([]models.Booking, bool, error) {
		for i := range bookings {
			if bookings[i].ID != id {
				continue
			}
			b := bookings[i]
			if status == models.BookingActive && b.Status != models.BookingActive &&
				availability.HasConflict(b.FromDate, b.ToDate, bookingsOf(bookings, b.ProductID, b.ID)) {
				return nil, false, domain.ErrRangeTaken
			}
			bookings[i].Status = status
			return bookings, true, nil
		}
		s.logger.Debug().Str("booking_id", id).Msg("status change for unknown booking ignored")
		return bookings, false, nil
	})
}

// CurrentSession returns nil when nobody is logged in or the slot is unreadable.
func (s *Store) CurrentSession(ctx context.Context) (*models.User, error) {
	raw, _, err := s.kv.Get(ctx, models.KeyCurrentUser)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == "" {
		s.logger.Warn().Err(err).Msg("Session slot is unreadable, treating as logged out")
		return nil, nil
	}
	return &user, nil
}

// SetCurrentSession stores user in the session slot; nil clears it.
func (s *Store) SetCurrentSession(ctx context.Context, user *models.User) error {
	if user == nil {
		if err := s.kv.Remove(ctx, models.KeyCurrentUser); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, models.KeyCurrentUser, string(data)); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// EnsureDefaultAdmin creates the well-known admin unless some admin exists.
// Reports whether a record was created.
func (s *Store) EnsureDefaultAdmin(ctx context.Context, email string) (bool, error) {
	created := false
	err := modify(ctx, s, models.KeyUsers, func(users []models.User) ([]models.User, bool, error) {
		for _, u := range users {
			if u.Role == models.RoleAdmin {
				return users, false, nil
			}
		}
		created = true
		return append(users, models.User{
			ID:    models.DefaultAdminID,
			Email: email,
			Role:  models.RoleAdmin,
		}), true, nil
	})
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Info().Str("email", email).Msg("Default admin created")
	}
	return created, nil
}

// loadCollection читает коллекцию вместе с версией ключа.
// Отсутствующие или битые данные дают пустой срез.
func loadCollection[T any](ctx context.Context, s *Store, key string) ([]T, int64, error) {
	raw, version, err := s.kv.Get(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return []T{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", key, err)
	}

	var records []T
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Stored collection is corrupt, treating as empty")
		return []T{}, version, nil
	}
	if records == nil {
		records = []T{}
	}
	return records, version, nil
}

func saveCollection[T any](ctx context.Context, s *Store, key string, records []T, version int64) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if _, err := s.kv.SetIfVersion(ctx, key, string(data), version); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			s.logger.Warn().Str("key", key).Int64("version", version).Msg("Lost update prevented")
			return ErrConcurrentModification
		}
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// modify применяет fn к коллекции и сохраняет ее, если fn вернул changed.
// Ошибка из fn отменяет запись.
func modify[T any](ctx context.Context, s *Store, key string, fn func([]T) ([]T, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, version, err := loadCollection[T](ctx, s, key)
	if err != nil {
		return err
	}
	records, changed, err := fn(records)
	if err != nil || !changed {
		return err
	}
	return saveCollection(ctx, s, key, records, version)
}

// bookingsOf отбирает брони товара, кроме skipID.
func bookingsOf(bookings []models.Booking, itemID, skipID string) []models.Booking {
	result := make([]models.Booking, 0)
	for _, b := range bookings {
		if b.ProductID == itemID && b.ID != skipID {
			result = append(result, b)
		}
	}
	return result
}

func upsert[T any](records []T, record T, id func(T) string) []T {
	for i := range records {
		if id(records[i]) == id(record) {
			records[i] = record
			return records
		}
	}
	return append(records, record)
}
