package service

import (
	"context"
	"testing"
	"time"

	"clothingrental/internal/domain"
	"clothingrental/internal/models"
	"clothingrental/internal/repository"
	"clothingrental/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type fixture struct {
	store    *store.Store
	events   *mockPublisher
	catalog  *CatalogService
	bookings *BookingService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithKV(t, repository.NewMemoryKV())
}

func newFixtureWithKV(t *testing.T, kv domain.KVStore) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	st := store.New(kv, &logger)
	pub := &mockPublisher{}
	pub.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Maybe()

	catalog := NewCatalogService(st, pub, &logger)
	catalog.now = func() time.Time { return fixedNow }
	bookings := NewBookingService(st, pub, &logger)
	bookings.now = func() time.Time { return fixedNow }
	auth, err := NewAuthService(st, pub, models.DefaultAdminEmail, models.DefaultAdminPassword, &logger)
	require.NoError(t, err)

	return &fixture{store: st, events: pub, catalog: catalog, bookings: bookings, auth: auth}
}

func (f *fixture) addItem(t *testing.T, name, code string) *models.Item {
	t.Helper()
	item, err := f.catalog.CreateItem(context.Background(), models.NewItemInput{
		Name:       name,
		Code:       code,
		DailyPrice: 30,
		Image:      "https://example.com/" + code + ".jpg",
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) addBooking(t *testing.T, itemID, from, to string) *models.Booking {
	t.Helper()
	booking, err := f.bookings.CreateBooking(context.Background(), models.NewBookingInput{
		ProductID:     itemID,
		FromDate:      from,
		ToDate:        to,
		CustomerName:  "Jane Roe",
		CustomerEmail: "jane@example.com",
		CustomerPhone: "+1 555 0100",
	})
	require.NoError(t, err)
	return booking
}
