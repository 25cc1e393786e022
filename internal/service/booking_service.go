package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"clothingrental/internal/availability"
	"clothingrental/internal/domain"
	"clothingrental/internal/events"
	"clothingrental/internal/metrics"
	"clothingrental/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewBookingService(store domain.Store, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		store:    store,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

var _ domain.BookingService = (*BookingService)(nil)

func (s *BookingService) CreateBooking(ctx context.Context, input models.NewBookingInput) (*models.Booking, error) {
	input.ProductID = strings.TrimSpace(input.ProductID)
	input.FromDate = strings.TrimSpace(input.FromDate)
	input.ToDate = strings.TrimSpace(input.ToDate)
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.CustomerEmail = strings.TrimSpace(input.CustomerEmail)
	input.CustomerPhone = strings.TrimSpace(input.CustomerPhone)

	verr := validateStruct(input)
	from, to := s.validateDates(input, verr)

	var item *models.Item
	if !verr.has("productId") {
		found, err := s.store.FindItem(ctx, input.ProductID)
		if err != nil {
			return nil, err
		}
		if found == nil {
			verr.add("productId", msgUnknownProduct)
		}
		item = found
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	booking := models.Booking{
		ID:            s.store.NewBookingID(),
		ProductID:     item.ID,
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		CustomerPhone: input.CustomerPhone,
		FromDate:      from,
		ToDate:        to,
		Status:        models.BookingActive,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.InsertBookingIfFree(ctx, booking); err != nil {
		if errors.Is(err, domain.ErrRangeTaken) {
			metrics.IncBookingConflict()
			s.logger.Info().Str("item_id", item.ID).Str("from", from).Str("to", to).Msg("Booking rejected: dates overlap")
			return nil, ErrBookingConflict
		}
		return nil, err
	}

	metrics.IncBookingCreated()
	s.logger.Info().Str("booking_id", booking.ID).Str("item_id", item.ID).Msg("Booking created")
	s.publishEvent(events.EventBookingCreated, booking, item)
	return &booking, nil
}

// validateDates проверяет диапазон и возвращает даты в формате YYYY-MM-DD.
func (s *BookingService) validateDates(input models.NewBookingInput, verr *ValidationError) (string, string) {
	if verr.has("fromDate") || verr.has("toDate") {
		return "", ""
	}

	fromT, err := availability.ParseDate(input.FromDate)
	if err != nil {
		verr.add("fromDate", msgInvalidDate)
	}
	toT, err := availability.ParseDate(input.ToDate)
	if err != nil {
		verr.add("toDate", msgInvalidDate)
	}
	if verr.has("fromDate") || verr.has("toDate") {
		return "", ""
	}

	from := fromT.Format(models.DateLayout)
	to := toT.Format(models.DateLayout)
	if from < availability.Today(s.now()) {
		verr.add("fromDate", msgPastFromDate)
	}
	if toT.Before(fromT) {
		verr.add("toDate", msgToBeforeFrom)
	}
	return from, to
}

// CheckConflict reports whether [from, to] overlaps a non-cancelled booking of itemID.
func (s *BookingService) CheckConflict(ctx context.Context, itemID, from, to string) (bool, error) {
	verr := &ValidationError{}
	if _, err := availability.ParseDate(from); err != nil {
		verr.add("from", msgInvalidDate)
	}
	if _, err := availability.ParseDate(to); err != nil {
		verr.add("to", msgInvalidDate)
	}
	if err := verr.errOrNil(); err != nil {
		return false, err
	}

	existing, err := s.store.BookingsForItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	return availability.HasConflict(from, to, existing), nil
}

// SetBookingStatus меняет статус. Неизвестный id игнорируется.
func (s *BookingService) SetBookingStatus(ctx context.Context, id string, status models.BookingStatus) error {
	if !status.Valid() {
		return &ValidationError{Fields: map[string]string{"status": msgInvalidStatus}}
	}
	if err := s.store.SetBookingStatus(ctx, id, status); err != nil {
		if errors.Is(err, domain.ErrRangeTaken) {
			metrics.IncBookingConflict()
			s.logger.Info().Str("booking_id", id).Msg("Reactivation rejected: dates overlap")
			return ErrBookingConflict
		}
		return err
	}

	bookings, err := s.store.ListBookings(ctx)
	if err != nil {
		return err
	}
	for _, b := range bookings {
		if b.ID != id {
			continue
		}
		item, err := s.store.FindItem(ctx, b.ProductID)
		if err != nil {
			return err
		}
		s.logger.Info().Str("booking_id", id).Str("status", string(status)).Msg("Booking status changed")
		s.publishEvent(events.EventBookingStatusChanged, b, item)
		break
	}
	return nil
}

// ListBookings joins bookings with their items and applies case-insensitive
// substring filters. Bookings whose item is gone match only empty item filters.
func (s *BookingService) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetails, error) {
	bookings, err := s.store.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	result := make([]models.BookingDetails, 0, len(bookings))
	for _, b := range bookings {
		item := byID[b.ProductID]
		var name, code string
		if item != nil {
			name, code = item.Name, item.Code
		}
		if !containsFold(code, filter.ProductCode) ||
			!containsFold(name, filter.ProductName) ||
			!containsFold(b.CustomerName, filter.CustomerName) {
			continue
		}
		result = append(result, models.BookingDetails{Booking: b, Item: item})
	}
	return result, nil
}

func (s *BookingService) publishEvent(eventType string, booking models.Booking, item *models.Item) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		ItemID:        booking.ProductID,
		CustomerName:  booking.CustomerName,
		CustomerEmail: booking.CustomerEmail,
		CustomerPhone: booking.CustomerPhone,
		FromDate:      booking.FromDate,
		ToDate:        booking.ToDate,
		Status:        string(booking.Status),
		ChangedAt:     s.now().UTC(),
	}
	if item != nil {
		payload.ItemName = item.Name
		payload.ItemCode = item.Code
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}
