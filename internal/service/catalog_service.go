package service

import (
	"context"
	"strings"
	"time"

	"clothingrental/internal/availability"
	"clothingrental/internal/domain"
	"clothingrental/internal/events"
	"clothingrental/internal/models"

	"github.com/rs/zerolog"
)

type CatalogService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewCatalogService(store domain.Store, eventBus domain.EventPublisher, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		store:    store,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

var _ domain.CatalogService = (*CatalogService)(nil)

func (s *CatalogService) CreateItem(ctx context.Context, input models.NewItemInput) (*models.Item, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Code = strings.TrimSpace(input.Code)
	input.Image = strings.TrimSpace(input.Image)
	if input.AdminStatus == "" {
		input.AdminStatus = models.AdminStatusAvailable
	}

	verr := validateStruct(input)
	if !input.AdminStatus.Valid() {
		verr.add("adminStatus", msgInvalidStatus)
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	item := models.Item{
		ID:          s.store.NewItemID(),
		Name:        input.Name,
		Code:        input.Code,
		DailyPrice:  input.DailyPrice,
		Image:       input.Image,
		AdminStatus: input.AdminStatus,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.UpsertItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info().Str("item_id", item.ID).Str("code", item.Code).Msg("Item created")
	s.publishEvent(events.EventItemCreated, item)
	return &item, nil
}

// SetItemStatus переключает флаг администратора. Неизвестный id игнорируется.
func (s *CatalogService) SetItemStatus(ctx context.Context, id string, status models.AdminStatus) error {
	if !status.Valid() {
		return &ValidationError{Fields: map[string]string{"adminStatus": msgInvalidStatus}}
	}
	if err := s.store.SetItemAdminFlag(ctx, id, status); err != nil {
		return err
	}

	item, err := s.store.FindItem(ctx, id)
	if err != nil || item == nil {
		return err
	}
	s.logger.Info().Str("item_id", id).Str("status", string(status)).Msg("Item status changed")
	s.publishEvent(events.EventItemStatusChanged, *item)
	return nil
}

// ListItemViews returns the catalog with availability for filter.Date
// (today when empty), narrowed by case-insensitive name and code substrings.
func (s *CatalogService) ListItemViews(ctx context.Context, filter models.ItemFilter) ([]models.ItemView, error) {
	ref := strings.TrimSpace(filter.Date)
	if ref == "" {
		ref = availability.Today(s.now())
	} else if _, err := availability.ParseDate(ref); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"date": msgInvalidDate}}
	}

	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.ListBookings(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Item, 0, len(items))
	for _, item := range items {
		if containsFold(item.Name, filter.Name) && containsFold(item.Code, filter.Code) {
			filtered = append(filtered, item)
		}
	}
	return availability.BuildViews(filtered, bookings, ref), nil
}

func (s *CatalogService) GetItem(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.store.FindItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (s *CatalogService) publishEvent(eventType string, item models.Item) {
	if s.eventBus == nil {
		return
	}

	payload := events.ItemEventPayload{
		ItemID:      item.ID,
		Name:        item.Name,
		Code:        item.Code,
		DailyPrice:  item.DailyPrice,
		AdminStatus: string(item.AdminStatus),
		ChangedAt:   s.now().UTC(),
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("item_id", item.ID).Msg("publish event error")
	}
}

func containsFold(s, substr string) bool {
	substr = strings.TrimSpace(substr)
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
