package models

// Well-known keys of the persisted collections.
const (
	KeyProducts    = "clothing_rental_products"
	KeyBookings    = "clothing_rental_bookings"
	KeyUsers       = "clothing_rental_users"
	KeyCurrentUser = "clothing_rental_current_user"
)

const (
	// DateLayout календарная дата без времени
	DateLayout = "2006-01-02"

	// DisplayDateLayout формат даты для людей
	DisplayDateLayout = "Jan 2, 2006"

	// DefaultAdminID идентификатор администратора по умолчанию
	DefaultAdminID = "admin-1"

	// DefaultAdminEmail адрес администратора по умолчанию
	DefaultAdminEmail = "admin@clothingrental.com"

	// DefaultAdminPassword пароль-заглушка
	DefaultAdminPassword = "admin123"

	// ItemIDPrefix префикс идентификатора товара
	ItemIDPrefix = "product-"

	// BookingIDPrefix префикс идентификатора бронирования
	BookingIDPrefix = "booking-"

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128

	// RateLimitBurst допустимый всплеск запросов
	RateLimitBurst = 5
)
