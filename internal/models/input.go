package models

// NewItemInput carries the admin-entered fields of a new item.
type NewItemInput struct {
	Name        string      `json:"name" validate:"required"`
	Code        string      `json:"code" validate:"required"`
	DailyPrice  float64     `json:"dailyPrice" validate:"gt=0"`
	Image       string      `json:"image" validate:"required"`
	AdminStatus AdminStatus `json:"adminStatus"`
}

// NewBookingInput carries the customer-entered fields of a new booking.
type NewBookingInput struct {
	ProductID     string `json:"productId" validate:"required"`
	FromDate      string `json:"fromDate" validate:"required"`
	ToDate        string `json:"toDate" validate:"required"`
	CustomerName  string `json:"customerName" validate:"required"`
	CustomerEmail string `json:"customerEmail" validate:"required,looseemail"`
	CustomerPhone string `json:"customerPhone" validate:"required"`
}

type ItemFilter struct {
	Date string
	Name string
	Code string
}

type BookingFilter struct {
	ProductCode  string
	ProductName  string
	CustomerName string
}
