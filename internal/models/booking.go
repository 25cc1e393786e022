package models

import "time"

type BookingStatus string

const (
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingActive, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

type Booking struct {
	ID            string        `json:"id"`
	ProductID     string        `json:"productId"`
	CustomerName  string        `json:"customerName"`
	CustomerEmail string        `json:"customerEmail"`
	CustomerPhone string        `json:"customerPhone"`
	FromDate      string        `json:"fromDate"` // YYYY-MM-DD, inclusive
	ToDate        string        `json:"toDate"`   // YYYY-MM-DD, inclusive
	Status        BookingStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// BookingDetails joins a booking with the item it references. Item is nil
// when the referenced item no longer resolves.
type BookingDetails struct {
	Booking
	Item *Item `json:"product,omitempty"`
}
