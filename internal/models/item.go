package models

import "time"

type AdminStatus string

const (
	AdminStatusAvailable AdminStatus = "available"
	AdminStatusWithdrawn AdminStatus = "withdrawn"
)

func (s AdminStatus) Valid() bool {
	return s == AdminStatusAvailable || s == AdminStatusWithdrawn
}

type DynamicStatus string

const (
	DynamicAvailable DynamicStatus = "available"
	DynamicBooked    DynamicStatus = "booked"
	DynamicWithdrawn DynamicStatus = "withdrawn"
)

type Item struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Code        string      `json:"code" yaml:"code"`
	DailyPrice  float64     `json:"dailyPrice" yaml:"daily_price"`
	Image       string      `json:"image" yaml:"image"`
	AdminStatus AdminStatus `json:"adminStatus" yaml:"admin_status"`
	CreatedAt   time.Time   `json:"createdAt" yaml:"created_at"`
}

// ItemView is an Item with its availability for one reference date.
type ItemView struct {
	Item
	DynamicStatus DynamicStatus `json:"dynamicStatus"`
}
