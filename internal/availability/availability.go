// Package availability holds the booking rules: date range overlap, conflict
// detection and the per-date status of an item. Everything here is pure.
package availability

import "clothingrental/internal/models"

// IsWithinRange reports whether point falls inside the inclusive range [from, to].
func IsWithinRange(point, from, to string) bool {
	p, f, t := dateKey(point), dateKey(from), dateKey(to)
	return !p.Before(f) && !p.After(t)
}

// RangesOverlap is the inclusive interval overlap test. Ranges that touch on
// a single day overlap.
func RangesOverlap(aFrom, aTo, bFrom, bTo string) bool {
	return !dateKey(aFrom).After(dateKey(bTo)) && !dateKey(aTo).Before(dateKey(bFrom))
}

// HasConflict reports whether [from, to] overlaps any existing booking that is
// not cancelled. Completed bookings still count.
func HasConflict(from, to string, existing []models.Booking) bool {
	for _, b := range existing {
		if b.Status == models.BookingCancelled {
			continue
		}
		if RangesOverlap(from, to, b.FromDate, b.ToDate) {
			return true
		}
	}
	return false
}

// ComputeDynamicStatus derives the display status of item on ref. The admin
// withdrawal flag always wins over bookings.
func ComputeDynamicStatus(item models.Item, bookings []models.Booking, ref string) models.DynamicStatus {
	if item.AdminStatus == models.AdminStatusWithdrawn {
		return models.DynamicWithdrawn
	}
	for _, b := range bookings {
		if b.Status == models.BookingActive && IsWithinRange(ref, b.FromDate, b.ToDate) {
			return models.DynamicBooked
		}
	}
	return models.DynamicAvailable
}

// BuildViews computes the status of every item for ref. Bookings may belong to
// any item; they are grouped by ProductID first.
func BuildViews(items []models.Item, bookings []models.Booking, ref string) []models.ItemView {
	byItem := make(map[string][]models.Booking, len(items))
	for _, b := range bookings {
		byItem[b.ProductID] = append(byItem[b.ProductID], b)
	}

	views := make([]models.ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, models.ItemView{
			Item:          item,
			DynamicStatus: ComputeDynamicStatus(item, byItem[item.ID], ref),
		})
	}
	return views
}

// Nights returns the number of calendar days covered by the inclusive range.
func Nights(from, to string) int {
	f, t := dateKey(from), dateKey(to)
	if t.Before(f) {
		return 0
	}
	return int(t.Sub(f).Hours()/24) + 1
}
