package reservation

import (
	"time"
)

// ReservationStatus of a manual slot block.
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// ManualReservation blocks a (vendor, shift, date) slot with no associated
// booking. It participates in the same single-occupancy invariant as
// bookings.
type ManualReservation struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	VendorID  uint      `gorm:"not null;index" json:"vendor_id"`
	ShiftID   uint      `gorm:"not null" json:"shift_id"`
	EventDate time.Time `gorm:"type:date;not null;index" json:"event_date"`

	Status ReservationStatus `gorm:"type:varchar(20);not null;default:active" json:"status"`
	Reason string            `gorm:"type:text" json:"reason"`

	CreatedBy string    `gorm:"type:varchar(255);not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedBy string    `gorm:"type:varchar(255)" json:"updated_by,omitempty"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the reservation still occupies its slot.
func (mr *ManualReservation) IsActive() bool {
	return mr.Status == ReservationStatusActive
}
