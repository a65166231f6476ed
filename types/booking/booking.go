package booking

import (
	"fmt"
)

// BookingCreateRequest represents the request payload for creating a booking
type BookingCreateRequest struct {
	VendorID     uint     `json:"vendor_id" validate:"required"`
	ShiftID      uint     `json:"shift_id" validate:"required"`
	PackageID    uint     `json:"package_id" validate:"required"`
	EventDate    string   `json:"event_date" validate:"required"` // "2006-01-02"
	EventTime    string   `json:"event_time" validate:"omitempty,max=20"`
	EventAddress string   `json:"event_address" validate:"required,min=1"`
	Latitude     *float64 `json:"latitude" validate:"omitempty"`
	Longitude    *float64 `json:"longitude" validate:"omitempty"`
}

func (b BookingCreateRequest) Validate() error {
	if b.VendorID == 0 {
		return fmt.Errorf("vendor_id is required")
	}
	if b.ShiftID == 0 {
		return fmt.Errorf("shift_id is required")
	}
	if b.PackageID == 0 {
		return fmt.Errorf("package_id is required")
	}
	if b.EventDate == "" {
		return fmt.Errorf("event_date is required")
	}
	if b.EventAddress == "" {
		return fmt.Errorf("event_address is required")
	}
	if (b.Latitude == nil) != (b.Longitude == nil) {
		return fmt.Errorf("latitude and longitude must be provided together")
	}
	return nil
}

// BookingActionRequest carries the target of a lifecycle transition
// (accept, reject, approve, cancel).
type BookingActionRequest struct {
	BookingID uint `json:"booking_id" validate:"required"`
}

func (b BookingActionRequest) Validate() error {
	if b.BookingID == 0 {
		return fmt.Errorf("booking_id is required")
	}
	return nil
}
