package reservation

import (
	"fmt"
)

// ReservationCreateRequest blocks a (vendor, shift, date) slot manually.
type ReservationCreateRequest struct {
	VendorID  uint   `json:"vendor_id" validate:"required"`
	ShiftID   uint   `json:"shift_id" validate:"required"`
	EventDate string `json:"event_date" validate:"required"` // "2006-01-02"
	Reason    string `json:"reason" validate:"omitempty"`
}

func (r ReservationCreateRequest) Validate() error {
	if r.VendorID == 0 {
		return fmt.Errorf("vendor_id is required")
	}
	if r.ShiftID == 0 {
		return fmt.Errorf("shift_id is required")
	}
	if r.EventDate == "" {
		return fmt.Errorf("event_date is required")
	}
	return nil
}

// ReservationCancelRequest releases a manual block.
type ReservationCancelRequest struct {
	ReservationID uint `json:"reservation_id" validate:"required"`
}

func (r ReservationCancelRequest) Validate() error {
	if r.ReservationID == 0 {
		return fmt.Errorf("reservation_id is required")
	}
	return nil
}
