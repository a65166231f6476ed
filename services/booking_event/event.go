package booking_event

import (
	bookingModel "vendor-booking/models/booking"

	"gorm.io/gorm"
)

// SnapshotBookingStatus appends a status event row for a booking with the
// given event type. Called inside the transition's transaction so the audit
// trail and the state change commit together.
func SnapshotBookingStatus(tx *gorm.DB, b *bookingModel.Booking, eventType string, createdBy string) error {
	ev := bookingModel.BookingStatusEvent{
		BookingID:     b.ID,
		Status:        b.Status,
		AdminApproval: b.AdminApproval,
		EventType:     eventType,
		CreatedBy:     createdBy,
	}

	return tx.Create(&ev).Error
}
