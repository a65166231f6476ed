package notification

import (
	"time"
)

// NotificationType identifies which lifecycle transition produced the row.
type NotificationType string

const (
	NotifBookingCreated       NotificationType = "booking_created"
	NotifBookingConfirmed     NotificationType = "booking_confirmed"
	NotifBookingRejected      NotificationType = "booking_rejected"
	NotifBookingApproved      NotificationType = "booking_approved"
	NotifBookingAdminRejected NotificationType = "booking_admin_rejected"
	NotifBookingCancelled     NotificationType = "booking_cancelled"
	NotifOTPGenerated         NotificationType = "otp_generated"
	NotifOTPVerified          NotificationType = "otp_verified"
	NotifOTPLocked            NotificationType = "otp_locked"
	NotifReviewSubmitted      NotificationType = "review_submitted"
)

// Notification is the in-app sink of the dispatcher. Outbound channels
// (email, SMS) consume the same events over AMQP.
type Notification struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	RecipientID uint             `gorm:"not null;index" json:"recipient_id"`
	Type        NotificationType `gorm:"type:varchar(50);not null;index" json:"type"`
	Title       string           `gorm:"type:varchar(255);not null" json:"title"`
	Payload     string           `gorm:"type:text" json:"payload"` // JSON
	BookingID   uint             `gorm:"index" json:"booking_id"`
	IsRead      bool             `gorm:"default:false" json:"is_read"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
