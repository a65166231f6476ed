package notify

import (
	"vendor-booking/models/notification"
)

// Routing keys for the AMQP fan-out. In-app rows use the matching
// notification.NotificationType.
const (
	RKBookingCreated       = "booking.created"
	RKBookingConfirmed     = "booking.confirmed"
	RKBookingRejected      = "booking.rejected"
	RKBookingApproved      = "booking.approved"
	RKBookingAdminRejected = "booking.admin_rejected"
	RKBookingCancelled     = "booking.cancelled"
	RKOTPGenerated         = "otp.generated"
	RKOTPVerified          = "otp.verified"
	RKOTPLocked            = "otp.locked"
	RKReviewSubmitted      = "review.submitted"
)

// Event is one notification to one recipient, raised synchronously with a
// state change and delivered asynchronously.
type Event struct {
	Type        notification.NotificationType `json:"type"`
	RoutingKey  string                        `json:"routing_key"`
	RecipientID uint                          `json:"recipient_id"`
	Title       string                        `json:"title"`
	BookingID   uint                          `json:"booking_id"`
	Payload     map[string]interface{}        `json:"payload,omitempty"`
}
