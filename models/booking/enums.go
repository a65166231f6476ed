package booking

// BookingStatus is the vendor-acceptance axis of a booking's lifecycle.
type BookingStatus string

const (
	BookingStatusPending           BookingStatus = "pending"
	BookingStatusConfirmed         BookingStatus = "confirmed"
	BookingStatusAwaitingReview    BookingStatus = "awaiting_review"
	BookingStatusCompleted         BookingStatus = "completed"
	BookingStatusCancelledByUser   BookingStatus = "cancelled_by_user"
	BookingStatusCancelledByVendor BookingStatus = "cancelled_by_vendor"
	BookingStatusRejectedByAdmin   BookingStatus = "rejected_by_admin"
)

// AdminApproval is the platform-authorization axis, independent of vendor
// acceptance.
type AdminApproval string

const (
	AdminApprovalPending  AdminApproval = "pending"
	AdminApprovalApproved AdminApproval = "approved"
	AdminApprovalRejected AdminApproval = "rejected"
)

// Helper methods for BookingStatus
func (bs BookingStatus) String() string {
	return string(bs)
}

func (bs BookingStatus) IsValid() bool {
	switch bs {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusAwaitingReview,
		BookingStatusCompleted, BookingStatusCancelledByUser,
		BookingStatusCancelledByVendor, BookingStatusRejectedByAdmin:
		return true
	default:
		return false
	}
}

// IsCancelled returns true for statuses that release the booked slot.
func (bs BookingStatus) IsCancelled() bool {
	return bs == BookingStatusCancelledByUser ||
		bs == BookingStatusCancelledByVendor ||
		bs == BookingStatusRejectedByAdmin
}

// IsTerminal returns true if no further transition can leave this status.
func (bs BookingStatus) IsTerminal() bool {
	return bs.IsCancelled() || bs == BookingStatusCompleted
}

// CanBeCancelled returns true while the service has not yet been verified.
func (bs BookingStatus) CanBeCancelled() bool {
	return bs == BookingStatusPending || bs == BookingStatusConfirmed
}

// ActiveStatuses returns the statuses that occupy a slot in the ledger.
func ActiveStatuses() []BookingStatus {
	return []BookingStatus{
		BookingStatusPending,
		BookingStatusConfirmed,
		BookingStatusAwaitingReview,
		BookingStatusCompleted,
	}
}

// GetAllBookingStatuses returns all valid booking statuses
func GetAllBookingStatuses() []BookingStatus {
	return []BookingStatus{
		BookingStatusPending,
		BookingStatusConfirmed,
		BookingStatusAwaitingReview,
		BookingStatusCompleted,
		BookingStatusCancelledByUser,
		BookingStatusCancelledByVendor,
		BookingStatusRejectedByAdmin,
	}
}

// OTPEligible reports whether the OTP subsystem may run for this pair of
// axes: the vendor said yes and the platform authorized the work.
func OTPEligible(status BookingStatus, approval AdminApproval) bool {
	return status == BookingStatusConfirmed && approval == AdminApprovalApproved
}
