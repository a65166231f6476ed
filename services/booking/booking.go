package booking

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	bookingModel "vendor-booking/models/booking"
	"vendor-booking/models/notification"
	reviewModel "vendor-booking/models/review"
	vendorModel "vendor-booking/models/vendor"
	"vendor-booking/services/booking_event"
	"vendor-booking/services/notify"
	"vendor-booking/services/slot"
	"vendor-booking/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Guard failures of the state machine. Controllers map these onto HTTP
// statuses; all are recoverable by the caller.
var (
	ErrNotFound          = errors.New("not_found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid_transition")
)

// Service owns the booking lifecycle. Every transition validates the actor
// and the current state, persists the new state plus a status event in one
// transaction, and then emits notifications best-effort.
type Service struct {
	DB         *gorm.DB
	Ledger     *slot.Ledger
	Dispatcher *notify.Dispatcher
}

func NewService(db *gorm.DB, ledger *slot.Ledger, dispatcher *notify.Dispatcher) *Service {
	return &Service{
		DB:         db,
		Ledger:     ledger,
		Dispatcher: dispatcher,
	}
}

// CreateParams carries the validated, parsed inputs of the create transition.
type CreateParams struct {
	VendorID     uint
	ShiftID      uint
	PackageID    uint
	EventDate    time.Time // normalized to beginning of day
	EventTime    string
	EventAddress string
	Latitude     *float64
	Longitude    *float64
}

// Create admits a new booking if the slot ledger grants the reservation.
// The occupancy check and the insert run in one transaction; a duplicate-key
// loss against a concurrent insert surfaces as slot.ErrSlotConflict.
func (s *Service) Create(actor types.Actor, params CreateParams) (*bookingModel.Booking, error) {
	var vendor vendorModel.Vendor
	if err := s.DB.First(&vendor, params.VendorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load vendor: %w", err)
	}

	var shift vendorModel.Shift
	if err := s.DB.Where("id = ? AND vendor_id = ?", params.ShiftID, params.VendorID).First(&shift).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load shift: %w", err)
	}

	var pkg vendorModel.Package
	if err := s.DB.Where("id = ? AND vendor_id = ?", params.PackageID, params.VendorID).First(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load package: %w", err)
	}

	createdBy := strconv.FormatUint(uint64(actor.UserID), 10)
	booking := bookingModel.Booking{
		Uuid:          uuid.NewString(),
		UserID:        actor.UserID,
		VendorID:      params.VendorID,
		ShiftID:       params.ShiftID,
		PackageID:     params.PackageID,
		EventDate:     params.EventDate,
		EventTime:     params.EventTime,
		EventAddress:  params.EventAddress,
		Latitude:      params.Latitude,
		Longitude:     params.Longitude,
		Status:        bookingModel.BookingStatusPending,
		AdminApproval: bookingModel.AdminApprovalPending,
		CreatedBy:     createdBy,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.Ledger.Reserve(tx, params.VendorID, params.ShiftID, params.EventDate); err != nil {
			return err
		}
		if err := tx.Create(&booking).Error; err != nil {
			if slot.IsUniqueViolation(err) {
				return slot.ErrSlotConflict
			}
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return booking_event.SnapshotBookingStatus(tx, &booking, "created", createdBy)
	})
	if err != nil {
		return nil, err
	}

	s.Dispatcher.Dispatch(notify.Event{
		Type:        notification.NotifBookingCreated,
		RoutingKey:  notify.RKBookingCreated,
		RecipientID: vendor.OwnerUserID,
		Title:       "New booking request",
		BookingID:   booking.ID,
		Payload: map[string]interface{}{
			"booking_uuid": booking.Uuid,
			"event_date":   booking.EventDate.Format("2006-01-02"),
			"shift_id":     booking.ShiftID,
			"package":      pkg.Name,
		},
	})

	return &booking, nil
}

// VendorAccept moves pending → confirmed. Only the vendor the booking was
// placed with may accept.
func (s *Service) VendorAccept(actor types.Actor, bookingID uint) (*bookingModel.Booking, error) {
	booking, err := s.get(bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.OwnsVendor(booking.VendorID) {
		return nil, ErrUnauthorized
	}
	if booking.Status != bookingModel.BookingStatusPending {
		return nil, ErrInvalidTransition
	}

	booking.Status = bookingModel.BookingStatusConfirmed
	if err := s.persistTransition(booking, "vendor_accepted", actor); err != nil {
		return nil, err
	}

	s.Dispatcher.Dispatch(notify.Event{
		Type:        notification.NotifBookingConfirmed,
		RoutingKey:  notify.RKBookingConfirmed,
		RecipientID: booking.UserID,
		Title:       "Your booking was accepted",
		BookingID:   booking.ID,
		Payload:     map[string]interface{}{"booking_uuid": booking.Uuid},
	})

	return booking, nil
}

// VendorReject moves pending → cancelled_by_vendor.
func (s *Service) VendorReject(actor types.Actor, bookingID uint) (*bookingModel.Booking, error) {
	booking, err := s.get(bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.OwnsVendor(booking.VendorID) {
		return nil, ErrUnauthorized
	}
	if booking.Status != bookingModel.BookingStatusPending {
		return nil, ErrInvalidTransition
	}

	booking.Status = bookingModel.BookingStatusCancelledByVendor
	if err := s.persistTransition(booking, "vendor_rejected", actor); err != nil {
		return nil, err
	}

	s.Dispatcher.Dispatch(notify.Event{
		Type:        notification.NotifBookingRejected,
		RoutingKey:  notify.RKBookingRejected,
		RecipientID: booking.UserID,
		Title:       "Your booking was declined",
		BookingID:   booking.ID,
		Payload:     map[string]interface{}{"booking_uuid": booking.Uuid},
	})

	return booking, nil
}

// AdminApprove authorizes the work on a vendor-confirmed booking.
func (s *Service) AdminApprove(actor types.Actor, bookingID uint) (*bookingModel.Booking, error) {
	booking, err := s.get(bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if booking.Status != bookingModel.BookingStatusConfirmed ||
		booking.AdminApproval != bookingModel.AdminApprovalPending {
		return nil, ErrInvalidTransition
	}

	booking.AdminApproval = bookingModel.AdminApprovalApproved
	if err := s.persistTransition(booking, "admin_approved", actor); err != nil {
		return nil, err
	}

	s.Dispatcher.Dispatch(
		notify.Event{
			Type:        notification.NotifBookingApproved,
			RoutingKey:  notify.RKBookingApproved,
			RecipientID: booking.UserID,
			Title:       "Your booking was approved",
			BookingID:   booking.ID,
			Payload:     map[string]interface{}{"booking_uuid": booking.Uuid},
		},
		notify.Event{
			Type:        notification.NotifBookingApproved,
			RoutingKey:  notify.RKBookingApproved,
			RecipientID: booking.Vendor.OwnerUserID,
			Title:       "Booking approved for service",
			BookingID:   booking.ID,
			Payload:     map[string]interface{}{"booking_uuid": booking.Uuid},
		},
	)

	return booking, nil
}

// AdminReject refuses platform authorization for a vendor-confirmed booking.
func (s *Service) AdminReject(actor types.Actor, bookingID uint) (*bookingModel.Booking, error) {
	booking, err := s.get(bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if booking.Status != bookingModel.BookingStatusConfirmed ||
		booking.AdminApproval != bookingModel.AdminApprovalPending {
		return nil, ErrInvalidTransition
	}

	booking.Status = bookingModel.BookingStatusRejectedByAdmin
	booking.AdminApproval = bookingModel.AdminApprovalRejected
	if err := s.persistTransition(booking, "admin_rejected", actor); err != nil {
		return nil, err
	}

	s.Dispatcher.Dispatch(
		notify.Event{
			Type:        notification.NotifBookingAdminRejected,
			RoutingKey:  notify.RKBookingAdminRejected,
			RecipientID: booking.UserID,
			Title:       "Your booking was rejected",
			BookingID:   booking.ID,
			Payload:     map[string]interface{}{"booking_uuid": booking.Uuid},
		},
		notify.Event{
			Type:        notification.NotifBookingAdminRejected,
			RoutingKey:  notify.RKBookingAdminRejected,
			RecipientID: booking.Vendor.OwnerUserID,
			Title:       "Booking rejected by the platform",
			BookingID:   booking.ID,
			Payload:     map[string]interface{}{"booking_uuid": booking.Uuid},
		},
	)

	return booking, nil
}

// Cancel lets the booking's user or its vendor withdraw before service is
// verified. Any still-active OTP is invalidated in the same transaction.
func (s *Service) Cancel(actor types.Actor, bookingID uint) (*bookingModel.Booking, error) {
	booking, err := s.get(bookingID)
	if err != nil {
		return nil, err
	}

	var newStatus bookingModel.BookingStatus
	var recipientID uint
	switch {
	case actor.Role == types.RoleUser && actor.UserID == booking.UserID:
		newStatus = bookingModel.BookingStatusCancelledByUser
		recipientID = booking.Vendor.OwnerUserID
	case actor.OwnsVendor(booking.VendorID):
		newStatus = bookingModel.BookingStatusCancelledByVendor
		recipientID = booking.UserID
	default:
		return nil, ErrUnauthorized
	}

	if !booking.Status.CanBeCancelled() {
		return nil, ErrInvalidTransition
	}

	updatedBy := strconv.FormatUint(uint64(actor.UserID), 10)
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		booking.Status = newStatus
		booking.UpdatedBy = updatedBy
		if err := tx.Save(booking).Error; err != nil {
			return fmt.Errorf("failed to cancel booking: %w", err)
		}
		// A cancelled booking must not be completable by a code issued earlier.
		if err := tx.Table("otps").
			Where("booking_id = ? AND is_used = ?", booking.ID, false).
			Update("is_used", true).Error; err != nil {
			return fmt.Errorf("failed to invalidate booking OTPs: %w", err)
		}
		return booking_event.SnapshotBookingStatus(tx, booking, "cancelled", updatedBy)
	})
	if err != nil {
		return nil, err
	}

	s.Dispatcher.Dispatch(notify.Event{
		Type:        notification.NotifBookingCancelled,
		RoutingKey:  notify.RKBookingCancelled,
		RecipientID: recipientID,
		Title:       "Booking cancelled",
		BookingID:   booking.ID,
		Payload:     map[string]interface{}{"booking_uuid": booking.Uuid, "status": booking.Status},
	})

	return booking, nil
}

// CompleteVerification applies the otp_verified transition inside the OTP
// subsystem's transaction: confirmed(approved) → awaiting_review.
func (s *Service) CompleteVerification(tx *gorm.DB, booking *bookingModel.Booking, verifiedBy string) error {
	if !bookingModel.OTPEligible(booking.Status, booking.AdminApproval) {
		return ErrInvalidTransition
	}
	booking.Status = bookingModel.BookingStatusAwaitingReview
	booking.UpdatedBy = verifiedBy
	if err := tx.Save(booking).Error; err != nil {
		return fmt.Errorf("failed to complete verification: %w", err)
	}
	return booking_event.SnapshotBookingStatus(tx, booking, "otp_verified", verifiedBy)
}

// SubmitReview closes the loop: awaiting_review → completed with exactly one
// review per booking.
func (s *Service) SubmitReview(actor types.Actor, bookingID uint, rating int, comment string) (*bookingModel.Booking, error) {
	booking, err := s.get(bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role != types.RoleUser || actor.UserID != booking.UserID {
		return nil, ErrUnauthorized
	}
	if booking.Status != bookingModel.BookingStatusAwaitingReview {
		return nil, ErrInvalidTransition
	}

	updatedBy := strconv.FormatUint(uint64(actor.UserID), 10)
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		review := reviewModel.Review{
			BookingID: booking.ID,
			UserID:    booking.UserID,
			VendorID:  booking.VendorID,
			Rating:    rating,
			Comment:   comment,
		}
		if err := tx.Create(&review).Error; err != nil {
			if slot.IsUniqueViolation(err) {
				return ErrInvalidTransition
			}
			return fmt.Errorf("failed to create review: %w", err)
		}

		booking.Status = bookingModel.BookingStatusCompleted
		booking.UpdatedBy = updatedBy
		if err := tx.Save(booking).Error; err != nil {
			return fmt.Errorf("failed to complete booking: %w", err)
		}
		return booking_event.SnapshotBookingStatus(tx, booking, "review_submitted", updatedBy)
	})
	if err != nil {
		return nil, err
	}

	s.Dispatcher.Dispatch(notify.Event{
		Type:        notification.NotifReviewSubmitted,
		RoutingKey:  notify.RKReviewSubmitted,
		RecipientID: booking.Vendor.OwnerUserID,
		Title:       "New review received",
		BookingID:   booking.ID,
		Payload:     map[string]interface{}{"booking_uuid": booking.Uuid, "rating": rating},
	})

	return booking, nil
}

// Remove soft-deletes a booking (admin only). The row survives for audit but
// leaves the ledger and all queries.
func (s *Service) Remove(actor types.Actor, bookingID uint) error {
	if !actor.IsAdmin() {
		return ErrUnauthorized
	}
	booking, err := s.get(bookingID)
	if err != nil {
		return err
	}

	updatedBy := strconv.FormatUint(uint64(actor.UserID), 10)
	now := time.Now()
	return s.DB.Transaction(func(tx *gorm.DB) error {
		booking.RemovedAt = &now
		booking.UpdatedBy = updatedBy
		if err := tx.Save(booking).Error; err != nil {
			return fmt.Errorf("failed to remove booking: %w", err)
		}
		return booking_event.SnapshotBookingStatus(tx, booking, "removed", updatedBy)
	})
}

// Get returns a booking visible to the actor: its user, its vendor, or any
// admin.
func (s *Service) Get(actor types.Actor, bookingID uint) (*bookingModel.Booking, error) {
	booking, err := s.get(bookingID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != booking.UserID && !actor.OwnsVendor(booking.VendorID) && !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return booking, nil
}

// List returns the actor's bookings, newest first.
func (s *Service) List(actor types.Actor, limit, offset int) ([]bookingModel.Booking, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := s.DB.Model(&bookingModel.Booking{}).Where("removed_at IS NULL")
	switch {
	case actor.IsAdmin():
		// all bookings
	case actor.Role == types.RoleVendor && actor.VendorID != nil:
		q = q.Where("vendor_id = ?", *actor.VendorID)
	default:
		q = q.Where("user_id = ?", actor.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var bookings []bookingModel.Booking
	if err := q.Preload("Shift").Preload("Package").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&bookings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, total, nil
}

func (s *Service) get(bookingID uint) (*bookingModel.Booking, error) {
	var booking bookingModel.Booking
	err := s.DB.Preload("Vendor").
		Where("removed_at IS NULL").
		First(&booking, bookingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	return &booking, nil
}

func (s *Service) persistTransition(booking *bookingModel.Booking, eventType string, actor types.Actor) error {
	updatedBy := strconv.FormatUint(uint64(actor.UserID), 10)
	booking.UpdatedBy = updatedBy
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(booking).Error; err != nil {
			return fmt.Errorf("failed to persist transition: %w", err)
		}
		return booking_event.SnapshotBookingStatus(tx, booking, eventType, updatedBy)
	})
}
