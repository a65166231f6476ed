package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"vendor-booking/database"
	bookingModel "vendor-booking/models/booking"
	"vendor-booking/models/notification"
	otpModel "vendor-booking/models/otp"
	bookingService "vendor-booking/services/booking"
	"vendor-booking/services/notify"
	"vendor-booking/services/otp_event"
	"vendor-booking/types"

	"gorm.io/gorm"
)

// Verification failures. All are recoverable: the caller retries with a
// corrected code or waits out a timer.
var (
	ErrOTPNotFound    = errors.New("otp_not_found")
	ErrOTPExpired     = errors.New("otp_expired")
	ErrOTPAlreadyUsed = errors.New("otp_already_used")
	ErrOTPMismatch    = errors.New("otp_mismatch")
	ErrOTPLocked      = errors.New("otp_locked")
	ErrResendTooSoon  = errors.New("resend_too_soon")
)

// ResendTooSoonError carries the earliest retry timestamp. It matches
// ErrResendTooSoon under errors.Is.
type ResendTooSoonError struct {
	RetryAt time.Time
}

func (e *ResendTooSoonError) Error() string {
	return fmt.Sprintf("resend throttled until %s", e.RetryAt.Format("15:04:05"))
}

func (e *ResendTooSoonError) Is(target error) bool {
	return target == ErrResendTooSoon
}

// State is the derived, read-only OTP status of a booking.
type State string

const (
	StateNoOTP    State = "no_otp"
	StateActive   State = "active"
	StateExpired  State = "expired"
	StateLocked   State = "locked"
	StateVerified State = "verified"
)

// Service handles OTP operations for bookings. Generation and verification
// are gated by the booking state machine: both require the booking to be
// confirmed with admin approval granted.
type Service struct {
	DB         *gorm.DB
	Bookings   *bookingService.Service
	Dispatcher *notify.Dispatcher
}

// NewOTPService creates a new OTP service
func NewOTPService(db *gorm.DB, bookings *bookingService.Service, dispatcher *notify.Dispatcher) *Service {
	return &Service{
		DB:         db,
		Bookings:   bookings,
		Dispatcher: dispatcher,
	}
}

// generateCode returns a cryptographically random 6-digit code uniform over
// [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Generate creates a fresh OTP for an approved booking, atomically
// invalidating any prior active OTP so at most one non-used code exists per
// booking. The code goes to the user out-of-band; the vendor caller never
// sees it.
func (s *Service) Generate(actor types.Actor, bookingID uint) (*otpModel.OTP, error) {
	booking, err := s.vendorBooking(actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !bookingModel.OTPEligible(booking.Status, booking.AdminApproval) {
		return nil, bookingService.ErrInvalidTransition
	}
	return s.issue(booking, actor, false)
}

// Resend behaves exactly as Generate, but throttled: any OTP (used or not)
// created for this booking within the cooldown window blocks a new one.
func (s *Service) Resend(actor types.Actor, bookingID uint) (*otpModel.OTP, error) {
	booking, err := s.vendorBooking(actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !bookingModel.OTPEligible(booking.Status, booking.AdminApproval) {
		return nil, bookingService.ErrInvalidTransition
	}
	return s.issue(booking, actor, true)
}

// issue inserts a fresh OTP. All issuance for a booking serializes on the
// booking row lock, and the cooldown read runs inside the same transaction,
// so two concurrent resends in the window cannot both pass the throttle and
// a concurrent issuer's code is always seen and superseded.
func (s *Service) issue(booking *bookingModel.Booking, actor types.Actor, throttled bool) (*otpModel.OTP, error) {
	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP code: %w", err)
	}

	generatedBy := strconv.FormatUint(uint64(actor.UserID), 10)
	newOTP := &otpModel.OTP{
		BookingID:   booking.ID,
		Code:        code,
		GeneratedBy: generatedBy,
		MaxAttempts: otpModel.MaxAttempts,
		ExpiresAt:   time.Now().Add(otpModel.CodeTTL),
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var locked bookingModel.Booking
		if err := database.LockForUpdate(tx).First(&locked, booking.ID).Error; err != nil {
			return fmt.Errorf("failed to lock booking: %w", err)
		}
		// Re-check under the lock: a concurrent cancel may have landed since
		// the guard outside.
		if !bookingModel.OTPEligible(locked.Status, locked.AdminApproval) {
			return bookingService.ErrInvalidTransition
		}

		if throttled {
			var last otpModel.OTP
			err := tx.Where("booking_id = ?", booking.ID).
				Order("created_at DESC").
				First(&last).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to load last OTP: %w", err)
			}
			if err == nil {
				retryAt := last.CreatedAt.Add(otpModel.ResendCooldown)
				if time.Now().Before(retryAt) {
					return &ResendTooSoonError{RetryAt: retryAt}
				}
			}
		}

		// Invalidate any existing active OTPs for this booking before the
		// new one appears, keeping the at-most-one-active invariant.
		var active []otpModel.OTP
		if err := tx.Where("booking_id = ? AND is_used = ?", booking.ID, false).
			Find(&active).Error; err != nil {
			return fmt.Errorf("failed to load active OTPs: %w", err)
		}
		for i := range active {
			active[i].IsUsed = true
			if err := tx.Save(&active[i]).Error; err != nil {
				return fmt.Errorf("failed to invalidate existing OTP: %w", err)
			}
			if err := otp_event.SnapshotOTPToEvent(tx, &active[i], "superseded"); err != nil {
				return err
			}
		}

		if err := tx.Create(newOTP).Error; err != nil {
			return fmt.Errorf("failed to create OTP record: %w", err)
		}
		return otp_event.SnapshotOTPToEvent(tx, newOTP, "generated")
	})
	if err != nil {
		return nil, err
	}

	s.Dispatcher.Dispatch(notify.Event{
		Type:        notification.NotifOTPGenerated,
		RoutingKey:  notify.RKOTPGenerated,
		RecipientID: booking.UserID,
		Title:       "Your service confirmation code",
		BookingID:   booking.ID,
		Payload: map[string]interface{}{
			"code":       newOTP.Code,
			"expires_at": newOTP.ExpiresAt.Format(time.RFC3339),
		},
	})

	return newOTP, nil
}

// Verify checks the submitted code against the booking's active OTP. The
// attempt counter and lock transition are applied in a row-locked
// transaction so two concurrent wrong guesses cannot both observe the same
// count. On a match the booking's otp_verified transition runs in the same
// transaction. The OTP record accompanies most failures so callers can
// report remaining attempts or lock windows.
func (s *Service) Verify(actor types.Actor, bookingID uint, submittedCode string) (*otpModel.OTP, error) {
	booking, err := s.vendorBooking(actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !bookingModel.OTPEligible(booking.Status, booking.AdminApproval) {
		return nil, bookingService.ErrInvalidTransition
	}

	var current otpModel.OTP
	err = s.DB.Where("booking_id = ? AND is_used = ?", booking.ID, false).
		Order("created_at DESC").
		First(&current).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.classifyMissing(booking.ID)
		}
		return nil, fmt.Errorf("failed to find OTP record: %w", err)
	}

	verifiedBy := strconv.FormatUint(uint64(actor.UserID), 10)
	var otpRecord otpModel.OTP
	var verifyErr error

	txErr := s.DB.Transaction(func(tx *gorm.DB) error {
		// Re-read under lock: the attempt increment must be a single atomic
		// read-modify-write per row.
		if err := database.LockForUpdate(tx).First(&otpRecord, current.ID).Error; err != nil {
			return fmt.Errorf("failed to lock OTP record: %w", err)
		}

		if otpRecord.IsUsed {
			verifyErr = ErrOTPAlreadyUsed
			return nil
		}

		if otpRecord.IsLocked {
			if otpRecord.IsCurrentlyLocked() {
				verifyErr = ErrOTPLocked
				return nil
			}
			// Lock window elapsed: reset and continue with this attempt.
			otpRecord.Unlock()
			if err := tx.Save(&otpRecord).Error; err != nil {
				return fmt.Errorf("failed to unlock OTP: %w", err)
			}
			if err := otp_event.SnapshotOTPToEvent(tx, &otpRecord, "unlocked"); err != nil {
				return err
			}
		}

		if otpRecord.IsExpired() {
			verifyErr = ErrOTPExpired
			return nil
		}

		if subtle.ConstantTimeCompare([]byte(otpRecord.Code), []byte(submittedCode)) != 1 {
			otpRecord.RegisterFailedAttempt()
			if err := tx.Save(&otpRecord).Error; err != nil {
				return fmt.Errorf("failed to update attempt count: %w", err)
			}
			eventType := "attempt_failed"
			verifyErr = ErrOTPMismatch
			if otpRecord.IsLocked {
				eventType = "locked"
				verifyErr = ErrOTPLocked
			}
			return otp_event.SnapshotOTPToEvent(tx, &otpRecord, eventType)
		}

		otpRecord.MarkVerified()
		if err := tx.Save(&otpRecord).Error; err != nil {
			return fmt.Errorf("failed to mark OTP as used: %w", err)
		}
		if err := otp_event.SnapshotOTPToEvent(tx, &otpRecord, "verified"); err != nil {
			return err
		}
		return s.Bookings.CompleteVerification(tx, booking, verifiedBy)
	})
	if txErr != nil {
		return nil, txErr
	}
	if verifyErr != nil {
		s.notifyFailure(booking, &otpRecord, verifyErr)
		return &otpRecord, verifyErr
	}

	s.Dispatcher.Dispatch(
		notify.Event{
			Type:        notification.NotifOTPVerified,
			RoutingKey:  notify.RKOTPVerified,
			RecipientID: booking.UserID,
			Title:       "Service delivery confirmed",
			BookingID:   booking.ID,
			Payload:     map[string]interface{}{"booking_uuid": booking.Uuid},
		},
		notify.Event{
			Type:        notification.NotifOTPVerified,
			RoutingKey:  notify.RKOTPVerified,
			RecipientID: booking.Vendor.OwnerUserID,
			Title:       "Service delivery confirmed",
			BookingID:   booking.ID,
			Payload:     map[string]interface{}{"booking_uuid": booking.Uuid},
		},
	)

	return &otpRecord, nil
}

// Status derives the OTP state of a booking without mutating attempt
// counters or locks. Only Verify mutates.
func (s *Service) Status(actor types.Actor, bookingID uint) (State, *otpModel.OTP, error) {
	booking, err := s.Bookings.Get(actor, bookingID)
	if err != nil {
		return "", nil, err
	}

	var verified otpModel.OTP
	err = s.DB.Where("booking_id = ? AND verified_at IS NOT NULL", booking.ID).
		Order("verified_at DESC").
		First(&verified).Error
	if err == nil {
		return StateVerified, &verified, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, fmt.Errorf("failed to check verified OTP: %w", err)
	}

	var latest otpModel.OTP
	err = s.DB.Where("booking_id = ?", booking.ID).
		Order("created_at DESC").
		First(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StateNoOTP, nil, nil
		}
		return "", nil, fmt.Errorf("failed to load latest OTP: %w", err)
	}

	switch {
	case latest.IsCurrentlyLocked():
		return StateLocked, &latest, nil
	case latest.IsUsed:
		// Superseded without verification; nothing is redeemable.
		return StateNoOTP, &latest, nil
	case latest.IsExpired():
		return StateExpired, &latest, nil
	default:
		return StateActive, &latest, nil
	}
}

// classifyMissing distinguishes "no code was ever issued" from "the code was
// already consumed".
func (s *Service) classifyMissing(bookingID uint) (*otpModel.OTP, error) {
	var used otpModel.OTP
	err := s.DB.Where("booking_id = ? AND is_used = ?", bookingID, true).
		Order("created_at DESC").
		First(&used).Error
	if err == nil && used.VerifiedAt != nil {
		return &used, ErrOTPAlreadyUsed
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find OTP record: %w", err)
	}
	return nil, ErrOTPNotFound
}

// vendorBooking loads the booking and checks the acting vendor owns it.
func (s *Service) vendorBooking(actor types.Actor, bookingID uint) (*bookingModel.Booking, error) {
	booking, err := s.Bookings.Get(actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.OwnsVendor(booking.VendorID) {
		return nil, bookingService.ErrUnauthorized
	}
	return booking, nil
}

func (s *Service) notifyFailure(booking *bookingModel.Booking, otpRecord *otpModel.OTP, verifyErr error) {
	if !errors.Is(verifyErr, ErrOTPLocked) {
		return
	}
	payload := map[string]interface{}{"booking_uuid": booking.Uuid}
	if otpRecord.LockedUntil != nil {
		payload["locked_until"] = otpRecord.LockedUntil.Format(time.RFC3339)
	}
	s.Dispatcher.Dispatch(notify.Event{
		Type:        notification.NotifOTPLocked,
		RoutingKey:  notify.RKOTPLocked,
		RecipientID: booking.Vendor.OwnerUserID,
		Title:       "Confirmation code locked after repeated failures",
		BookingID:   booking.ID,
		Payload:     payload,
	})
}
