package otp_event

import (
	otpModel "vendor-booking/models/otp"
	"vendor-booking/utils"

	"gorm.io/gorm"
)

// SnapshotOTPToEvent writes a full snapshot of an OTP row into OTPEvent with
// the given event type. The code is stored encrypted; snapshots never hold
// it in the clear.
func SnapshotOTPToEvent(tx *gorm.DB, o *otpModel.OTP, eventType string) error {
	codeEncrypted, err := utils.EncryptData(o.Code)
	if err != nil {
		// The audit row is still worth keeping without the code copy.
		codeEncrypted = ""
	}

	ev := otpModel.OTPEvent{
		OTPID:         o.ID,
		BookingID:     o.BookingID,
		CodeEncrypted: codeEncrypted,
		GeneratedBy:   o.GeneratedBy,
		AttemptsCount: o.AttemptsCount,
		MaxAttempts:   o.MaxAttempts,
		IsUsed:        o.IsUsed,
		IsLocked:      o.IsLocked,
		LockedUntil:   o.LockedUntil,
		LastAttemptAt: o.LastAttemptAt,
		VerifiedAt:    o.VerifiedAt,
		ExpiresAt:     o.ExpiresAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		EventType:     eventType,
	}

	return tx.Create(&ev).Error
}
