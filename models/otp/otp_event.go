package otp

import (
	"time"
)

// OTPEvent represents an OTP event record mirroring OTP fields. The code is
// stored encrypted; the plain code never leaves the otps table.
type OTPEvent struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	OTPID     uint `gorm:"not null;index" json:"otp_id"`
	BookingID uint `gorm:"not null;index" json:"booking_id"`

	CodeEncrypted string     `gorm:"type:text" json:"-"`
	GeneratedBy   string     `gorm:"type:varchar(255);not null" json:"generated_by"`
	AttemptsCount int        `gorm:"default:0" json:"attempts_count"`
	MaxAttempts   int        `gorm:"default:3" json:"max_attempts"`
	IsUsed        bool       `gorm:"default:false" json:"is_used"`
	IsLocked      bool       `gorm:"default:false" json:"is_locked"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	ExpiresAt     time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	EventType string `gorm:"type:varchar(50);not null;index" json:"event_type"` // generated, verified, locked, superseded, etc.
}
