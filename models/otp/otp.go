package otp

import (
	"time"
)

// Contract constants for the OTP lifecycle. Tests depend on these defaults.
const (
	CodeTTL        = 10 * time.Minute
	LockDuration   = 15 * time.Minute
	MaxAttempts    = 3
	ResendCooldown = 2 * time.Minute
)

// OTP represents a one-time code scoped to a single booking. At most one
// non-used row exists per booking at any instant.
type OTP struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	BookingID uint `gorm:"not null;index" json:"booking_id"`

	Code          string     `gorm:"column:code;type:varchar(6);not null" json:"-"`
	GeneratedBy   string     `gorm:"type:varchar(255);not null" json:"generated_by"`
	AttemptsCount int        `gorm:"default:0" json:"attempts_count"`
	MaxAttempts   int        `gorm:"default:3" json:"max_attempts"`
	IsUsed        bool       `gorm:"default:false" json:"is_used"`
	IsLocked      bool       `gorm:"default:false" json:"is_locked"`
	LockedUntil   *time.Time `gorm:"index" json:"locked_until,omitempty"`
	LastAttemptAt *time.Time `gorm:"index" json:"last_attempt_at,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	ExpiresAt     time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsExpired checks if the OTP has expired
func (o *OTP) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}

// IsCurrentlyLocked reports whether the lock window is still in force.
func (o *OTP) IsCurrentlyLocked() bool {
	if !o.IsLocked {
		return false
	}
	if o.LockedUntil == nil {
		return true
	}
	return time.Now().Before(*o.LockedUntil)
}

// IsActive checks if the OTP can still be verified (not used, not expired,
// not locked).
func (o *OTP) IsActive() bool {
	return !o.IsUsed && !o.IsExpired() && !o.IsCurrentlyLocked()
}

// AttemptsRemaining returns how many wrong guesses are left before the lock.
func (o *OTP) AttemptsRemaining() int {
	remaining := o.MaxAttempts - o.AttemptsCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RegisterFailedAttempt increments the attempt count and locks the OTP for
// LockDuration once the count reaches MaxAttempts.
func (o *OTP) RegisterFailedAttempt() {
	now := time.Now()
	o.AttemptsCount++
	o.LastAttemptAt = &now

	if o.AttemptsCount >= o.MaxAttempts {
		o.IsLocked = true
		lockedUntil := now.Add(LockDuration)
		o.LockedUntil = &lockedUntil
	}
}

// Unlock resets the attempt state after an expired lock window.
func (o *OTP) Unlock() {
	o.AttemptsCount = 0
	o.IsLocked = false
	o.LockedUntil = nil
}

// MarkVerified consumes the OTP on a correct code entry.
func (o *OTP) MarkVerified() {
	now := time.Now()
	o.IsUsed = true
	o.VerifiedAt = &now
}
