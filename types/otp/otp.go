package otp

import (
	"fmt"
)

// GenerateOTPRequest represents the request payload for generating an OTP
// for a booking. The code itself is delivered to the user out-of-band and
// never appears in the response.
type GenerateOTPRequest struct {
	BookingID uint `json:"booking_id" validate:"required"`
}

func (r GenerateOTPRequest) Validate() error {
	if r.BookingID == 0 {
		return fmt.Errorf("booking_id is required")
	}
	return nil
}

// VerifyOTPRequest represents the request payload for verifying an OTP
type VerifyOTPRequest struct {
	BookingID uint   `json:"booking_id" validate:"required"`
	Code      string `json:"code" validate:"required,len=6"`
}

func (r VerifyOTPRequest) Validate() error {
	if r.BookingID == 0 {
		return fmt.Errorf("booking_id is required")
	}
	if len(r.Code) != 6 {
		return fmt.Errorf("code must be 6 digits")
	}
	return nil
}

// OTPResponse represents the response for OTP operations
type OTPResponse struct {
	Message           string `json:"message"`
	ExpiresAt         string `json:"expires_at,omitempty"`
	Success           bool   `json:"success"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
	LockedUntil       string `json:"locked_until,omitempty"`
	RetryAt           string `json:"retry_at,omitempty"`
}
