package review

import (
	"time"
)

// Review is the downstream gate artifact: exactly one per booking, creatable
// only after OTP verification moved the booking to awaiting_review.
type Review struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	BookingID uint `gorm:"not null;uniqueIndex" json:"booking_id"`
	UserID    uint `gorm:"not null;index" json:"user_id"`
	VendorID  uint `gorm:"not null;index" json:"vendor_id"`

	Rating  int    `gorm:"not null" json:"rating"` // 1..5
	Comment string `gorm:"type:text" json:"comment"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
