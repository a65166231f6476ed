package booking

import (
	"time"

	"vendor-booking/models/user"
	"vendor-booking/models/vendor"
)

// Booking represents a request for a vendor's service slot on one event date.
type Booking struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Uuid string `gorm:"type:varchar(36);not null;unique" json:"uuid"`

	// Foreign key for users relationship
	UserID uint      `gorm:"not null;index" json:"user_id"`
	User   user.User `gorm:"foreignKey:UserID" json:"user"`

	// Foreign key for vendors relationship
	VendorID uint          `gorm:"not null;index" json:"vendor_id"`
	Vendor   vendor.Vendor `gorm:"foreignKey:VendorID" json:"vendor"`

	ShiftID uint         `gorm:"not null" json:"shift_id"`
	Shift   vendor.Shift `gorm:"foreignKey:ShiftID" json:"shift"`

	PackageID uint           `gorm:"not null" json:"package_id"`
	Package   vendor.Package `gorm:"foreignKey:PackageID" json:"package"`

	EventDate    time.Time `gorm:"type:date;not null;index" json:"event_date"`
	EventTime    string    `gorm:"type:varchar(20)" json:"event_time"`
	EventAddress string    `gorm:"type:text;not null" json:"event_address"`
	Latitude     *float64  `gorm:"type:decimal(10,7)" json:"latitude,omitempty"`
	Longitude    *float64  `gorm:"type:decimal(10,7)" json:"longitude,omitempty"`

	Status        BookingStatus `gorm:"type:varchar(50);not null;index" json:"status"`
	AdminApproval AdminApproval `gorm:"type:varchar(20);not null;default:pending" json:"admin_approval"`

	CreatedBy string     `gorm:"type:varchar(255);not null" json:"created_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedBy string     `gorm:"type:varchar(255)" json:"updated_by,omitempty"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	RemovedAt *time.Time `gorm:"index" json:"removed_at,omitempty"` // Soft remove field
}
