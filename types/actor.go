package types

// Actor is the resolved identity of an authenticated caller. The middleware
// fills it from validated token claims; the core trusts it as given.
type Actor struct {
	UserID   uint
	VendorID *uint
	Role     string // user, vendor, admin
}

const (
	RoleUser   = "user"
	RoleVendor = "vendor"
	RoleAdmin  = "admin"
)

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// OwnsVendor reports whether the actor is the vendor owning vendorID.
func (a Actor) OwnsVendor(vendorID uint) bool {
	return a.Role == RoleVendor && a.VendorID != nil && *a.VendorID == vendorID
}
