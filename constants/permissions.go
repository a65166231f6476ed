package constants

// Organization permissions
const (
	PermSuperAdminFull = "vendor-booking.super-admin.full-permit"
	PermAdminFull      = "vendor-booking.admin.full-permit"
	PermVendorFull     = "vendor-booking.vendor.full-permit"
	PermCustomerFull   = "vendor-booking.customer.full-permit"

	// Special permissions
	PermAny = "any"
)

// Permission groups for convenience
var (
	AdminPermissions = []string{
		PermSuperAdminFull,
		PermAdminFull,
	}
)
