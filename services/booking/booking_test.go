package booking

import (
	"errors"
	"testing"
	"time"

	"vendor-booking/database"
	bookingModel "vendor-booking/models/booking"
	otpModel "vendor-booking/models/otp"
	userModel "vendor-booking/models/user"
	vendorModel "vendor-booking/models/vendor"
	"vendor-booking/services/notify"
	"vendor-booking/services/slot"
	"vendor-booking/types"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type fixture struct {
	db      *gorm.DB
	svc     *Service
	user    types.Actor
	vendor  types.Actor
	admin   types.Actor
	shift   vendorModel.Shift
	shift2  vendorModel.Shift
	pkg     vendorModel.Package
	company vendorModel.Vendor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	// Run the lifecycle under the production slot constraint.
	if err := database.CreateSlotUniqueIndexes(db); err != nil {
		t.Fatalf("failed to create slot indexes: %v", err)
	}

	customer := userModel.User{Uuid: "u-customer", Username: "customer", LegalName: "Customer One", Phone: "01711111111", Role: userModel.RoleUser}
	owner := userModel.User{Uuid: "u-owner", Username: "owner", LegalName: "Owner One", Phone: "01722222222", Role: userModel.RoleVendor}
	adminUser := userModel.User{Uuid: "u-admin", Username: "admin", LegalName: "Admin One", Phone: "01733333333", Role: userModel.RoleAdmin}
	for _, u := range []*userModel.User{&customer, &owner, &adminUser} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	company := vendorModel.Vendor{OwnerUserID: owner.ID, BusinessName: "Moonlight Events", Phone: "01744444444", IsActive: true}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("failed to seed vendor: %v", err)
	}
	if err := db.Model(&owner).Update("vendor_id", company.ID).Error; err != nil {
		t.Fatalf("failed to link owner: %v", err)
	}

	shift := vendorModel.Shift{VendorID: company.ID, Name: "evening", StartsAt: "17:00", EndsAt: "22:00", IsActive: true}
	shift2 := vendorModel.Shift{VendorID: company.ID, Name: "morning", StartsAt: "09:00", EndsAt: "13:00", IsActive: true}
	pkg := vendorModel.Package{VendorID: company.ID, Name: "Standard", PriceCents: 250000, IsActive: true}
	for _, m := range []interface{}{&shift, &shift2, &pkg} {
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("failed to seed vendor data: %v", err)
		}
	}

	ledger := slot.NewLedger(db)
	dispatcher := notify.NewDispatcher(db, nil)

	return &fixture{
		db:      db,
		svc:     NewService(db, ledger, dispatcher),
		user:    types.Actor{UserID: customer.ID, Role: types.RoleUser},
		vendor:  types.Actor{UserID: owner.ID, VendorID: &company.ID, Role: types.RoleVendor},
		admin:   types.Actor{UserID: adminUser.ID, Role: types.RoleAdmin},
		shift:   shift,
		shift2:  shift2,
		pkg:     pkg,
		company: company,
	}
}

func (f *fixture) createParams() CreateParams {
	return CreateParams{
		VendorID:     f.company.ID,
		ShiftID:      f.shift.ID,
		PackageID:    f.pkg.ID,
		EventDate:    time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		EventTime:    "18:30",
		EventAddress: "12 Lake Road",
	}
}

func TestLifecycle_HappyPath(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Create(f.user, f.createParams())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if b.Status != bookingModel.BookingStatusPending || b.AdminApproval != bookingModel.AdminApprovalPending {
		t.Fatalf("new booking state = %s/%s, want pending/pending", b.Status, b.AdminApproval)
	}

	if _, err := f.svc.VendorAccept(f.vendor, b.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	b2, err := f.svc.AdminApprove(f.admin, b.ID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if b2.Status != bookingModel.BookingStatusConfirmed || b2.AdminApproval != bookingModel.AdminApprovalApproved {
		t.Fatalf("approved state = %s/%s, want confirmed/approved", b2.Status, b2.AdminApproval)
	}

	err = f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.CompleteVerification(tx, b2, "2")
	})
	if err != nil {
		t.Fatalf("complete verification failed: %v", err)
	}
	if b2.Status != bookingModel.BookingStatusAwaitingReview {
		t.Fatalf("status = %s, want awaiting_review", b2.Status)
	}

	b3, err := f.svc.SubmitReview(f.user, b.ID, 5, "great")
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if b3.Status != bookingModel.BookingStatusCompleted {
		t.Fatalf("status = %s, want completed", b3.Status)
	}

	// Every transition left an audit row.
	var events int64
	if err := f.db.Table("booking_status_events").Where("booking_id = ?", b.ID).Count(&events).Error; err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	if events != 5 {
		t.Fatalf("status events = %d, want 5", events)
	}
}

func TestCreate_SlotConflict(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Create(f.user, f.createParams()); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := f.svc.Create(f.user, f.createParams()); !errors.Is(err, slot.ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}

	params := f.createParams()
	params.ShiftID = f.shift2.ID
	if _, err := f.svc.Create(f.user, params); err != nil {
		t.Fatalf("other shift should be free: %v", err)
	}
}

func TestCreate_UnknownReferences(t *testing.T) {
	f := newFixture(t)

	params := f.createParams()
	params.ShiftID = 9999
	if _, err := f.svc.Create(f.user, params); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown shift, got %v", err)
	}

	params = f.createParams()
	params.VendorID = 9999
	if _, err := f.svc.Create(f.user, params); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown vendor, got %v", err)
	}
}

func TestVendorAccept_Guards(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(f.user, f.createParams())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	otherVendorID := f.company.ID + 100
	stranger := types.Actor{UserID: 99, VendorID: &otherVendorID, Role: types.RoleVendor}
	if _, err := f.svc.VendorAccept(stranger, b.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if _, err := f.svc.VendorAccept(f.vendor, b.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if _, err := f.svc.VendorAccept(f.vendor, b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double accept, got %v", err)
	}
}

func TestAdminApprove_Guards(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(f.user, f.createParams())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := f.svc.AdminApprove(f.vendor, b.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin, got %v", err)
	}
	// Approval needs vendor confirmation first.
	if _, err := f.svc.AdminApprove(f.admin, b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on pending booking, got %v", err)
	}
}

func TestAdminReject_Terminates(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(f.user, f.createParams())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.svc.VendorAccept(f.vendor, b.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	b2, err := f.svc.AdminReject(f.admin, b.ID)
	if err != nil {
		t.Fatalf("admin reject failed: %v", err)
	}
	if b2.Status != bookingModel.BookingStatusRejectedByAdmin || b2.AdminApproval != bookingModel.AdminApprovalRejected {
		t.Fatalf("state = %s/%s, want rejected_by_admin/rejected", b2.Status, b2.AdminApproval)
	}

	// The slot is free again.
	if _, err := f.svc.Create(f.user, f.createParams()); err != nil {
		t.Fatalf("slot should be free after admin rejection: %v", err)
	}
}

func TestCancel_ByUserFreesSlotAndInvalidatesOTP(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(f.user, f.createParams())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	code := otpModel.OTP{BookingID: b.ID, Code: "123456", GeneratedBy: "2", MaxAttempts: otpModel.MaxAttempts, ExpiresAt: time.Now().Add(otpModel.CodeTTL)}
	if err := f.db.Create(&code).Error; err != nil {
		t.Fatalf("failed to seed otp: %v", err)
	}

	b2, err := f.svc.Cancel(f.user, b.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if b2.Status != bookingModel.BookingStatusCancelledByUser {
		t.Fatalf("status = %s, want cancelled_by_user", b2.Status)
	}

	var reloaded otpModel.OTP
	if err := f.db.First(&reloaded, code.ID).Error; err != nil {
		t.Fatalf("failed to reload otp: %v", err)
	}
	if !reloaded.IsUsed {
		t.Fatal("cancel should invalidate the active OTP")
	}

	if _, err := f.svc.Create(f.user, f.createParams()); err != nil {
		t.Fatalf("slot should be free after cancel: %v", err)
	}
}

func TestCancel_Guards(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(f.user, f.createParams())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stranger := types.Actor{UserID: 777, Role: types.RoleUser}
	if _, err := f.svc.Cancel(stranger, b.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if _, err := f.svc.VendorReject(f.vendor, b.ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if _, err := f.svc.Cancel(f.user, b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on terminal booking, got %v", err)
	}
}

func TestSubmitReview_Guards(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(f.user, f.createParams())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Not awaiting review yet.
	if _, err := f.svc.SubmitReview(f.user, b.ID, 5, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := f.svc.VendorAccept(f.vendor, b.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	approved, err := f.svc.AdminApprove(f.admin, b.ID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	err = f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.CompleteVerification(tx, approved, "2")
	})
	if err != nil {
		t.Fatalf("complete verification failed: %v", err)
	}

	if _, err := f.svc.SubmitReview(f.vendor, b.ID, 5, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for vendor review, got %v", err)
	}
	if _, err := f.svc.SubmitReview(f.user, b.ID, 4, "good"); err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if _, err := f.svc.SubmitReview(f.user, b.ID, 1, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on duplicate review, got %v", err)
	}
}

func TestRemove_HidesBooking(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(f.user, f.createParams())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := f.svc.Remove(f.user, b.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin, got %v", err)
	}
	if err := f.svc.Remove(f.admin, b.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := f.svc.Get(f.admin, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(f.user, f.createParams())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for _, actor := range []types.Actor{f.user, f.vendor, f.admin} {
		if _, err := f.svc.Get(actor, b.ID); err != nil {
			t.Fatalf("participant %d should see the booking: %v", actor.UserID, err)
		}
	}

	stranger := types.Actor{UserID: 777, Role: types.RoleUser}
	if _, err := f.svc.Get(stranger, b.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for stranger, got %v", err)
	}
}

func TestList_Scoping(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Create(f.user, f.createParams()); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	params := f.createParams()
	params.ShiftID = f.shift2.ID
	if _, err := f.svc.Create(f.user, params); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, total, err := f.svc.List(f.user, 20, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("user total = %d, want 2", total)
	}

	_, total, err = f.svc.List(types.Actor{UserID: 777, Role: types.RoleUser}, 20, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("stranger total = %d, want 0", total)
	}
}
