package otp

import (
	"errors"
	"testing"
	"time"

	"vendor-booking/database"
	bookingModel "vendor-booking/models/booking"
	otpModel "vendor-booking/models/otp"
	userModel "vendor-booking/models/user"
	vendorModel "vendor-booking/models/vendor"
	bookingService "vendor-booking/services/booking"
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
	booking *bookingModel.Booking
	user    types.Actor
	vendor  types.Actor
	admin   types.Actor
}

// newFixture seeds a booking already confirmed by the vendor and approved by
// the admin, the only state OTP operations accept.
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
	t.Setenv("ENCRYPTION_KEY", "test-encryption-key-32-bytes!!!!")

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
	shift := vendorModel.Shift{VendorID: company.ID, Name: "evening", StartsAt: "17:00", EndsAt: "22:00", IsActive: true}
	pkg := vendorModel.Package{VendorID: company.ID, Name: "Standard", PriceCents: 250000, IsActive: true}
	for _, m := range []interface{}{&shift, &pkg} {
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("failed to seed vendor data: %v", err)
		}
	}

	userActor := types.Actor{UserID: customer.ID, Role: types.RoleUser}
	vendorActor := types.Actor{UserID: owner.ID, VendorID: &company.ID, Role: types.RoleVendor}
	adminActor := types.Actor{UserID: adminUser.ID, Role: types.RoleAdmin}

	ledger := slot.NewLedger(db)
	dispatcher := notify.NewDispatcher(db, nil)
	bookings := bookingService.NewService(db, ledger, dispatcher)

	b, err := bookings.Create(userActor, bookingService.CreateParams{
		VendorID:     company.ID,
		ShiftID:      shift.ID,
		PackageID:    pkg.ID,
		EventDate:    time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		EventAddress: "12 Lake Road",
	})
	if err != nil {
		t.Fatalf("failed to create booking: %v", err)
	}
	if _, err := bookings.VendorAccept(vendorActor, b.ID); err != nil {
		t.Fatalf("failed to accept booking: %v", err)
	}
	b, err = bookings.AdminApprove(adminActor, b.ID)
	if err != nil {
		t.Fatalf("failed to approve booking: %v", err)
	}

	return &fixture{
		db:      db,
		svc:     NewOTPService(db, bookings, dispatcher),
		booking: b,
		user:    userActor,
		vendor:  vendorActor,
		admin:   adminActor,
	}
}

func (f *fixture) activeCode(t *testing.T) otpModel.OTP {
	t.Helper()
	var rec otpModel.OTP
	err := f.db.Where("booking_id = ? AND is_used = ?", f.booking.ID, false).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		t.Fatalf("failed to load active otp: %v", err)
	}
	return rec
}

func (f *fixture) wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

func TestGenerate_RequiresApprovedBooking(t *testing.T) {
	f := newFixture(t)

	// Reset to a state the OTP flow must refuse.
	if err := f.db.Model(&bookingModel.Booking{}).Where("id = ?", f.booking.ID).
		Update("admin_approval", bookingModel.AdminApprovalPending).Error; err != nil {
		t.Fatalf("failed to reset approval: %v", err)
	}
	if _, err := f.svc.Generate(f.vendor, f.booking.ID); !errors.Is(err, bookingService.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition without approval, got %v", err)
	}
}

func TestGenerate_VendorOnly(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Generate(f.user, f.booking.ID); !errors.Is(err, bookingService.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for customer, got %v", err)
	}
	if _, err := f.svc.Generate(f.admin, f.booking.ID); !errors.Is(err, bookingService.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for admin, got %v", err)
	}
}

func TestGenerate_SingleActiveCode(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(first.Code) != 6 {
		t.Fatalf("code length = %d, want 6", len(first.Code))
	}
	ttl := time.Until(first.ExpiresAt)
	if ttl < otpModel.CodeTTL-time.Minute || ttl > otpModel.CodeTTL {
		t.Fatalf("ttl = %v, want about %v", ttl, otpModel.CodeTTL)
	}

	second, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh OTP row")
	}

	var activeCount int64
	if err := f.db.Model(&otpModel.OTP{}).
		Where("booking_id = ? AND is_used = ?", f.booking.ID, false).
		Count(&activeCount).Error; err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if activeCount != 1 {
		t.Fatalf("active codes = %d, want 1", activeCount)
	}

	// The first code is superseded and no longer verifies.
	if _, err := f.svc.Verify(f.vendor, f.booking.ID, first.Code); err == nil {
		t.Fatal("superseded code must not verify")
	}
}

func TestVerify_Success(t *testing.T) {
	f := newFixture(t)

	issued, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	rec, err := f.svc.Verify(f.vendor, f.booking.ID, issued.Code)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !rec.IsUsed || rec.VerifiedAt == nil {
		t.Fatal("expected OTP consumed with verified_at set")
	}

	var b bookingModel.Booking
	if err := f.db.First(&b, f.booking.ID).Error; err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if b.Status != bookingModel.BookingStatusAwaitingReview {
		t.Fatalf("booking status = %s, want awaiting_review", b.Status)
	}
}

func TestVerify_ReplayRejected(t *testing.T) {
	f := newFixture(t)

	issued, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := f.svc.Verify(f.vendor, f.booking.ID, issued.Code); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	// The booking moved on; the state machine refuses before the code is
	// even looked at.
	if _, err := f.svc.Verify(f.vendor, f.booking.ID, issued.Code); !errors.Is(err, bookingService.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on replay, got %v", err)
	}
}

func TestVerify_WrongCodeCountsAndLocks(t *testing.T) {
	f := newFixture(t)

	issued, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	wrong := f.wrongCode(issued.Code)

	for attempt := 1; attempt < otpModel.MaxAttempts; attempt++ {
		rec, err := f.svc.Verify(f.vendor, f.booking.ID, wrong)
		if !errors.Is(err, ErrOTPMismatch) {
			t.Fatalf("attempt %d: expected ErrOTPMismatch, got %v", attempt, err)
		}
		if got := rec.AttemptsRemaining(); got != otpModel.MaxAttempts-attempt {
			t.Fatalf("attempt %d: remaining = %d, want %d", attempt, got, otpModel.MaxAttempts-attempt)
		}
	}

	rec, err := f.svc.Verify(f.vendor, f.booking.ID, wrong)
	if !errors.Is(err, ErrOTPLocked) {
		t.Fatalf("expected ErrOTPLocked on final attempt, got %v", err)
	}
	if rec.LockedUntil == nil {
		t.Fatal("expected locked_until to be set")
	}
	window := time.Until(*rec.LockedUntil)
	if window < otpModel.LockDuration-time.Minute || window > otpModel.LockDuration {
		t.Fatalf("lock window = %v, want about %v", window, otpModel.LockDuration)
	}

	// Even the correct code is refused while locked, and the counter stays put.
	if _, err := f.svc.Verify(f.vendor, f.booking.ID, issued.Code); !errors.Is(err, ErrOTPLocked) {
		t.Fatalf("expected ErrOTPLocked for correct code during lock, got %v", err)
	}
	reloaded := f.activeCode(t)
	if reloaded.AttemptsCount != otpModel.MaxAttempts {
		t.Fatalf("attempts = %d, want %d (locked attempts must not count)", reloaded.AttemptsCount, otpModel.MaxAttempts)
	}

	var b bookingModel.Booking
	if err := f.db.First(&b, f.booking.ID).Error; err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if b.Status != bookingModel.BookingStatusConfirmed {
		t.Fatalf("booking status = %s, want confirmed (lock must not advance it)", b.Status)
	}
}

func TestVerify_ExpiredLockResets(t *testing.T) {
	f := newFixture(t)

	issued, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	past := time.Now().Add(-time.Minute)
	err = f.db.Model(&otpModel.OTP{}).Where("id = ?", issued.ID).Updates(map[string]interface{}{
		"attempts_count": otpModel.MaxAttempts,
		"is_locked":      true,
		"locked_until":   past,
	}).Error
	if err != nil {
		t.Fatalf("failed to backdate lock: %v", err)
	}

	rec, err := f.svc.Verify(f.vendor, f.booking.ID, issued.Code)
	if err != nil {
		t.Fatalf("verify after lock expiry failed: %v", err)
	}
	if !rec.IsUsed {
		t.Fatal("expected OTP consumed")
	}
}

func TestVerify_ExpiredCode(t *testing.T) {
	f := newFixture(t)

	issued, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	err = f.db.Model(&otpModel.OTP{}).Where("id = ?", issued.ID).
		Update("expires_at", time.Now().Add(-time.Second)).Error
	if err != nil {
		t.Fatalf("failed to expire otp: %v", err)
	}

	if _, err := f.svc.Verify(f.vendor, f.booking.ID, issued.Code); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
}

func TestVerify_NoCodeIssued(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Verify(f.vendor, f.booking.ID, "123456"); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("expected ErrOTPNotFound, got %v", err)
	}
}

func TestResend_Throttled(t *testing.T) {
	f := newFixture(t)

	issued, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	_, err = f.svc.Resend(f.vendor, f.booking.ID)
	if !errors.Is(err, ErrResendTooSoon) {
		t.Fatalf("expected ErrResendTooSoon, got %v", err)
	}
	var tooSoon *ResendTooSoonError
	if !errors.As(err, &tooSoon) {
		t.Fatalf("expected ResendTooSoonError, got %T", err)
	}
	wait := time.Until(tooSoon.RetryAt)
	if wait <= 0 || wait > otpModel.ResendCooldown {
		t.Fatalf("retry_at in %v, want within %v", wait, otpModel.ResendCooldown)
	}

	// Outside the window the resend goes through and supersedes the old code.
	err = f.db.Model(&otpModel.OTP{}).Where("id = ?", issued.ID).
		UpdateColumn("created_at", time.Now().Add(-otpModel.ResendCooldown-time.Second)).Error
	if err != nil {
		t.Fatalf("failed to backdate otp: %v", err)
	}
	fresh, err := f.svc.Resend(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	if fresh.ID == issued.ID {
		t.Fatal("expected a fresh OTP row")
	}

	var old otpModel.OTP
	if err := f.db.First(&old, issued.ID).Error; err != nil {
		t.Fatalf("failed to reload old otp: %v", err)
	}
	if !old.IsUsed {
		t.Fatal("old code should be superseded")
	}
}

func TestResend_ThrottleCountsUsedCodes(t *testing.T) {
	f := newFixture(t)

	issued, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	// A superseded code inside the window still blocks a resend.
	if err := f.db.Model(&otpModel.OTP{}).Where("id = ?", issued.ID).
		Update("is_used", true).Error; err != nil {
		t.Fatalf("failed to supersede otp: %v", err)
	}

	if _, err := f.svc.Resend(f.vendor, f.booking.ID); !errors.Is(err, ErrResendTooSoon) {
		t.Fatalf("expected ErrResendTooSoon, got %v", err)
	}
}

func TestIssue_RechecksBookingUnderLock(t *testing.T) {
	f := newFixture(t)

	// Stale in-memory copy still looks eligible; the committed row does not.
	stale := *f.booking
	if err := f.db.Model(&bookingModel.Booking{}).Where("id = ?", f.booking.ID).
		Update("status", bookingModel.BookingStatusCancelledByUser).Error; err != nil {
		t.Fatalf("failed to cancel booking: %v", err)
	}

	if _, err := f.svc.issue(&stale, f.vendor, false); !errors.Is(err, bookingService.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from locked re-check, got %v", err)
	}

	var count int64
	if err := f.db.Model(&otpModel.OTP{}).Where("booking_id = ?", f.booking.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 0 {
		t.Fatalf("otp rows = %d, want 0 (issuance must roll back)", count)
	}
}

func TestStatus_Derivation(t *testing.T) {
	f := newFixture(t)

	state, _, err := f.svc.Status(f.user, f.booking.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if state != StateNoOTP {
		t.Fatalf("state = %s, want %s", state, StateNoOTP)
	}

	issued, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	state, rec, err := f.svc.Status(f.user, f.booking.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if state != StateActive {
		t.Fatalf("state = %s, want %s", state, StateActive)
	}
	attemptsBefore := rec.AttemptsCount

	// A status read is pure: counters stay untouched.
	if _, rec2, _ := f.svc.Status(f.user, f.booking.ID); rec2.AttemptsCount != attemptsBefore {
		t.Fatal("status read must not change attempt count")
	}

	err = f.db.Model(&otpModel.OTP{}).Where("id = ?", issued.ID).
		Update("expires_at", time.Now().Add(-time.Second)).Error
	if err != nil {
		t.Fatalf("failed to expire otp: %v", err)
	}
	if state, _, _ = f.svc.Status(f.user, f.booking.ID); state != StateExpired {
		t.Fatalf("state = %s, want %s", state, StateExpired)
	}

	until := time.Now().Add(otpModel.LockDuration)
	err = f.db.Model(&otpModel.OTP{}).Where("id = ?", issued.ID).Updates(map[string]interface{}{
		"is_locked":    true,
		"locked_until": until,
	}).Error
	if err != nil {
		t.Fatalf("failed to lock otp: %v", err)
	}
	if state, _, _ = f.svc.Status(f.user, f.booking.ID); state != StateLocked {
		t.Fatalf("state = %s, want %s", state, StateLocked)
	}
}

func TestStatus_VerifiedWins(t *testing.T) {
	f := newFixture(t)

	issued, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := f.svc.Verify(f.vendor, f.booking.ID, issued.Code); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	state, _, err := f.svc.Status(f.user, f.booking.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if state != StateVerified {
		t.Fatalf("state = %s, want %s", state, StateVerified)
	}
}

func TestAuditTrail_SnapshotsEveryEvent(t *testing.T) {
	f := newFixture(t)

	issued, err := f.svc.Generate(f.vendor, f.booking.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := f.svc.Verify(f.vendor, f.booking.ID, f.wrongCode(issued.Code)); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := f.svc.Verify(f.vendor, f.booking.ID, issued.Code); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	var eventTypes []string
	err = f.db.Table("otp_events").Where("booking_id = ?", f.booking.ID).
		Order("id ASC").Pluck("event_type", &eventTypes).Error
	if err != nil {
		t.Fatalf("failed to load events: %v", err)
	}
	want := []string{"generated", "attempt_failed", "verified"}
	if len(eventTypes) != len(want) {
		t.Fatalf("event types = %v, want %v", eventTypes, want)
	}
	for i := range want {
		if eventTypes[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s", i, eventTypes[i], want[i])
		}
	}
}
