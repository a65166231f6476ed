package otp

import (
	"testing"
	"time"
)

func TestRegisterFailedAttempt_LocksAtMax(t *testing.T) {
	o := OTP{MaxAttempts: MaxAttempts, ExpiresAt: time.Now().Add(CodeTTL)}

	o.RegisterFailedAttempt()
	o.RegisterFailedAttempt()
	if o.IsLocked {
		t.Fatalf("locked after %d attempts, want unlocked until %d", o.AttemptsCount, MaxAttempts)
	}
	if got := o.AttemptsRemaining(); got != 1 {
		t.Fatalf("attempts remaining = %d, want 1", got)
	}

	o.RegisterFailedAttempt()
	if !o.IsLocked {
		t.Fatalf("expected lock after %d attempts", MaxAttempts)
	}
	if o.LockedUntil == nil {
		t.Fatal("expected locked_until to be set")
	}
	until := time.Until(*o.LockedUntil)
	if until < LockDuration-time.Minute || until > LockDuration {
		t.Fatalf("lock window = %v, want about %v", until, LockDuration)
	}
	if got := o.AttemptsRemaining(); got != 0 {
		t.Fatalf("attempts remaining = %d, want 0", got)
	}
}

func TestIsCurrentlyLocked_WindowElapses(t *testing.T) {
	past := time.Now().Add(-time.Second)
	o := OTP{IsLocked: true, LockedUntil: &past}
	if o.IsCurrentlyLocked() {
		t.Fatal("lock window in the past should not count as locked")
	}

	future := time.Now().Add(time.Minute)
	o.LockedUntil = &future
	if !o.IsCurrentlyLocked() {
		t.Fatal("lock window in the future should count as locked")
	}
}

func TestUnlock_ResetsAttemptState(t *testing.T) {
	until := time.Now().Add(LockDuration)
	o := OTP{AttemptsCount: MaxAttempts, MaxAttempts: MaxAttempts, IsLocked: true, LockedUntil: &until}

	o.Unlock()
	if o.IsLocked || o.LockedUntil != nil {
		t.Fatal("expected lock cleared")
	}
	if o.AttemptsCount != 0 {
		t.Fatalf("attempts count = %d, want 0", o.AttemptsCount)
	}
}

func TestIsActive(t *testing.T) {
	o := OTP{MaxAttempts: MaxAttempts, ExpiresAt: time.Now().Add(CodeTTL)}
	if !o.IsActive() {
		t.Fatal("fresh OTP should be active")
	}

	o.MarkVerified()
	if o.IsActive() {
		t.Fatal("used OTP should not be active")
	}
	if o.VerifiedAt == nil {
		t.Fatal("expected verified_at to be set")
	}

	expired := OTP{MaxAttempts: MaxAttempts, ExpiresAt: time.Now().Add(-time.Second)}
	if expired.IsActive() {
		t.Fatal("expired OTP should not be active")
	}
}
