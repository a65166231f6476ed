package slot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"vendor-booking/database"
	bookingModel "vendor-booking/models/booking"
	reservationModel "vendor-booking/models/reservation"
	vendorModel "vendor-booking/models/vendor"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrSlotConflict is returned when a (vendor, shift, date) slot is already
// occupied by an active booking or manual reservation.
var ErrSlotConflict = errors.New("slot_conflict")

// Ledger is the authoritative record of slot occupancy. Reserve must be
// called inside the transaction that inserts the occupant so the
// existence check and the insert commit or fail as one unit.
type Ledger struct {
	DB *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{DB: db}
}

// Reserve checks that the slot is free, locking any candidate occupant rows
// so a concurrent reservation for the same slot blocks until this
// transaction finishes. The partial unique indexes are the backstop: if two
// transactions still race past the check, exactly one insert survives and
// the loser's duplicate-key error is mapped back to ErrSlotConflict by
// IsUniqueViolation.
func (l *Ledger) Reserve(tx *gorm.DB, vendorID, shiftID uint, eventDate time.Time) error {
	var existing bookingModel.Booking
	err := database.LockForUpdate(tx).
		Model(&bookingModel.Booking{}).
		Where("vendor_id = ? AND shift_id = ? AND event_date = ?", vendorID, shiftID, eventDate).
		Where("status NOT IN ?", []bookingModel.BookingStatus{
			bookingModel.BookingStatusCancelledByUser,
			bookingModel.BookingStatusCancelledByVendor,
			bookingModel.BookingStatusRejectedByAdmin,
		}).
		Where("removed_at IS NULL").
		Take(&existing).Error
	if err == nil {
		return ErrSlotConflict
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check booking occupancy: %w", err)
	}

	var blocked reservationModel.ManualReservation
	err = database.LockForUpdate(tx).
		Model(&reservationModel.ManualReservation{}).
		Where("vendor_id = ? AND shift_id = ? AND event_date = ?", vendorID, shiftID, eventDate).
		Where("status = ?", reservationModel.ReservationStatusActive).
		Take(&blocked).Error
	if err == nil {
		return ErrSlotConflict
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check reservation occupancy: %w", err)
	}

	return nil
}

// Availability returns the ids of the vendor's active shifts that are free
// on the given date: all shifts minus the occupied union.
func (l *Ledger) Availability(vendorID uint, eventDate time.Time) ([]uint, error) {
	var shifts []vendorModel.Shift
	if err := l.DB.
		Where("vendor_id = ? AND is_active = ?", vendorID, true).
		Order("id ASC").
		Find(&shifts).Error; err != nil {
		return nil, fmt.Errorf("failed to list vendor shifts: %w", err)
	}

	occupied, err := l.occupiedShiftIDs(vendorID, eventDate)
	if err != nil {
		return nil, err
	}

	free := make([]uint, 0, len(shifts))
	for _, shift := range shifts {
		if !occupied[shift.ID] {
			free = append(free, shift.ID)
		}
	}
	return free, nil
}

func (l *Ledger) occupiedShiftIDs(vendorID uint, eventDate time.Time) (map[uint]bool, error) {
	occupied := make(map[uint]bool)

	var bookedShiftIDs []uint
	if err := l.DB.
		Model(&bookingModel.Booking{}).
		Where("vendor_id = ? AND event_date = ?", vendorID, eventDate).
		Where("status NOT IN ?", []bookingModel.BookingStatus{
			bookingModel.BookingStatusCancelledByUser,
			bookingModel.BookingStatusCancelledByVendor,
			bookingModel.BookingStatusRejectedByAdmin,
		}).
		Where("removed_at IS NULL").
		Pluck("shift_id", &bookedShiftIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list booked shifts: %w", err)
	}
	for _, id := range bookedShiftIDs {
		occupied[id] = true
	}

	var reservedShiftIDs []uint
	if err := l.DB.
		Model(&reservationModel.ManualReservation{}).
		Where("vendor_id = ? AND event_date = ?", vendorID, eventDate).
		Where("status = ?", reservationModel.ReservationStatusActive).
		Pluck("shift_id", &reservedShiftIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list reserved shifts: %w", err)
	}
	for _, id := range reservedShiftIDs {
		occupied[id] = true
	}

	return occupied, nil
}

// IsUniqueViolation reports whether err is a unique-constraint violation.
// Postgres reports SQLSTATE 23505; the sqlite driver used in tests reports a
// message-only error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
