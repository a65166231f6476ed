package slot

import (
	"errors"
	"fmt"
	"time"

	reservationModel "vendor-booking/models/reservation"
	vendorModel "vendor-booking/models/vendor"

	"gorm.io/gorm"
)

// ErrReservationNotFound is returned when the target reservation does not
// exist or is no longer active.
var ErrReservationNotFound = errors.New("reservation_not_found")

// Block occupies a slot with a manual reservation, going through the same
// check-and-insert path as bookings. The shift must belong to the vendor.
func (l *Ledger) Block(vendorID, shiftID uint, eventDate time.Time, reason, createdBy string) (*reservationModel.ManualReservation, error) {
	var shift vendorModel.Shift
	err := l.DB.Where("id = ? AND vendor_id = ?", shiftID, vendorID).First(&shift).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to load shift: %w", err)
	}

	reservation := &reservationModel.ManualReservation{
		VendorID:  vendorID,
		ShiftID:   shiftID,
		EventDate: eventDate,
		Status:    reservationModel.ReservationStatusActive,
		Reason:    reason,
		CreatedBy: createdBy,
		UpdatedBy: createdBy,
	}

	err = l.DB.Transaction(func(tx *gorm.DB) error {
		if err := l.Reserve(tx, vendorID, shiftID, eventDate); err != nil {
			return err
		}
		if err := tx.Create(reservation).Error; err != nil {
			if IsUniqueViolation(err) {
				return ErrSlotConflict
			}
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// Release cancels an active manual reservation, freeing its slot.
func (l *Ledger) Release(reservationID uint, updatedBy string) (*reservationModel.ManualReservation, error) {
	var reservation reservationModel.ManualReservation
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&reservation, reservationID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return fmt.Errorf("failed to load reservation: %w", err)
		}
		if !reservation.IsActive() {
			return ErrReservationNotFound
		}
		reservation.Status = reservationModel.ReservationStatusCancelled
		reservation.UpdatedBy = updatedBy
		return tx.Save(&reservation).Error
	})
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}
