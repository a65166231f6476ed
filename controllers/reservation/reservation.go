package reservation

import (
	"errors"
	"strconv"

	"vendor-booking/logger"
	"vendor-booking/middleware"
	"vendor-booking/services/slot"
	"vendor-booking/types"
	reservationTypes "vendor-booking/types/reservation"
	"vendor-booking/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ReservationController lets vendors and admins block slots manually,
// outside the booking flow.
type ReservationController struct {
	DB     *gorm.DB
	Ledger *slot.Ledger
	Logger *logger.AsyncLogger
}

// NewReservationController creates a new reservation controller
func NewReservationController(db *gorm.DB, ledger *slot.Ledger, asyncLogger *logger.AsyncLogger) *ReservationController {
	return &ReservationController{
		DB:     db,
		Ledger: ledger,
		Logger: asyncLogger,
	}
}

// Store blocks a (vendor, shift, date) slot.
func (rc *ReservationController) Store(c *fiber.Ctx) error {
	var req reservationTypes.ReservationCreateRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return badRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	if !actor.IsAdmin() && !actor.OwnsVendor(req.VendorID) {
		return forbidden(c)
	}

	eventDate, err := utils.ParseEventDate(req.EventDate)
	if err != nil {
		return badRequest(c, "event_date must be in YYYY-MM-DD format")
	}

	createdBy := strconv.FormatUint(uint64(actor.UserID), 10)
	reservation, err := rc.Ledger.Block(req.VendorID, req.ShiftID, eventDate, req.Reason, createdBy)
	if err != nil {
		return mapLedgerError(c, err, "Failed to create reservation")
	}

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Message: "Reservation created successfully",
		Status:  fiber.StatusCreated,
		Data:    reservation,
	})
}

// Cancel releases a manual block.
func (rc *ReservationController) Cancel(c *fiber.Ctx) error {
	var req reservationTypes.ReservationCancelRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return badRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	// Ownership is checked against the loaded row: a vendor may only release
	// blocks on their own slots.
	var target struct{ VendorID uint }
	err := rc.DB.Table("manual_reservations").
		Select("vendor_id").
		Where("id = ?", req.ReservationID).
		Take(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mapLedgerError(c, slot.ErrReservationNotFound, "")
		}
		logger.Error("Failed to load reservation", err)
		return mapLedgerError(c, err, "Failed to cancel reservation")
	}
	if !actor.IsAdmin() && !actor.OwnsVendor(target.VendorID) {
		return forbidden(c)
	}

	updatedBy := strconv.FormatUint(uint64(actor.UserID), 10)
	reservation, err := rc.Ledger.Release(req.ReservationID, updatedBy)
	if err != nil {
		return mapLedgerError(c, err, "Failed to cancel reservation")
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Reservation cancelled successfully",
		Status:  fiber.StatusOK,
		Data:    reservation,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
		Message: message,
		Status:  fiber.StatusBadRequest,
		Data:    nil,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
		Message: "Invalid user claims",
		Status:  fiber.StatusUnauthorized,
		Data:    nil,
	})
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(types.ApiResponse{
		Message: "You are not allowed to perform this action",
		Status:  fiber.StatusForbidden,
		Data:    nil,
	})
}

func mapLedgerError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, slot.ErrReservationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Message: "Reservation or shift not found",
			Status:  fiber.StatusNotFound,
			Data:    nil,
		})
	case errors.Is(err, slot.ErrSlotConflict):
		return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
			Message: "The requested slot is already taken",
			Status:  fiber.StatusConflict,
			Data:    nil,
		})
	default:
		logger.Error(fallback, err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Message: fallback,
			Status:  fiber.StatusInternalServerError,
			Data:    nil,
		})
	}
}
