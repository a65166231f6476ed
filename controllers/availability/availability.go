package availability

import (
	"vendor-booking/logger"
	"vendor-booking/services/slot"
	"vendor-booking/types"
	"vendor-booking/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AvailabilityController serves the free-shift lookup backing slot pickers.
type AvailabilityController struct {
	DB     *gorm.DB
	Ledger *slot.Ledger
}

// NewAvailabilityController creates a new availability controller
func NewAvailabilityController(db *gorm.DB, ledger *slot.Ledger) *AvailabilityController {
	return &AvailabilityController{
		DB:     db,
		Ledger: ledger,
	}
}

// Index lists the vendor's free shift ids for a date. Occupied means an
// active booking or an active manual reservation.
func (ac *AvailabilityController) Index(c *fiber.Ctx) error {
	vendorID := c.QueryInt("vendor_id")
	if vendorID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Message: "vendor_id is required",
			Status:  fiber.StatusBadRequest,
			Data:    nil,
		})
	}

	dateParam := c.Query("date")
	if dateParam == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Message: "date is required",
			Status:  fiber.StatusBadRequest,
			Data:    nil,
		})
	}
	eventDate, err := utils.ParseEventDate(dateParam)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Message: "date must be in YYYY-MM-DD format",
			Status:  fiber.StatusBadRequest,
			Data:    nil,
		})
	}

	freeShiftIDs, err := ac.Ledger.Availability(uint(vendorID), eventDate)
	if err != nil {
		logger.Error("Failed to compute availability", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Message: "Failed to compute availability",
			Status:  fiber.StatusInternalServerError,
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Availability retrieved successfully",
		Status:  fiber.StatusOK,
		Data: fiber.Map{
			"vendor_id":      vendorID,
			"date":           utils.FormatEventDate(eventDate),
			"free_shift_ids": freeShiftIDs,
		},
	})
}
