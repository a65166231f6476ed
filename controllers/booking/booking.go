package booking

import (
	"errors"
	"strconv"

	"vendor-booking/logger"
	"vendor-booking/middleware"
	bookingModel "vendor-booking/models/booking"
	bookingService "vendor-booking/services/booking"
	"vendor-booking/services/slot"
	"vendor-booking/types"
	bookingTypes "vendor-booking/types/booking"
	"vendor-booking/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// BookingController handles booking lifecycle HTTP requests
type BookingController struct {
	DB      *gorm.DB
	Service *bookingService.Service
	Logger  *logger.AsyncLogger
}

// NewBookingController creates a new booking controller
func NewBookingController(db *gorm.DB, service *bookingService.Service, asyncLogger *logger.AsyncLogger) *BookingController {
	return &BookingController{
		DB:      db,
		Service: service,
		Logger:  asyncLogger,
	}
}

// Store creates a new booking against a vendor slot.
func (bc *BookingController) Store(c *fiber.Ctx) error {
	var req bookingTypes.BookingCreateRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return badRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	eventDate, err := utils.ParseEventDate(req.EventDate)
	if err != nil {
		return badRequest(c, "event_date must be in YYYY-MM-DD format")
	}

	booking, err := bc.Service.Create(actor, bookingService.CreateParams{
		VendorID:     req.VendorID,
		ShiftID:      req.ShiftID,
		PackageID:    req.PackageID,
		EventDate:    eventDate,
		EventTime:    req.EventTime,
		EventAddress: req.EventAddress,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	})
	if err != nil {
		return mapServiceError(c, err, "Failed to create booking")
	}

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Message: "Booking created successfully",
		Status:  fiber.StatusCreated,
		Data:    booking,
	})
}

// Accept moves a pending booking to confirmed on behalf of the vendor.
func (bc *BookingController) Accept(c *fiber.Ctx) error {
	return bc.transition(c, bc.Service.VendorAccept, "Booking accepted")
}

// Reject cancels a pending booking on behalf of the vendor.
func (bc *BookingController) Reject(c *fiber.Ctx) error {
	return bc.transition(c, bc.Service.VendorReject, "Booking rejected")
}

// Approve grants admin approval to a confirmed booking.
func (bc *BookingController) Approve(c *fiber.Ctx) error {
	return bc.transition(c, bc.Service.AdminApprove, "Booking approved")
}

// AdminReject denies admin approval and terminates the booking.
func (bc *BookingController) AdminReject(c *fiber.Ctx) error {
	return bc.transition(c, bc.Service.AdminReject, "Booking rejected by admin")
}

// Cancel cancels a booking on behalf of its user or its vendor.
func (bc *BookingController) Cancel(c *fiber.Ctx) error {
	return bc.transition(c, bc.Service.Cancel, "Booking cancelled")
}

// Show returns a single booking visible to the caller.
func (bc *BookingController) Show(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	bookingID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return badRequest(c, "Invalid booking id")
	}

	booking, err := bc.Service.Get(actor, uint(bookingID))
	if err != nil {
		return mapServiceError(c, err, "Failed to load booking")
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Booking retrieved successfully",
		Status:  fiber.StatusOK,
		Data:    booking,
	})
}

// Index lists the caller's bookings, scoped by role, newest first.
func (bc *BookingController) Index(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	bookings, total, err := bc.Service.List(actor, limit, (page-1)*limit)
	if err != nil {
		return mapServiceError(c, err, "Failed to list bookings")
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Bookings retrieved successfully",
		Status:  fiber.StatusOK,
		Data: fiber.Map{
			"bookings": bookings,
			"total":    total,
			"page":     page,
			"limit":    limit,
		},
	})
}

// Destroy soft-removes a booking. Admin only; the route enforces the
// permission, the service re-checks the role.
func (bc *BookingController) Destroy(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	bookingID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return badRequest(c, "Invalid booking id")
	}

	if err := bc.Service.Remove(actor, uint(bookingID)); err != nil {
		return mapServiceError(c, err, "Failed to remove booking")
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Booking removed successfully",
		Status:  fiber.StatusOK,
		Data:    nil,
	})
}

// transition runs the shared parse-validate-apply flow of the single-target
// lifecycle actions.
func (bc *BookingController) transition(c *fiber.Ctx, apply func(types.Actor, uint) (*bookingModel.Booking, error), message string) error {
	var req bookingTypes.BookingActionRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return badRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	booking, err := apply(actor, req.BookingID)
	if err != nil {
		return mapServiceError(c, err, "Failed to update booking")
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: message,
		Status:  fiber.StatusOK,
		Data:    booking,
	})
}

func actorFromContext(c *fiber.Ctx) (types.Actor, bool) {
	return middleware.ActorFromContext(c)
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

// mapServiceError translates the lifecycle sentinels onto HTTP statuses.
func mapServiceError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, bookingService.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Message: "Booking or related record not found",
			Status:  fiber.StatusNotFound,
			Data:    nil,
		})
	case errors.Is(err, bookingService.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(types.ApiResponse{
			Message: "You are not allowed to perform this action",
			Status:  fiber.StatusForbidden,
			Data:    nil,
		})
	case errors.Is(err, bookingService.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
			Message: "The booking is not in a state that allows this action",
			Status:  fiber.StatusConflict,
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
