package otp

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"vendor-booking/logger"
	"vendor-booking/middleware"
	otpModel "vendor-booking/models/otp"
	bookingService "vendor-booking/services/booking"
	otpService "vendor-booking/services/otp"
	"vendor-booking/types"
	otpTypes "vendor-booking/types/otp"
	"vendor-booking/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// OTPController handles OTP generation and verification HTTP requests. The
// code value never appears in any response; it reaches the user through the
// notification channel only.
type OTPController struct {
	DB      *gorm.DB
	Service *otpService.Service
	Logger  *logger.AsyncLogger
}

// NewOTPController creates a new OTP controller
func NewOTPController(db *gorm.DB, service *otpService.Service, asyncLogger *logger.AsyncLogger) *OTPController {
	return &OTPController{
		DB:      db,
		Service: service,
		Logger:  asyncLogger,
	}
}

// Generate issues a fresh OTP for an approved booking.
func (oc *OTPController) Generate(c *fiber.Ctx) error {
	var req otpTypes.GenerateOTPRequest
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

	record, err := oc.Service.Generate(actor, req.BookingID)
	if err != nil {
		return oc.mapError(c, nil, err, "Failed to generate OTP")
	}

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Message: "OTP generated and sent to the customer",
		Status:  fiber.StatusCreated,
		Data: otpTypes.OTPResponse{
			Message:   "OTP sent to the customer",
			Success:   true,
			ExpiresAt: record.ExpiresAt.Format(time.RFC3339),
		},
	})
}

// Resend re-issues the OTP, subject to the cooldown window.
func (oc *OTPController) Resend(c *fiber.Ctx) error {
	var req otpTypes.GenerateOTPRequest
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

	record, err := oc.Service.Resend(actor, req.BookingID)
	if err != nil {
		return oc.mapError(c, nil, err, "Failed to resend OTP")
	}

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Message: "OTP resent to the customer",
		Status:  fiber.StatusCreated,
		Data: otpTypes.OTPResponse{
			Message:   "OTP sent to the customer",
			Success:   true,
			ExpiresAt: record.ExpiresAt.Format(time.RFC3339),
		},
	})
}

// Verify checks the code the customer read back to the vendor.
func (oc *OTPController) Verify(c *fiber.Ctx) error {
	var req otpTypes.VerifyOTPRequest
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

	record, err := oc.Service.Verify(actor, req.BookingID, req.Code)
	if err != nil {
		return oc.mapError(c, record, err, "Failed to verify OTP")
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "OTP verified successfully",
		Status:  fiber.StatusOK,
		Data: otpTypes.OTPResponse{
			Message: "Service delivery confirmed",
			Success: true,
		},
	})
}

// Status reports the derived OTP state of a booking without touching
// counters or locks.
func (oc *OTPController) Status(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	bookingID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return badRequest(c, "Invalid booking id")
	}

	state, record, err := oc.Service.Status(actor, uint(bookingID))
	if err != nil {
		return oc.mapError(c, nil, err, "Failed to load OTP status")
	}

	data := fiber.Map{"state": state}
	if record != nil {
		data["attempts_remaining"] = record.AttemptsRemaining()
		if record.LockedUntil != nil {
			data["locked_until"] = record.LockedUntil.Format(time.RFC3339)
		}
		if state == otpService.StateActive {
			data["expires_at"] = record.ExpiresAt.Format(time.RFC3339)
		}
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "OTP status retrieved successfully",
		Status:  fiber.StatusOK,
		Data:    data,
	})
}

// mapError translates OTP and lifecycle sentinels onto HTTP statuses. The
// OTP record, when present, enriches the body with attempt and lock detail.
func (oc *OTPController) mapError(c *fiber.Ctx, record *otpModel.OTP, err error, fallback string) error {
	respond := func(status int, message string) error {
		body := otpTypes.OTPResponse{
			Message: message,
			Success: false,
		}
		if record != nil {
			remaining := record.AttemptsRemaining()
			body.AttemptsRemaining = &remaining
			if record.LockedUntil != nil {
				body.LockedUntil = record.LockedUntil.Format(time.RFC3339)
			}
		}
		return c.Status(status).JSON(types.ApiResponse{
			Message: message,
			Status:  status,
			Data:    body,
		})
	}

	var tooSoon *otpService.ResendTooSoonError
	switch {
	case errors.As(err, &tooSoon):
		body := otpTypes.OTPResponse{
			Message: "An OTP was sent recently, please wait before resending",
			Success: false,
			RetryAt: tooSoon.RetryAt.Format(time.RFC3339),
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(types.ApiResponse{
			Message: body.Message,
			Status:  fiber.StatusTooManyRequests,
			Data:    body,
		})
	case errors.Is(err, otpService.ErrOTPLocked):
		message := "Verification is locked after too many failed attempts"
		if record != nil && record.LockedUntil != nil {
			message = fmt.Sprintf("Verification is locked, try again in %d minutes", utils.MinutesUntil(*record.LockedUntil))
		}
		return respond(fiber.StatusLocked, message)
	case errors.Is(err, otpService.ErrOTPMismatch):
		return respond(fiber.StatusBadRequest, "Incorrect code")
	case errors.Is(err, otpService.ErrOTPExpired):
		return respond(fiber.StatusBadRequest, "The code has expired, request a new one")
	case errors.Is(err, otpService.ErrOTPAlreadyUsed):
		return respond(fiber.StatusBadRequest, "The code has already been used")
	case errors.Is(err, otpService.ErrOTPNotFound):
		return respond(fiber.StatusNotFound, "No active code exists for this booking")
	case errors.Is(err, bookingService.ErrNotFound):
		return respond(fiber.StatusNotFound, "Booking not found")
	case errors.Is(err, bookingService.ErrUnauthorized):
		return respond(fiber.StatusForbidden, "You are not allowed to perform this action")
	case errors.Is(err, bookingService.ErrInvalidTransition):
		return respond(fiber.StatusConflict, "The booking is not eligible for OTP operations")
	default:
		logger.Error(fallback, err)
		return respond(fiber.StatusInternalServerError, fallback)
	}
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
