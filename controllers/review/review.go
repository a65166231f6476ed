package review

import (
	"errors"

	"vendor-booking/logger"
	"vendor-booking/middleware"
	bookingService "vendor-booking/services/booking"
	"vendor-booking/types"
	reviewTypes "vendor-booking/types/review"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ReviewController handles the review step that closes a booking.
type ReviewController struct {
	DB      *gorm.DB
	Service *bookingService.Service
	Logger  *logger.AsyncLogger
}

// NewReviewController creates a new review controller
func NewReviewController(db *gorm.DB, service *bookingService.Service, asyncLogger *logger.AsyncLogger) *ReviewController {
	return &ReviewController{
		DB:      db,
		Service: service,
		Logger:  asyncLogger,
	}
}

// Store submits the user's review and completes the booking.
func (rc *ReviewController) Store(c *fiber.Ctx) error {
	var req reviewTypes.ReviewSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Message: "Invalid request body",
			Status:  fiber.StatusBadRequest,
			Data:    nil,
		})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Message: err.Error(),
			Status:  fiber.StatusBadRequest,
			Data:    nil,
		})
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Message: "Invalid user claims",
			Status:  fiber.StatusUnauthorized,
			Data:    nil,
		})
	}

	booking, err := rc.Service.SubmitReview(actor, req.BookingID, req.Rating, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, bookingService.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
				Message: "Booking not found",
				Status:  fiber.StatusNotFound,
				Data:    nil,
			})
		case errors.Is(err, bookingService.ErrUnauthorized):
			return c.Status(fiber.StatusForbidden).JSON(types.ApiResponse{
				Message: "You are not allowed to review this booking",
				Status:  fiber.StatusForbidden,
				Data:    nil,
			})
		case errors.Is(err, bookingService.ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
				Message: "The booking is not awaiting review",
				Status:  fiber.StatusConflict,
				Data:    nil,
			})
		default:
			logger.Error("Failed to submit review", err)
			return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
				Message: "Failed to submit review",
				Status:  fiber.StatusInternalServerError,
				Data:    nil,
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Message: "Review submitted, booking completed",
		Status:  fiber.StatusCreated,
		Data:    booking,
	})
}
