package routes

import (
	"os"

	"vendor-booking/constants"
	availabilityController "vendor-booking/controllers/availability"
	bookingController "vendor-booking/controllers/booking"
	otpController "vendor-booking/controllers/otp"
	reservationController "vendor-booking/controllers/reservation"
	reviewController "vendor-booking/controllers/review"
	"vendor-booking/logger"
	"vendor-booking/middleware"
	bookingService "vendor-booking/services/booking"
	"vendor-booking/services/notify"
	otpService "vendor-booking/services/otp"
	"vendor-booking/services/slot"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	asyncLogger := logger.NewAsyncLogger(db)

	// The AMQP publisher is optional: without AMQP_URL notifications still
	// land in the notifications table, they just are not fanned out.
	var publisher *notify.Publisher
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		var err error
		publisher, err = notify.NewPublisher(amqpURL, os.Getenv("AMQP_EXCHANGE"))
		if err != nil {
			logger.Warning("AMQP unavailable, notifications stay local: " + err.Error())
			publisher = nil
		}
	}
	dispatcher := notify.NewDispatcher(db, publisher)

	ledger := slot.NewLedger(db)
	bookings := bookingService.NewService(db, ledger, dispatcher)
	otps := otpService.NewOTPService(db, bookings, dispatcher)

	bookingCtrl := bookingController.NewBookingController(db, bookings, asyncLogger)
	otpCtrl := otpController.NewOTPController(db, otps, asyncLogger)
	availabilityCtrl := availabilityController.NewAvailabilityController(db, ledger)
	reservationCtrl := reservationController.NewReservationController(db, ledger, asyncLogger)
	reviewCtrl := reviewController.NewReviewController(db, bookings, asyncLogger)

	// Start the background consumers
	go asyncLogger.ProcessLog()
	go dispatcher.Process()

	// Health check
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api").Use(middleware.RequestAudit(asyncLogger))

	/*=============================================================================
	| Availability (any authenticated caller)
	===============================================================================*/
	api.Get("/availability", middleware.RequireAnyPermission(), availabilityCtrl.Index)

	/*=============================================================================
	| Booking Routes
	===============================================================================*/
	bookingGroup := api.Group("/booking")

	bookingGroup.Post("/create", middleware.RequirePermissions(
		constants.PermCustomerFull,
	), bookingCtrl.Store)

	bookingGroup.Post("/accept", middleware.RequirePermissions(
		constants.PermVendorFull,
	), bookingCtrl.Accept)

	bookingGroup.Post("/reject", middleware.RequirePermissions(
		constants.PermVendorFull,
	), bookingCtrl.Reject)

	bookingGroup.Post("/approve", middleware.RequirePermissions(
		constants.AdminPermissions...,
	), bookingCtrl.Approve)

	bookingGroup.Post("/admin-reject", middleware.RequirePermissions(
		constants.AdminPermissions...,
	), bookingCtrl.AdminReject)

	bookingGroup.Post("/cancel", middleware.RequirePermissions(
		constants.PermCustomerFull,
		constants.PermVendorFull,
	), bookingCtrl.Cancel)

	bookingGroup.Get("/list", middleware.RequireAnyPermission(), bookingCtrl.Index)
	bookingGroup.Get("/:id", middleware.RequireAnyPermission(), bookingCtrl.Show)

	bookingGroup.Delete("/:id", middleware.RequirePermissions(
		constants.AdminPermissions...,
	), bookingCtrl.Destroy)

	/*=============================================================================
	| OTP Routes (vendor triggers, user receives out-of-band)
	===============================================================================*/
	otpGroup := api.Group("/otp")

	otpGroup.Post("/generate", middleware.RequirePermissions(
		constants.PermVendorFull,
	), otpCtrl.Generate)

	otpGroup.Post("/resend", middleware.RequirePermissions(
		constants.PermVendorFull,
	), otpCtrl.Resend)

	otpGroup.Post("/verify", middleware.RequirePermissions(
		constants.PermVendorFull,
	), otpCtrl.Verify)

	otpGroup.Get("/status/:id", middleware.RequireAnyPermission(), otpCtrl.Status)

	/*=============================================================================
	| Manual Reservation Routes
	===============================================================================*/
	reservationGroup := api.Group("/reservation")

	reservationGroup.Post("/create", middleware.RequirePermissions(
		constants.PermVendorFull,
		constants.PermAdminFull,
		constants.PermSuperAdminFull,
	), reservationCtrl.Store)

	reservationGroup.Post("/cancel", middleware.RequirePermissions(
		constants.PermVendorFull,
		constants.PermAdminFull,
		constants.PermSuperAdminFull,
	), reservationCtrl.Cancel)

	/*=============================================================================
	| Review Routes
	===============================================================================*/
	api.Post("/review", middleware.RequirePermissions(
		constants.PermCustomerFull,
	), reviewCtrl.Store)
}
