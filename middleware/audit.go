package middleware

import (
	"encoding/json"
	"strings"
	"time"

	"vendor-booking/logger"
	"vendor-booking/types"

	"github.com/gofiber/fiber/v2"
)

// RequestAudit records every request and its response into the log table via
// the async logger, after the handler chain has produced the response.
// Secret-bearing fields are scrubbed before the body is stored.
func RequestAudit(asyncLogger *logger.AsyncLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		asyncLogger.Log(types.LogEntry{
			Method:          c.Method(),
			URL:             c.OriginalURL(),
			RequestBody:     sanitizeRequestBody(c.Path(), c.Body()),
			ResponseBody:    string(c.Response().Body()),
			RequestHeaders:  string(c.Request().Header.Header()),
			ResponseHeaders: string(c.Response().Header.Header()),
			StatusCode:      c.Response().StatusCode(),
			CreatedAt:       time.Now(),
		})

		return err
	}
}

// sanitizeRequestBody strips the submitted code from OTP verification
// bodies. OTP codes are stored encrypted everywhere else; the audit log must
// not hold them in the clear.
func sanitizeRequestBody(path string, body []byte) string {
	if !strings.HasSuffix(path, "/otp/verify") {
		return string(body)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		// Unparseable body, nothing safe to keep.
		return ""
	}
	if _, ok := fields["code"]; ok {
		fields["code"] = "[redacted]"
	}
	redacted, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(redacted)
}
