package api

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/xraph/till"
)

// HeaderRequestID carries the request correlation ID.
const HeaderRequestID = "X-Request-ID"

const localsRequestID = "till.request_id"

// retryAfterSeconds is advertised on 503 responses for lock timeouts.
const retryAfterSeconds = "1"

// RequestID echoes the caller's X-Request-ID or assigns a new one.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := strings.TrimSpace(c.Get(HeaderRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(HeaderRequestID, rid)
		c.Locals(localsRequestID, rid)
		return c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = statusOf(err)
			}
		}
		logger.Info("http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start),
			"request_id", requestID(c),
		)
		return err
	}
}

func requestID(c *fiber.Ctx) string {
	rid, _ := c.Locals(localsRequestID).(string) //nolint:errcheck // type assertion
	return rid
}

// statusOf maps a till error to its HTTP status.
func statusOf(err error) int {
	switch till.KindOf(err) {
	case till.KindValidation:
		return fiber.StatusBadRequest
	case till.KindNotFound:
		return fiber.StatusNotFound
	case till.KindStock, till.KindExactChange:
		return fiber.StatusConflict
	case till.KindPayment, till.KindDenomination:
		return fiber.StatusUnprocessableEntity
	case till.KindBusy:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// publicMessage is the client-facing text for a classified error.
func publicMessage(err error) string {
	var te *till.Error
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return strings.TrimPrefix(err.Error(), "till: ")
}

func badRequest(field string, err error) error {
	return fiber.NewError(fiber.StatusBadRequest, field+": "+err.Error())
}

// ErrorHandler renders every failure as {success:false, error}. Internal
// detail is logged and replaced with a generic message.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errorView{Error: fe.Message})
		}

		status := statusOf(err)
		msg := publicMessage(err)
		switch status {
		case fiber.StatusInternalServerError:
			logger.Error("request failed",
				"path", c.Path(),
				"request_id", requestID(c),
				"error", err,
			)
			msg = "internal error"
		case fiber.StatusServiceUnavailable:
			c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		}
		return c.Status(status).JSON(errorView{Error: msg})
	}
}
