// FILE: internal/pkg/serverutils/error_handler.go
package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"portfolio-commerce-be/internal/pkg/apperror"
)

// ErrorHandlerMiddleware maps the billing error taxonomy onto HTTP statuses
// so controllers can return service errors directly.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		var validation *apperror.ValidationError
		if errors.As(err, &validation) {
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(fiber.StatusBadRequest, validation.Message))
		}

		var conflict *apperror.ConflictError
		if errors.As(err, &conflict) {
			return ctx.Status(fiber.StatusConflict).JSON(ErrorResponseWithDetails(
				fiber.StatusConflict, conflict.Message,
				fiber.Map{"next_eligible_at": conflict.NextEligibleAt},
			))
		}

		var badSig *apperror.InvalidSignatureError
		if errors.As(err, &badSig) {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, badSig.Message))
		}

		var gatewayDown *apperror.GatewayUnavailableError
		if errors.As(err, &gatewayDown) {
			return ctx.Status(fiber.StatusBadGateway).JSON(ErrorResponse(fiber.StatusBadGateway, "payment gateway unavailable, please retry"))
		}

		var persistence *apperror.PersistenceError
		if errors.As(err, &persistence) {
			return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "transaction failed, no changes were applied"))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "internal server error"))
	}
}
