// FILE: internal/controller/billing_controller.go
package controller

import (
	"portfolio-commerce-be/internal/dto"
	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/pkg/serverutils"
	"portfolio-commerce-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IBillingController interface {
	RegisterRoutes(r fiber.Router)
	CreateOrder(ctx *fiber.Ctx) error
	CreateMandate(ctx *fiber.Ctx) error
	VerifyPayment(ctx *fiber.Ctx) error
	Webhook(ctx *fiber.Ctx) error
	GetEligibility(ctx *fiber.Ctx) error
	ListSubscriptions(ctx *fiber.Ctx) error
	CancelSubscription(ctx *fiber.Ctx) error
}

type billingController struct {
	service service.ISubscriptionService
}

func NewBillingController(service service.ISubscriptionService) IBillingController {
	return &billingController{service: service}
}

func (c *billingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/billing")

	// Gateway-facing, authenticated by signature instead of JWT.
	h.Post("/webhook", c.Webhook)

	// Protected Routes
	h.Post("/orders", serverutils.JwtMiddleware, c.CreateOrder)
	h.Post("/mandates", serverutils.JwtMiddleware, c.CreateMandate)
	h.Post("/payments/verify", serverutils.JwtMiddleware, c.VerifyPayment)
	h.Get("/eligibility", serverutils.JwtMiddleware, c.GetEligibility)
	h.Get("/subscriptions", serverutils.JwtMiddleware, c.ListSubscriptions)
	h.Post("/subscriptions/:id/cancel", serverutils.JwtMiddleware, c.CancelSubscription)
}

func (c *billingController) CreateOrder(ctx *fiber.Ctx) error {
	var req dto.CreateOrderRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	userId, err := serverutils.UserIdFromLocals(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.CreateOrder(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Order created", res))
}

func (c *billingController) CreateMandate(ctx *fiber.Ctx) error {
	var req dto.CreateMandateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	userId, err := serverutils.UserIdFromLocals(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.CreateRecurringMandate(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Mandate created", res))
}

func (c *billingController) VerifyPayment(ctx *fiber.Ctx) error {
	var req dto.VerifyPaymentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	userId, err := serverutils.UserIdFromLocals(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.VerifyPayment(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	if res.Duplicate {
		return ctx.JSON(serverutils.SuccessResponse("Payment already settled", res))
	}
	return ctx.JSON(serverutils.SuccessResponse("Payment settled", res))
}

// Webhook receives gateway mandate events. The signature covers the raw body,
// so verification happens before any parsing.
func (c *billingController) Webhook(ctx *fiber.Ctx) error {
	signature := ctx.Get("X-Razorpay-Signature")
	eventId := ctx.Get("X-Razorpay-Event-Id")
	body := ctx.Body()

	err := c.service.ProcessGatewayWebhook(ctx.Context(), eventId, body, signature)
	if err != nil {
		// A signature mismatch is the only rejection; everything else gets a
		// 500 so the gateway retries the delivery.
		return err
	}
	return ctx.SendStatus(fiber.StatusOK)
}

func (c *billingController) GetEligibility(ctx *fiber.Ctx) error {
	productType := ctx.Query("product_type")
	if productType != string(entity.ProductTypePortfolio) && productType != string(entity.ProductTypeBundle) {
		return fiber.NewError(fiber.StatusBadRequest, "product_type must be portfolio or bundle")
	}
	productId, err := uuid.Parse(ctx.Query("product_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
	}

	userId, err := serverutils.UserIdFromLocals(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.CheckRenewalEligibility(ctx.Context(), userId, entity.ProductType(productType), productId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Renewal eligibility", res))
}

func (c *billingController) ListSubscriptions(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIdFromLocals(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.ListSubscriptions(ctx.Context(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscriptions", res))
}

func (c *billingController) CancelSubscription(ctx *fiber.Ctx) error {
	subscriptionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid subscription id")
	}

	userId, err := serverutils.UserIdFromLocals(ctx)
	if err != nil {
		return err
	}

	if err := c.service.CancelSubscription(ctx.Context(), userId, subscriptionId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Subscription cancelled", nil))
}
