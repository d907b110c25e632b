// FILE: internal/service/notification_service.go
// Consumes renewal reminder messages and delivers them over email.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"portfolio-commerce-be/internal/dto"
	"portfolio-commerce-be/internal/pkg/mailer"
	"portfolio-commerce-be/internal/repository/unitofwork"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// ReminderTopic carries dto.ReminderMessage payloads from the sweeper to the
// notification worker.
const ReminderTopic = "subscription.reminder.due"

type INotificationService interface {
	Consume(ctx context.Context) error
}

type notificationService struct {
	pubSub       *gochannel.GoChannel
	uowFactory   unitofwork.RepositoryFactory
	emailService mailer.IEmailService
}

func NewNotificationService(
	pubSub *gochannel.GoChannel,
	uowFactory unitofwork.RepositoryFactory,
	emailService mailer.IEmailService,
) INotificationService {
	return &notificationService{
		pubSub:       pubSub,
		uowFactory:   uowFactory,
		emailService: emailService,
	}
}

func (ns *notificationService) Consume(ctx context.Context) error {
	messages, err := ns.pubSub.Subscribe(ctx, ReminderTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			ns.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (ns *notificationService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.ReminderMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal reminder message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	subId, err := uuid.Parse(payload.SubscriptionId)
	if err != nil {
		log.Printf("[ERROR] Reminder carries invalid subscription id %q", payload.SubscriptionId)
		msg.Ack()
		return
	}

	productName := payload.ProductId
	if payload.ProductType != "" {
		productName = payload.ProductType + " " + payload.ProductId
	}

	err = ns.emailService.SendRenewalReminder(
		payload.Email, payload.FullName, productName, payload.ExpiresAt, payload.DaysRemaining)
	if err != nil {
		log.Printf("[ERROR] Failed to send renewal reminder for %s: %v", payload.SubscriptionId, err)
		msg.Nack() // Retriable
		return
	}

	// Stamp only after a confirmed send so a failed delivery is retried on
	// the next scan instead of silently throttled.
	uow := ns.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SubscriptionRepository().MarkReminderSent(ctx, subId, time.Now()); err != nil {
		log.Printf("[ERROR] Failed to mark reminder sent for %s: %v", payload.SubscriptionId, err)
		// Email went out; don't redeliver it over a bookkeeping failure.
	}

	log.Printf("[SUCCESS] Renewal reminder sent for subscription %s", payload.SubscriptionId)
	msg.Ack()
}
