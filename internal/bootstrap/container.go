package bootstrap

import (
	"context"
	"log"
	"time"

	"portfolio-commerce-be/internal/config"
	"portfolio-commerce-be/internal/controller"
	"portfolio-commerce-be/internal/pkg/logger"
	"portfolio-commerce-be/internal/pkg/mailer"
	"portfolio-commerce-be/internal/repository/unitofwork"
	"portfolio-commerce-be/internal/scheduler"
	"portfolio-commerce-be/internal/service"
	"portfolio-commerce-be/pkg/gateway/razorpay"

	pktNats "portfolio-commerce-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	BillingController controller.IBillingController

	// Background Services (Exposed for main.go to run)
	NotificationService service.INotificationService
	Scheduler           *scheduler.Scheduler

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// Payment gateway
	gatewayClient := razorpay.NewClient(
		cfg.Gateway.KeyId,
		cfg.Gateway.KeySecret,
		cfg.Gateway.WebhookSecret,
		time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second,
	)

	// 3. Services
	catalogService := service.NewCatalogService(uowFactory)
	accessService := service.NewAccessService(uowFactory, rdb, sysLogger)

	subscriptionService := service.NewSubscriptionService(
		uowFactory,
		catalogService,
		gatewayClient,
		accessService,
		natsPub,
		sysLogger,
	)

	sweeperService := service.NewSweeperService(
		uowFactory,
		gatewayClient,
		accessService,
		pubSub,
		sysLogger,
	)

	notificationService := service.NewNotificationService(
		pubSub,
		uowFactory,
		emailService,
	)

	sched := scheduler.New(sweeperService, sysLogger, cfg)

	// 4. Controllers
	return &Container{
		BillingController:   controller.NewBillingController(subscriptionService),
		NotificationService: notificationService,
		Scheduler:           sched,
		Logger:              sysLogger,
	}
}
