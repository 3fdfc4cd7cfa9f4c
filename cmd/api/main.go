package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/waveline/crm-services/dispatcher/internal/api"
	v1 "github.com/waveline/crm-services/dispatcher/internal/api/v1"
	"github.com/waveline/crm-services/dispatcher/internal/config"
	middleware "github.com/waveline/crm-services/dispatcher/internal/error"
	"github.com/waveline/crm-services/dispatcher/internal/publishers"
	"github.com/waveline/crm-services/dispatcher/internal/repository"
	"github.com/waveline/crm-services/dispatcher/internal/service"
	"github.com/waveline/crm-services/dispatcher/pkg/httpclient"
	"github.com/waveline/crm-services/dispatcher/pkg/mq"
	"github.com/waveline/crm-services/dispatcher/pkg/mysql"
	"github.com/waveline/crm-services/dispatcher/pkg/staging"
	"github.com/waveline/crm-services/dispatcher/pkg/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	fx.New(
		fx.Provide(
			config.Load,
			zap.NewProduction,
			NewFiberApp,
			NewConnectionDB,
			NewMQConnection,
			NewMQPublisher,
			NewStagingStore,
			NewTransportRegistry,

			repository.NewCampaignRepository,
			repository.NewRecipientRepository,
			repository.NewMessageRepository,
			repository.NewConversationRepository,
			repository.NewChannelRepository,
			repository.NewContactRepository,
			repository.NewDripRepository,
			repository.NewTransactionManager,

			service.NewRateGovernor,
			service.NewCampaignService,
			service.NewExecutionEngine,
			service.NewDripScheduler,
			service.NewReconciler,

			publishers.NewRunPublisher,

			v1.NewHandler,
		),
		fx.Invoke(startServer),
	).Run()
}

func startServer(app *fiber.App, handler *v1.Handler, cfg *config.Config, logger *zap.Logger,
	rabbit *mq.RabbitMQ, lc fx.Lifecycle) {
	api.SetupRoutes(app, handler)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rabbit.DeclareTopology([]string{publishers.QueueCampaignRun}); err != nil {
				logger.Error("declare topology failed", zap.Error(err))
				return err
			}

			go func() {
				if err := app.Listen(cfg.API.Port); err != nil {
					logger.Error("server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := app.ShutdownWithContext(ctx); err != nil {
				return err
			}
			return rabbit.Close()
		},
	})
}

func NewFiberApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
}

func NewConnectionDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	ctx := context.Background()
	return mysql.NewConnection(ctx, cfg.Database, logger)
}

func NewMQConnection(cfg *config.Config, logger *zap.Logger) (*mq.RabbitMQ, error) {
	return mq.NewConnection(cfg.RabbitMQ, logger)
}

func NewMQPublisher(rabbitMQ *mq.RabbitMQ) (mq.Publisher, error) {
	return rabbitMQ.CreatePublisher()
}

func NewStagingStore(cfg *config.Config, logger *zap.Logger) (staging.Store, error) {
	return staging.NewStore(cfg.Staging, logger)
}

func NewTransportRegistry(cfg *config.Config) service.Sender {
	client := httpclient.NewHTTPClient(cfg.Transport.Timeout)
	return transport.NewRegistry(
		transport.NewCloudAPI(cfg.Transport, client),
		transport.NewGateway(cfg.Transport),
	)
}
