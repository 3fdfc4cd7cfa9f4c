package main

import (
	"context"
	"time"

	"github.com/waveline/crm-services/dispatcher/internal/config"
	"github.com/waveline/crm-services/dispatcher/internal/consumers"
	"github.com/waveline/crm-services/dispatcher/internal/publishers"
	"github.com/waveline/crm-services/dispatcher/internal/repository"
	"github.com/waveline/crm-services/dispatcher/internal/service"
	"github.com/waveline/crm-services/dispatcher/pkg/httpclient"
	"github.com/waveline/crm-services/dispatcher/pkg/mq"
	"github.com/waveline/crm-services/dispatcher/pkg/mysql"
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
			NewConnectionDB,
			NewMQConnection,
			NewMQConsumer,
			NewMQPublisher,
			NewTransportRegistry,

			repository.NewCampaignRepository,
			repository.NewRecipientRepository,
			repository.NewMessageRepository,
			repository.NewConversationRepository,
			repository.NewChannelRepository,
			repository.NewTransactionManager,

			service.NewRateGovernor,
			service.NewExecutionEngine,

			NewRunConsumer,
			publishers.NewScheduledPublisher,
		),
		fx.Invoke(runCampaignWorker),
	).Run()
}

// runCampaignWorker consumes campaign.run and, on a ticker, enqueues
// SCHEDULED campaigns whose time has come.
func runCampaignWorker(cfg *config.Config, runConsumer consumers.CampaignRunConsumer,
	scheduled publishers.ScheduledPublisher, logger *zap.Logger, rabbit *mq.RabbitMQ, lc fx.Lifecycle) {
	appCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rabbit.DeclareTopology([]string{publishers.QueueCampaignRun}); err != nil {
				logger.Error("declare topology failed", zap.Error(err))
				return err
			}
			logger.Info("queue declared", zap.String("queue", publishers.QueueCampaignRun))

			go func() {
				if err := runConsumer.Consume(appCtx); err != nil {
					logger.Error("consumer exited", zap.Error(err))
				}
			}()

			go func() {
				ticker := time.NewTicker(cfg.Engine.SchedulerTick)
				defer ticker.Stop()

				for {
					select {
					case <-ticker.C:
						if err := scheduled.Publish(appCtx); err != nil {
							logger.Error("failed to publish scheduled campaigns", zap.Error(err))
						}
					case <-appCtx.Done():
						logger.Info("scheduler context cancelled")
						return
					}
				}
			}()

			logger.Info("campaign worker started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping campaign worker")
			cancel()
			return rabbit.Close()
		},
	})
}

func NewConnectionDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	ctx := context.Background()
	return mysql.NewConnection(ctx, cfg.Database, logger)
}

func NewMQConnection(cfg *config.Config, logger *zap.Logger) (*mq.RabbitMQ, error) {
	return mq.NewConnection(cfg.RabbitMQ, logger)
}

func NewMQConsumer(rabbitMQ *mq.RabbitMQ) (mq.Consumer, error) {
	return rabbitMQ.CreateConsumer()
}

func NewMQPublisher(rabbitMQ *mq.RabbitMQ) (mq.Publisher, error) {
	return rabbitMQ.CreatePublisher()
}

func NewTransportRegistry(cfg *config.Config) service.Sender {
	client := httpclient.NewHTTPClient(cfg.Transport.Timeout)
	return transport.NewRegistry(
		transport.NewCloudAPI(cfg.Transport, client),
		transport.NewGateway(cfg.Transport),
	)
}

func NewRunConsumer(engine service.ExecutionEngine, consumer mq.Consumer, cfg *config.Config,
	logger *zap.Logger) consumers.CampaignRunConsumer {
	return consumers.NewCampaignRunConsumer(engine, consumer, cfg.RabbitMQ.Prefetch, logger)
}
