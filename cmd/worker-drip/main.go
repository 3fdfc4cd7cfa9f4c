package main

import (
	"context"
	"time"

	"github.com/waveline/crm-services/dispatcher/internal/config"
	"github.com/waveline/crm-services/dispatcher/internal/repository"
	"github.com/waveline/crm-services/dispatcher/internal/service"
	"github.com/waveline/crm-services/dispatcher/pkg/httpclient"
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
			NewTransportRegistry,

			repository.NewCampaignRepository,
			repository.NewMessageRepository,
			repository.NewConversationRepository,
			repository.NewChannelRepository,
			repository.NewContactRepository,
			repository.NewDripRepository,

			service.NewRateGovernor,
			service.NewDripScheduler,
		),
		fx.Invoke(runDripWorker),
	).Run()
}

func runDripWorker(cfg *config.Config, scheduler service.DripScheduler, logger *zap.Logger,
	lc fx.Lifecycle) {
	appCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(cfg.Drip.SweepInterval)
				defer ticker.Stop()

				for {
					select {
					case <-ticker.C:
						result, err := scheduler.Sweep(appCtx)
						if err != nil {
							logger.Error("sweep failed", zap.Error(err))
							continue
						}

						if result.Processed > 0 || result.Errors > 0 {
							logger.Info("sweep finished",
								zap.Int("processed", result.Processed),
								zap.Int("completed", result.Completed),
								zap.Int("errors", result.Errors))
						}
					case <-appCtx.Done():
						logger.Info("sweep context cancelled")
						return
					}
				}
			}()

			logger.Info("drip worker started",
				zap.Duration("sweepInterval", cfg.Drip.SweepInterval))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping drip worker")
			cancel()
			return nil
		},
	})
}

func NewConnectionDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	ctx := context.Background()
	return mysql.NewConnection(ctx, cfg.Database, logger)
}

func NewTransportRegistry(cfg *config.Config) service.Sender {
	client := httpclient.NewHTTPClient(cfg.Transport.Timeout)
	return transport.NewRegistry(
		transport.NewCloudAPI(cfg.Transport, client),
		transport.NewGateway(cfg.Transport),
	)
}
