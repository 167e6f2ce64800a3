package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"visionsync/backend/internal/config"
	"visionsync/backend/internal/services"
)

// periodicConfigProvider feeds the asynq periodic task manager the schedules
// for the analytics snapshot and the quote expiry sweep. The manager re-reads
// the configs on every sync, so interval changes made through the runtime
// config take effect without a restart. An interval of zero or less disables
// the task.
type periodicConfigProvider struct {
	cfg           *config.Config
	configService services.IConfigService
}

func (p *periodicConfigProvider) GetConfigs() ([]*asynq.PeriodicTaskConfig, error) {
	ctx := context.Background()
	var configs []*asynq.PeriodicTaskConfig

	if interval := p.configService.GetDuration(ctx, "ANALYTICS_SNAPSHOT_SECONDS", p.cfg.AnalyticsSnapshotInterval); interval > 0 {
		configs = append(configs, &asynq.PeriodicTaskConfig{
			Cronspec: fmt.Sprintf("@every %s", interval),
			Task:     asynq.NewTask(TypeAnalyticsSnapshot, nil),
			Opts:     []asynq.Option{asynq.Queue("low")},
		})
	}
	if interval := p.configService.GetDuration(ctx, "QUOTE_EXPIRE_SWEEP_SECONDS", time.Hour); interval > 0 {
		configs = append(configs, &asynq.PeriodicTaskConfig{
			Cronspec: fmt.Sprintf("@every %s", interval),
			Task:     asynq.NewTask(TypeQuoteExpireSweep, nil),
			Opts:     []asynq.Option{asynq.Queue("low")},
		})
	}
	return configs, nil
}

// SetupPeriodicScheduler builds the periodic task manager for the background
// worker. The caller runs it alongside the task server; Run blocks until
// Shutdown.
func SetupPeriodicScheduler(rdb *redis.Client, cfg *config.Config, configService services.IConfigService) (*asynq.PeriodicTaskManager, error) {
	return asynq.NewPeriodicTaskManager(asynq.PeriodicTaskManagerOpts{
		RedisConnOpt:               asynq.RedisClientOpt{Addr: rdb.Options().Addr},
		PeriodicTaskConfigProvider: &periodicConfigProvider{cfg: cfg, configService: configService},
		SyncInterval:               time.Minute,
	})
}
