package cron_config

type Config struct {
	// Per-account status summary, every five minutes
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 */5 * * * *"`
}
