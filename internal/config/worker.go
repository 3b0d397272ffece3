package config

import (
	"time"

	"github.com/spf13/viper"
)

// WorkerConfig drives the analysis retry stream shared by the API (producer)
// and cmd/worker (consumer).
type WorkerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	MaxAttempts   int
	SweepSchedule string
	SweepMinAge   time.Duration
}

func setWorkerDefaults(v *viper.Viper) {
	v.SetDefault("worker.stream", "photos:analyze")
	v.SetDefault("worker.group", "analysis-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")
	v.SetDefault("worker.maxattempts", 5)
	v.SetDefault("worker.sweepschedule", "0 */15 * * * *")
	v.SetDefault("worker.sweepminage", "10m")
}
