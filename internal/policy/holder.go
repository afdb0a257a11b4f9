package policy

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Holder serves the current policy and hot-reloads it when the config
// file changes, so operations can adjust the cutoff window without a
// restart.
type Holder struct {
	current atomic.Value // holds Policy
}

func NewHolder(log *zap.Logger) (*Holder, error) {
	v := viper.New()

	v.SetConfigName("payments")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/mwukenya")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MWUKENYA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("policy.timezone", defaults.Timezone)
	v.SetDefault("policy.lockStartHour", defaults.LockStartHour)
	v.SetDefault("policy.lockDurationMins", defaults.LockDurationMins)
	v.SetDefault("policy.bucketCutoffHour", defaults.BucketCutoffHour)
	v.SetDefault("policy.maxCoverageDays", defaults.MaxCoverageDays)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg Policy
	if err := v.UnmarshalKey("policy", &cfg); err != nil {
		return nil, err
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	holder := &Holder{}
	holder.current.Store(cfg)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated Policy
			if err := v.UnmarshalKey("policy", &updated); err != nil {
				log.Warn("payment policy reload failed", zap.Error(err))
				return
			}
			if err := validate(&updated); err != nil {
				log.Warn("invalid payment policy ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("payment policy reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *Holder) Get() Policy {
	return h.current.Load().(Policy)
}

// NewStaticHolder wraps a fixed policy, for tests.
func NewStaticHolder(p Policy) *Holder {
	if err := validate(&p); err != nil {
		panic(err)
	}
	h := &Holder{}
	h.current.Store(p)
	return h
}

var Module = fx.Module("policy",
	fx.Provide(NewHolder),
)
