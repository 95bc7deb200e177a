package config

import (
	"time"

	"github.com/iliyamo/facility-reservation/internal/ratelimit"
)

// RateLimits carries one fixed-window budget per guarded purpose. Each
// budget can be overridden via RATE_LIMIT_<PURPOSE>_MAX and
// RATE_LIMIT_<PURPOSE>_WINDOW environment variables.
type RateLimits struct {
	ReservationCreate ratelimit.Config // purpose "reservation:create"
	TransferCreate    ratelimit.Config // purpose "transfer:create"
	TransferRespond   ratelimit.Config // purpose "transfer:respond"
	AuthLogin         ratelimit.Config // purpose "auth:login"
}

// LoadRateLimits reads the per-purpose budgets from the environment,
// falling back to the defaults below.
func LoadRateLimits() RateLimits {
	return RateLimits{
		ReservationCreate: purposeConfig("RESERVATION_CREATE", 5, time.Minute),
		TransferCreate:    purposeConfig("TRANSFER_CREATE", 5, time.Minute),
		TransferRespond:   purposeConfig("TRANSFER_RESPOND", 10, time.Minute),
		AuthLogin:         purposeConfig("AUTH_LOGIN", 10, time.Minute),
	}
}

func purposeConfig(name string, defMax int, defWindow time.Duration) ratelimit.Config {
	cfg := ratelimit.Config{
		MaxRequests: envInt("RATE_LIMIT_"+name+"_MAX", defMax),
		Window:      envDur("RATE_LIMIT_"+name+"_WINDOW", defWindow),
	}
	if cfg.MaxRequests < 1 {
		cfg.MaxRequests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = defWindow
	}
	return cfg
}
