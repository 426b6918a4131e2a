package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags first, then the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Metrics.Enabled && cfg.Metrics.Port != 0 && cfg.Metrics.Port == cfg.Server.Port {
		return fmt.Errorf("metrics.port: %d collides with server.port", cfg.Metrics.Port)
	}
	// the work queue must be able to hold at least one request per worker
	if cfg.Server.MaxRequests < cfg.Server.Threads {
		return fmt.Errorf("server.max_requests: %d is smaller than server.threads (%d)",
			cfg.Server.MaxRequests, cfg.Server.Threads)
	}
	// the hook pool shares the queue depth as its backlog
	if cfg.Server.EventThreads > cfg.Server.MaxRequests {
		return fmt.Errorf("server.event_threads: %d is larger than server.max_requests (%d)",
			cfg.Server.EventThreads, cfg.Server.MaxRequests)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		var e = validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
