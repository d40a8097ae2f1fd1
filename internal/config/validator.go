package config

import (
	"fmt"
	"net"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateCarriers(cfg.Carriers); err != nil {
		errors = append(errors, err)
	}

	if err := validateWorkflow(cfg.Workflow); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	}

	if cfg.Type != "kafka" {
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unsupported broker type '%s'", cfg.Type),
		}
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one broker address is required",
		}
	}

	return nil
}

func validateCarriers(cfg CarriersConfig) error {
	if cfg.OrgID == "" {
		return &ValidationError{
			Field:   "carriers.org_id",
			Message: "owning organization id is required",
		}
	}

	for _, cidr := range cfg.RCS.TrustedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return &ValidationError{
				Field:   "carriers.rcs.trusted_cidrs",
				Message: fmt.Sprintf("invalid CIDR '%s': %v", cidr, err),
			}
		}
	}

	return nil
}

func validateWorkflow(cfg WorkflowConfig) error {
	if cfg.EvaluatorURL == "" {
		return &ValidationError{
			Field:   "workflow.evaluator_url",
			Message: "policy evaluator URL is required",
		}
	}

	return nil
}
