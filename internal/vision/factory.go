package vision

import (
	"fmt"

	"ledgerlens/internal/config"
	"ledgerlens/internal/port"
)

// ProviderFactory creates a VisionService from a provider config.
type ProviderFactory func(cfg *config.VisionProviderConfig) (port.VisionService, error)

// registry of vision provider factories, populated explicitly via RegisterProvider.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a vision provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewService creates a VisionService from a provider config using the registered factory.
func NewService(cfg *config.VisionProviderConfig) (port.VisionService, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown vision provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewFromConfig builds the configured providers and chains them with a FallbackService
// when more than one is configured. It returns nil when no provider is configured.
func NewFromConfig(cfg *config.VisionConfig) (port.VisionService, error) {
	provCfgs := cfg.Providers()
	if len(provCfgs) == 0 {
		return nil, nil
	}
	services := make([]port.VisionService, 0, len(provCfgs))
	names := make([]string, 0, len(provCfgs))
	for _, pc := range provCfgs {
		svc, err := NewService(pc)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
		names = append(names, pc.Provider)
	}
	if len(services) == 1 {
		return services[0], nil
	}
	return NewFallbackService(services, names), nil
}
