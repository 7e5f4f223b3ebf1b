package observability

import "resumegate/internal/config"

const defaultServiceName = "resumegate"

// GetObservabilityConfig maps the application config onto the manager's settings.
// A nil cfg yields console-only telemetry with full sampling.
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		return ObservabilityConfig{
			ServiceName:    defaultServiceName,
			ServiceVersion: version,
			Enabled:        true,
			ConsoleOutput:  true,
			PrettyPrint:    true,
			SampleRate:     1.0,
			Prometheus:     GetPrometheusConfig(nil),
		}
	}

	obs := cfg.Observability
	out := ObservabilityConfig{
		ServiceName:    obs.ServiceName,
		ServiceVersion: obs.ServiceVersion,
		Enabled:        obs.Enabled,
		ConsoleOutput:  obs.Console.Enabled,
		PrettyPrint:    obs.Console.PrettyPrint,
		SampleRate:     clampSampleRate(obs.SampleRate),
		Prometheus:     GetPrometheusConfig(cfg),
	}
	if out.ServiceName == "" {
		out.ServiceName = defaultServiceName
	}
	if out.ServiceVersion == "" {
		out.ServiceVersion = version
	}
	return out
}

func clampSampleRate(rate float64) float64 {
	switch {
	case rate < 0:
		return 0
	case rate > 1:
		return 1
	default:
		return rate
	}
}
