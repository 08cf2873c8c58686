package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crest_http_requests_total",
		Help: "Total number of outbound SSO/CREST HTTP requests by outcome.",
	}, []string{"method", "outcome"})

	TokenRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sso_token_requests_total",
		Help: "Total number of token endpoint requests by grant type and outcome.",
	}, []string{"grant_type", "outcome"})

	DeprecatedResourcesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crest_deprecated_resources_total",
		Help: "Total number of CREST responses flagged as deprecated.",
	})

	LocationCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crest_location_cache_total",
		Help: "Location cache lookups by result.",
	}, []string{"result"})

	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sso_logins_total",
		Help: "Total number of SSO login callbacks by outcome.",
	}, []string{"outcome"})
)

// Register registers the collectors on reg. It should be called once at startup.
// Collectors are usable without registration; they are simply not exported.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}
	for _, c := range []prometheus.Collector{
		HTTPRequestsTotal,
		TokenRequestsTotal,
		DeprecatedResourcesTotal,
		LocationCacheTotal,
		LoginsTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}

func ObserveHTTPRequest(method, outcome string) {
	HTTPRequestsTotal.WithLabelValues(method, outcome).Inc()
}

func ObserveTokenRequest(grantType, outcome string) {
	TokenRequestsTotal.WithLabelValues(grantType, outcome).Inc()
}

func ObserveDeprecated() {
	DeprecatedResourcesTotal.Inc()
}

// ObserveLocationCache records a location cache lookup; hit selects the label.
func ObserveLocationCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	LocationCacheTotal.WithLabelValues(result).Inc()
}

func ObserveLogin(outcome string) {
	LoginsTotal.WithLabelValues(outcome).Inc()
}
