package geo

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitwatch/request-analytics/internal/config"
	"github.com/hitwatch/request-analytics/pkg/cache"
	"go.uber.org/zap"
)

// Location is the result of an IP lookup. The zero value means "unknown".
type Location struct {
	Country     string   `json:"country"`
	CountryCode string   `json:"country_code"`
	Region      string   `json:"region"`
	City        string   `json:"city"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Timezone    string   `json:"timezone"`
	ISP         string   `json:"isp"`
}

// Provider is one geolocation backend. Lookups are expected to fail; the
// resolver turns every failure into an empty location.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (Location, error)
}

// Resolver wraps the configured provider with a read-through cache and the
// never-fail contract the capture pipeline relies on.
type Resolver struct {
	provider Provider
	cache    *cache.Cache
	cfg      config.GeolocationConfig
	logger   *zap.Logger
}

func NewResolver(cfg config.GeolocationConfig, c *cache.Cache, logger *zap.Logger) *Resolver {
	client := &http.Client{Timeout: cfg.Timeout}

	var provider Provider
	switch cfg.Provider {
	case "ipapi":
		provider = &IPAPIProvider{client: client}
	case "ipgeolocation":
		if cfg.APIKey == "" {
			logger.Warn("ipgeolocation provider selected without an API key, geolocation disabled")
			provider = &NullProvider{}
		} else {
			provider = &IPGeolocationProvider{client: client, apiKey: cfg.APIKey}
		}
	case "maxmind":
		provider = newMaxMindProvider(cfg.MaxMind, client, logger)
	default:
		provider = &NullProvider{}
	}

	return &Resolver{
		provider: provider,
		cache:    c,
		cfg:      cfg,
		logger:   logger,
	}
}

// Resolve looks up the location for an IP. It never returns an error: a
// failed or slow lookup degrades to an empty location with a warning so
// capture is never aborted. Results are cached per IP.
func (r *Resolver) Resolve(ctx context.Context, ip string) Location {
	if !r.cfg.Enabled || ip == "" || isLocalIP(ip) {
		return Location{}
	}

	cacheKey := "geo_location_" + ip
	if cached, ok := r.cache.Get(cacheKey); ok {
		if loc, ok := cached.(Location); ok {
			return loc
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	loc, err := r.provider.Lookup(lookupCtx, ip)
	if err != nil {
		r.logger.Warn("IP geolocation lookup failed",
			zap.String("ip", ip),
			zap.String("provider", r.provider.Name()),
			zap.Error(err),
		)
		return Location{}
	}

	r.cache.Put(cacheKey, loc, r.cfg.CacheTTL)
	return loc
}

// isLocalIP filters loopback and private ranges that no provider can place.
func isLocalIP(ip string) bool {
	if ip == "127.0.0.1" || ip == "::1" {
		return true
	}
	return strings.HasPrefix(ip, "192.168.") ||
		strings.HasPrefix(ip, "10.") ||
		strings.HasPrefix(ip, "172.")
}

// NullProvider is the disabled/unconfigured strategy: every lookup resolves
// to an empty location.
type NullProvider struct{}

func (p *NullProvider) Name() string { return "null" }

func (p *NullProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	return Location{}, nil
}
