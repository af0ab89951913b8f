package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/hitwatch/request-analytics/internal/config"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// IPAPIProvider queries the free ip-api.com JSON endpoint.
type IPAPIProvider struct {
	client  *http.Client
	baseURL string
}

func (p *IPAPIProvider) Name() string { return "ipapi" }

func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	base := p.baseURL
	if base == "" {
		base = "http://ip-api.com"
	}

	endpoint := fmt.Sprintf("%s/json/%s?fields=status,country,countryCode,regionName,city,lat,lon,timezone,isp", base, url.PathEscape(ip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Location{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("ip-api returned status %d", resp.StatusCode)
	}

	var payload struct {
		Status      string   `json:"status"`
		Country     string   `json:"country"`
		CountryCode string   `json:"countryCode"`
		RegionName  string   `json:"regionName"`
		City        string   `json:"city"`
		Lat         *float64 `json:"lat"`
		Lon         *float64 `json:"lon"`
		Timezone    string   `json:"timezone"`
		ISP         string   `json:"isp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Location{}, fmt.Errorf("failed to decode ip-api response: %w", err)
	}

	if payload.Status != "success" {
		return Location{}, fmt.Errorf("ip-api lookup unsuccessful for %s", ip)
	}

	return Location{
		Country:     payload.Country,
		CountryCode: payload.CountryCode,
		Region:      payload.RegionName,
		City:        payload.City,
		Latitude:    payload.Lat,
		Longitude:   payload.Lon,
		Timezone:    payload.Timezone,
		ISP:         payload.ISP,
	}, nil
}

// IPGeolocationProvider queries api.ipgeolocation.io with an API key.
type IPGeolocationProvider struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

func (p *IPGeolocationProvider) Name() string { return "ipgeolocation" }

func (p *IPGeolocationProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	base := p.baseURL
	if base == "" {
		base = "https://api.ipgeolocation.io"
	}

	query := url.Values{}
	query.Set("apiKey", p.apiKey)
	query.Set("ip", ip)
	query.Set("fields", "country_name,country_code2,state_prov,city,latitude,longitude,time_zone,isp")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/ipgeo?"+query.Encode(), nil)
	if err != nil {
		return Location{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("ipgeolocation returned status %d", resp.StatusCode)
	}

	// Latitude/longitude arrive as strings in this API.
	var payload struct {
		CountryName  string `json:"country_name"`
		CountryCode2 string `json:"country_code2"`
		StateProv    string `json:"state_prov"`
		City         string `json:"city"`
		Latitude     string `json:"latitude"`
		Longitude    string `json:"longitude"`
		TimeZone     struct {
			Name string `json:"name"`
		} `json:"time_zone"`
		ISP string `json:"isp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Location{}, fmt.Errorf("failed to decode ipgeolocation response: %w", err)
	}

	return Location{
		Country:     payload.CountryName,
		CountryCode: payload.CountryCode2,
		Region:      payload.StateProv,
		City:        payload.City,
		Latitude:    parseCoordinate(payload.Latitude),
		Longitude:   parseCoordinate(payload.Longitude),
		Timezone:    payload.TimeZone.Name,
		ISP:         payload.ISP,
	}, nil
}

func parseCoordinate(value string) *float64 {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

// MaxMindWebServiceProvider queries the GeoIP2 Precision city endpoint with
// account credentials.
type MaxMindWebServiceProvider struct {
	client     *http.Client
	accountID  string
	licenseKey string
	baseURL    string
}

func (p *MaxMindWebServiceProvider) Name() string { return "maxmind-webservice" }

func (p *MaxMindWebServiceProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	base := p.baseURL
	if base == "" {
		base = "https://geoip.maxmind.com"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/geoip/v2.1/city/"+url.PathEscape(ip), nil)
	if err != nil {
		return Location{}, err
	}
	req.SetBasicAuth(p.accountID, p.licenseKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	// 404 means the IP is simply not in the database.
	if resp.StatusCode == http.StatusNotFound {
		return Location{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("maxmind web service returned status %d", resp.StatusCode)
	}

	var payload struct {
		Country struct {
			Names   map[string]string `json:"names"`
			ISOCode string            `json:"iso_code"`
		} `json:"country"`
		Subdivisions []struct {
			Names map[string]string `json:"names"`
		} `json:"subdivisions"`
		City struct {
			Names map[string]string `json:"names"`
		} `json:"city"`
		Location struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
			TimeZone  string   `json:"time_zone"`
		} `json:"location"`
		Traits struct {
			ISP string `json:"isp"`
		} `json:"traits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Location{}, fmt.Errorf("failed to decode maxmind response: %w", err)
	}

	loc := Location{
		Country:     payload.Country.Names["en"],
		CountryCode: payload.Country.ISOCode,
		City:        payload.City.Names["en"],
		Latitude:    payload.Location.Latitude,
		Longitude:   payload.Location.Longitude,
		Timezone:    payload.Location.TimeZone,
		ISP:         payload.Traits.ISP,
	}
	if len(payload.Subdivisions) > 0 {
		loc.Region = payload.Subdivisions[0].Names["en"]
	}
	return loc, nil
}

// MaxMindDatabaseProvider reads a local GeoLite2/GeoIP2 city database file.
type MaxMindDatabaseProvider struct {
	reader *geoip2.Reader
}

func (p *MaxMindDatabaseProvider) Name() string { return "maxmind-database" }

func (p *MaxMindDatabaseProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, fmt.Errorf("unparsable ip %q", ip)
	}

	record, err := p.reader.City(parsed)
	if err != nil {
		return Location{}, fmt.Errorf("maxmind database lookup failed: %w", err)
	}

	loc := Location{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
		Timezone:    record.Location.TimeZone,
	}
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		lat, lon := record.Location.Latitude, record.Location.Longitude
		loc.Latitude = &lat
		loc.Longitude = &lon
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	return loc, nil
}

func (p *MaxMindDatabaseProvider) Close() error {
	return p.reader.Close()
}

// newMaxMindProvider picks the web-service or local-database variant; any
// configuration gap degrades to the null provider with a warning rather
// than failing startup.
func newMaxMindProvider(cfg config.MaxMindConfig, client *http.Client, logger *zap.Logger) Provider {
	switch cfg.Type {
	case "database":
		if cfg.DatabasePath == "" {
			logger.Warn("MaxMind database path not configured, geolocation disabled")
			return &NullProvider{}
		}
		if _, err := os.Stat(cfg.DatabasePath); err != nil {
			logger.Warn("MaxMind database file not found, geolocation disabled",
				zap.String("path", cfg.DatabasePath),
				zap.Error(err),
			)
			return &NullProvider{}
		}
		reader, err := geoip2.Open(cfg.DatabasePath)
		if err != nil {
			logger.Warn("Failed to open MaxMind database, geolocation disabled",
				zap.String("path", cfg.DatabasePath),
				zap.Error(err),
			)
			return &NullProvider{}
		}
		return &MaxMindDatabaseProvider{reader: reader}
	case "webservice":
		if cfg.AccountID == "" || cfg.LicenseKey == "" {
			logger.Warn("MaxMind web service credentials not configured, geolocation disabled")
			return &NullProvider{}
		}
		return &MaxMindWebServiceProvider{
			client:     client,
			accountID:  cfg.AccountID,
			licenseKey: cfg.LicenseKey,
		}
	default:
		logger.Warn("Unknown MaxMind type, geolocation disabled", zap.String("type", cfg.Type))
		return &NullProvider{}
	}
}
