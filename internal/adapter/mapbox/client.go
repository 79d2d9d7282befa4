package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
	"github.com/couchcryptid/heatwave-tracker/internal/observability"
)

const methodReverse = "reverse"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode names the place under a coordinate. Heatwave centroids can
// sit over sparsely populated land, so regions and countries are accepted
// as well as places.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	// Mapbox uses lon,lat order and rejects longitudes outside [-180, 180].
	coord := fmt.Sprintf("%.6f,%.6f", requestLon(lon), lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,region,country"},
	}

	start := time.Now()
	result, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.WithLabelValues(methodReverse).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(methodReverse, "error").Inc()
	case result.FormattedAddress == "":
		c.metrics.GeocodeRequests.WithLabelValues(methodReverse, "empty").Inc()
		c.logger.Debug("reverse geocode found nothing", "lat", lat, "lon", lon)
	default:
		c.metrics.GeocodeRequests.WithLabelValues(methodReverse, "success").Inc()
	}
	return result, err
}

// requestLon folds a grid longitude (0-360 on many global datasets) into
// [-180, 180).
func requestLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodingResult{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Features) == 0 {
		return domain.GeocodingResult{}, nil
	}
	return decoded.Features[0].place(), nil
}

// place converts a feature into a result. PlaceName is the broadest useful
// label for an area-scale event: "region, country" when Mapbox reports both,
// otherwise the feature's own text.
func (f feature) place() domain.GeocodingResult {
	out := domain.GeocodingResult{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}
	if len(f.Center) == 2 {
		out.Lon, out.Lat = f.Center[0], f.Center[1]
	}

	region, country := f.Text, ""
	if f.hasType("country") {
		return out
	}
	for _, c := range f.Context {
		switch {
		case strings.HasPrefix(c.ID, "region."):
			region = c.Text
		case strings.HasPrefix(c.ID, "country."):
			country = c.Text
		}
	}
	if country != "" {
		out.PlaceName = region + ", " + country
	}
	return out
}

func (f feature) hasType(t string) bool {
	for _, pt := range f.PlaceType {
		if pt == t {
			return true
		}
	}
	return false
}

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64      `json:"center"` // [lon, lat]
	PlaceName string         `json:"place_name"`
	PlaceType []string       `json:"place_type"`
	Text      string         `json:"text"`
	Relevance float64        `json:"relevance"`
	Context   []contextEntry `json:"context"`
}

// contextEntry is one enclosing feature, e.g. {"id": "region.123", "text": "Catalonia"}.
type contextEntry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
