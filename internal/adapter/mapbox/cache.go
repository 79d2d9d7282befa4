package mapbox

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
	"github.com/couchcryptid/heatwave-tracker/internal/observability"
)

// keyPrecision is the cache resolution in degrees. A persistent heatwave's
// centroid wanders by less than this between re-runs of the same artifacts.
const keyPrecision = 0.01

// placeKey is a centroid snapped to keyPrecision, with longitude folded into
// [-180, 180) so 0-360 and -180-180 grids share entries.
type placeKey struct {
	lat, lon int64
}

func keyFor(lat, lon float64) placeKey {
	return placeKey{
		lat: int64(math.Round(lat / keyPrecision)),
		lon: int64(math.Round(requestLon(lon) / keyPrecision)),
	}
}

// CachedGeocoder memoizes reverse lookups of event centroids in a bounded
// LRU. Errors and empty results are not cached.
type CachedGeocoder struct {
	inner   domain.Geocoder
	places  *placeCache
	metrics *observability.Metrics
}

// NewCachedGeocoder wraps inner with a cache of at most maxEntries places.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, places: newPlaceCache(maxEntries), metrics: metrics}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := keyFor(lat, lon)
	if place, ok := c.places.lookup(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(methodReverse, "hit").Inc()
		return place, nil
	}
	c.metrics.GeocodeCache.WithLabelValues(methodReverse, "miss").Inc()

	place, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil || place.FormattedAddress == "" {
		return place, err
	}
	c.places.store(key, place)
	return place, nil
}

// placeCache is a mutex-guarded LRU; the front of order is most recent.
type placeCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[placeKey]*list.Element
}

type cachedPlace struct {
	key   placeKey
	place domain.GeocodingResult
}

func newPlaceCache(capacity int) *placeCache {
	return &placeCache{
		capacity: max(capacity, 1),
		order:    list.New(),
		items:    make(map[placeKey]*list.Element),
	}
}

func (c *placeCache) lookup(key placeKey) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cachedPlace).place, true
}

func (c *placeCache) store(key placeKey, place domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*cachedPlace).place = place
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cachedPlace{key: key, place: place})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cachedPlace).key)
	}
}

func (c *placeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
