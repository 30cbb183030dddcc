package enrichment

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pterm/pterm"
)

const defaultCacheSize = 10000

// GeoIPEnricher resolves client addresses to ISO country codes using a
// GeoLite2/GeoIP2 Country database. Lookups are cached per address.
type GeoIPEnricher struct {
	reader    *geoip2.Reader
	logger    *pterm.Logger
	cacheSize int

	mu    sync.RWMutex
	cache map[string]string
}

// NewGeoIPEnricher opens the country database at path
func NewGeoIPEnricher(path string, cacheSize int, logger *pterm.Logger) (*GeoIPEnricher, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening GeoIP country database %s: %w", path, err)
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	logger.Debug("GeoIP country database loaded",
		logger.Args("path", path, "type", reader.Metadata().DatabaseType))

	return &GeoIPEnricher{
		reader:    reader,
		logger:    logger,
		cacheSize: cacheSize,
		cache:     make(map[string]string),
	}, nil
}

// CountryFor returns the ISO code for addr, or "" when addr is not an IP or is unknown
func (g *GeoIPEnricher) CountryFor(addr string) (string, error) {
	g.mu.RLock()
	code, ok := g.cache[addr]
	g.mu.RUnlock()
	if ok {
		return code, nil
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return "", nil
	}

	record, err := g.reader.Country(ip)
	if err != nil {
		return "", fmt.Errorf("GeoIP lookup for %s: %w", addr, err)
	}
	code = record.Country.IsoCode

	g.mu.Lock()
	if len(g.cache) >= g.cacheSize {
		// Drop everything rather than track recency
		g.cache = make(map[string]string)
	}
	g.cache[addr] = code
	g.mu.Unlock()

	return code, nil
}

// CacheSize returns the number of cached lookups
func (g *GeoIPEnricher) CacheSize() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}

// Close releases the database
func (g *GeoIPEnricher) Close() error {
	return g.reader.Close()
}
