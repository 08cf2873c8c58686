package crest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/shadow-crest/cache"
	"github.com/pilab-dev/shadow-crest/internal/metrics"
	"github.com/pilab-dev/shadow-crest/log"
)

const (
	// DefaultLocationTTL is how long a derived location is reused.
	DefaultLocationTTL = 10 * time.Second

	locationCacheKey = "CACHED.LOCATION.%s"
)

// LocationPath leads from the CREST root to the character's current location.
var LocationPath = []string{"decode", "character", "location"}

// Location is the current whereabouts of a character.
// Timeout is set when a hop failed; NoData when the graph had no location resource.
// Neither outcome is cached.
type Location struct {
	System  *System  `json:"system,omitempty"`
	Station *Station `json:"station,omitempty"`
	Timeout bool     `json:"timeout"`
	NoData  bool     `json:"noData,omitempty"`
}

// LocationCacheKey is the cache key for accessToken. The token itself is never stored.
func LocationCacheKey(accessToken string) string {
	return fmt.Sprintf(locationCacheKey, "TOKEN_"+cache.HashToken(accessToken))
}

// LocationService memoizes location walks per access token.
type LocationService struct {
	walker *Walker
	store  cache.Store
	logger log.Logger
}

// NewLocationService creates a LocationService.
func NewLocationService(walker *Walker, store cache.Store, logger log.Logger) *LocationService {
	return &LocationService{walker: walker, store: store, logger: logger}
}

// GetLocation returns the cached location for accessToken or walks CREST for a fresh one.
// Only configuration failures are returned as errors.
func (s *LocationService) GetLocation(ctx context.Context, accessToken string, ttl time.Duration, opts FetchOptions) (Location, error) {
	if ttl <= 0 {
		ttl = DefaultLocationTTL
	}
	key := LocationCacheKey(accessToken)

	raw, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		var loc Location
		if err := json.Unmarshal(raw, &loc); err == nil {
			metrics.ObserveLocationCache(true)
			return loc, nil
		}
		s.logger.Warn(ctx, "Discarding undecodable location cache entry", log.Fields{"key": key})
	case !errors.Is(err, cache.ErrNotFound):
		s.logger.Warn(ctx, "Location cache read failed", log.Fields{"key": key, "error": err.Error()})
	}
	metrics.ObserveLocationCache(false)

	loc, err := s.walkLocation(ctx, accessToken, opts)
	if err != nil {
		return Location{}, err
	}
	if loc.Timeout || loc.NoData {
		return loc, nil
	}

	encoded, err := json.Marshal(loc)
	if err != nil {
		return Location{}, fmt.Errorf("encoding location: %w", err)
	}
	if err := s.store.Set(ctx, key, encoded, ttl); err != nil {
		s.logger.Warn(ctx, "Location cache write failed", log.Fields{"key": key, "error": err.Error()})
	}

	return loc, nil
}

func (s *LocationService) walkLocation(ctx context.Context, accessToken string, opts FetchOptions) (Location, error) {
	root, err := s.walker.Endpoints(ctx, accessToken)
	if err != nil {
		return classifyWalkError(err)
	}

	result, err := s.walker.Walk(ctx, accessToken, root, LocationPath, opts)
	if err != nil {
		return classifyWalkError(err)
	}

	doc, ok := asMap(result)
	if !ok {
		return Location{NoData: true}, nil
	}

	var loc Location
	if sub, ok := doc.Sub("solarSystem"); ok {
		if loc.System, err = MapSystem(sub); err != nil {
			return Location{NoData: true}, nil
		}
	}
	if sub, ok := doc.Sub("station"); ok {
		if loc.Station, err = MapStation(sub); err != nil {
			return Location{NoData: true}, nil
		}
	}
	return loc, nil
}

func classifyWalkError(err error) (Location, error) {
	switch {
	case errors.Is(err, ErrConfiguration):
		return Location{}, err
	case IsGraphFailure(err):
		return Location{NoData: true}, nil
	default:
		return Location{Timeout: true}, nil
	}
}
