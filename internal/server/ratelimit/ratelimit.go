// Package ratelimit keeps one token bucket per device.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	Interval time.Duration // time between allowed requests
	Burst    int
}

func DefaultConfig() Config {
	return Config{Interval: 100 * time.Millisecond, Burst: 50}
}

// Store hands out the limiter of each device, creating it on first use.
type Store struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	config   Config
}

func NewStore(config Config) *Store {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &Store{limiters: make(map[string]*rate.Limiter), config: config}
}

func (s *Store) get(deviceID string) *rate.Limiter {
	s.mu.RLock()
	l, ok := s.limiters[deviceID]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters[deviceID]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Every(s.config.Interval), s.config.Burst)
	s.limiters[deviceID] = l
	return l
}

// Allow reports whether deviceID may make a request now.
func (s *Store) Allow(deviceID string) bool {
	return s.get(deviceID).Allow()
}
