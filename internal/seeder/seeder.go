// Package seeder generates synthetic security events for demos and local
// load testing.
package seeder

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/sentinel-systems/secmon/internal/catalog"
	"github.com/sentinel-systems/secmon/internal/recorder"
)

// Seeder writes synthetic events through the recorder so they take the
// same path as real ones.
type Seeder struct {
	recorder *recorder.Recorder
	faker    *gofakeit.Faker
}

// New creates a Seeder. A non-zero seed makes generation reproducible.
func New(rec *recorder.Recorder, seed uint64) *Seeder {
	return &Seeder{
		recorder: rec,
		faker:    gofakeit.New(int64(seed)),
	}
}

// Run records count synthetic events and returns the number recorded.
func (s *Seeder) Run(count int) (int, error) {
	kinds := catalog.IDs()
	recorded := 0
	for i := 0; i < count; i++ {
		kind := kinds[s.faker.IntRange(0, len(kinds)-1)]
		_, err := s.recorder.Record(kind, recorder.Options{
			UserID:    fmt.Sprintf("%d", s.faker.IntRange(1, 500)),
			IPAddress: s.faker.IPv4Address(),
			Details:   s.details(kind),
		})
		if err != nil {
			return recorded, fmt.Errorf("seed event %d: %w", i, err)
		}
		recorded++
	}
	return recorded, nil
}

// details fabricates a plausible payload for the event kind.
func (s *Seeder) details(kind string) map[string]any {
	switch kind {
	case catalog.LoginFailed, catalog.BruteForceAttempt, catalog.LoginLockout:
		return map[string]any{
			"username": s.faker.Username(),
			"attempts": s.faker.IntRange(1, 10),
		}
	case catalog.RateLimitExceeded:
		return map[string]any{
			"path":  "/api/" + s.faker.Word(),
			"class": "sensitive",
		}
	case catalog.DataExport:
		return map[string]any{
			"rows":   s.faker.IntRange(10, 100000),
			"format": "csv",
		}
	case catalog.PaymentError:
		return map[string]any{
			"amount":   s.faker.Price(1, 2000),
			"currency": s.faker.CurrencyShort(),
		}
	default:
		return map[string]any{
			"user_agent": s.faker.UserAgent(),
		}
	}
}
