package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/poyrazK/dyndns/internal/core/domain"
)

// Zone implements ports.DNSProvider over a map of A records.
type Zone struct {
	mu      sync.RWMutex
	records map[string]domain.ARecord // key: lowercase record name
	writes  int
}

func NewZone() *Zone {
	return &Zone{records: make(map[string]domain.ARecord)}
}

func (z *Zone) Name() string { return "memory" }

func (z *Zone) GetARecord(_ context.Context, name string) (*domain.ARecord, error) {
	z.mu.RLock()
	defer z.mu.RUnlock()

	r, found := z.records[strings.ToLower(name)]
	if !found {
		return nil, nil
	}
	return &r, nil
}

func (z *Zone) UpsertARecord(_ context.Context, record domain.ARecord) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	record.Name = strings.ToLower(record.Name)
	z.records[record.Name] = record
	z.writes++
	return nil
}

// Writes is the number of upserts applied so far.
func (z *Zone) Writes() int {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.writes
}

func (z *Zone) Ping(_ context.Context) error { return nil }
