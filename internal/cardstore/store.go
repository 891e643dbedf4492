// Package cardstore persists card records. Two backends share one
// contract: a CSV file compatible with existing card files, and SQLite.
package cardstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andrei-cloud/go_cardsim/internal/card"
)

var (
	// ErrCardNotFound is returned when no record has the requested PAN.
	ErrCardNotFound = errors.New("card not found")
	// ErrDuplicateCard is returned when appending a PAN that already exists.
	ErrDuplicateCard = errors.New("card already exists")
	// ErrMalformedRecord is returned for records that cannot be parsed.
	ErrMalformedRecord = errors.New("malformed card record")
	// ErrUnknownBackend is returned by Open for unsupported backends.
	ErrUnknownBackend = errors.New("unknown card store backend")
)

// Store is the card-record boundary used by the client operations.
type Store interface {
	Load(ctx context.Context) ([]card.Card, error)
	// LoadSelectedOrFirst returns nil, nil when the store is empty.
	LoadSelectedOrFirst(ctx context.Context) (*card.Card, error)
	UpdateStatus(ctx context.Context, pan string, status card.Status) error
	AppendGenerated(ctx context.Context, c *card.Card) error
	Select(ctx context.Context, pan string) error
	Close() error
}

// Config selects and locates a backend.
type Config struct {
	Backend string
	Path    string
}

// Backend names.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Open returns the store described by cfg.
func Open(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("card store path required")
	}

	switch strings.ToLower(cfg.Backend) {
	case "", BackendCSV:
		return NewCSVStore(cfg.Path), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func selectedOrFirst(cards []card.Card) *card.Card {
	if len(cards) == 0 {
		return nil
	}
	for i := range cards {
		if cards[i].Selected {
			c := cards[i]
			return &c
		}
	}
	c := cards[0]

	return &c
}
