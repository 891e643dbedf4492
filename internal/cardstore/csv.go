package cardstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sys/unix"

	"github.com/andrei-cloud/go_cardsim/internal/card"
)

var csvHeader = []string{
	"PREFIX", "PAN_LENGTH", "PAN", "EXPIRY", "PIN", "PVV", "STATUS",
	"PRODUCT", "SCHEME", "PER_TXN_LIMIT", "DAILY_LIMIT", "SOURCE_ID", "SELECTED", "CVV",
}

// legacyColumns is the record width written before CVV was stored.
const legacyColumns = 13

// CSVStore keeps cards in a comma separated file. Every mutation holds an
// exclusive advisory lock for the whole read, modify and rewrite cycle, so
// concurrent writers in other processes do not lose updates.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore returns a store backed by the file at path. The file is created on first write.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file.
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads every card.
func (s *CSVStore) Load(ctx context.Context) ([]card.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open card file: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return nil, fmt.Errorf("lock card file: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:errcheck

	return readCards(f)
}

// LoadSelectedOrFirst returns the selected card, the first card when none is selected, or nil.
func (s *CSVStore) LoadSelectedOrFirst(ctx context.Context) (*card.Card, error) {
	cards, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	return selectedOrFirst(cards), nil
}

// UpdateStatus sets the status of the card with pan.
func (s *CSVStore) UpdateStatus(ctx context.Context, pan string, status card.Status) error {
	return s.update(ctx, func(cards []card.Card) ([]card.Card, error) {
		for i := range cards {
			if cards[i].PAN == pan {
				cards[i].Status = status
				return cards, nil
			}
		}

		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, card.MaskPAN(pan))
	})
}

// AppendGenerated adds c to the end of the file.
func (s *CSVStore) AppendGenerated(ctx context.Context, c *card.Card) error {
	return s.update(ctx, func(cards []card.Card) ([]card.Card, error) {
		for i := range cards {
			if cards[i].PAN == c.PAN {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateCard, card.MaskPAN(c.PAN))
			}
		}

		return append(cards, *c), nil
	})
}

// Select marks the card with pan as selected and clears every other selection.
func (s *CSVStore) Select(ctx context.Context, pan string) error {
	return s.update(ctx, func(cards []card.Card) ([]card.Card, error) {
		found := false
		for i := range cards {
			cards[i].Selected = cards[i].PAN == pan
			found = found || cards[i].Selected
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrCardNotFound, card.MaskPAN(pan))
		}

		return cards, nil
	})
}

// Close is a no-op; the file is only open during an operation.
func (s *CSVStore) Close() error {
	return nil
}

// update runs mutate inside one locked read-modify-write transaction.
func (s *CSVStore) update(ctx context.Context, mutate func([]card.Card) ([]card.Card, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create card directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("open card file: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock card file: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:errcheck

	cards, err := readCards(f)
	if err != nil {
		return err
	}

	cards, err = mutate(cards)
	if err != nil {
		return err
	}

	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate card file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind card file: %w", err)
	}
	if err := writeCards(f, cards); err != nil {
		return err
	}

	log.Debug().
		Str("event", "card_store_updated").
		Str("path", s.path).
		Int("cards", len(cards)).
		Msg("card file rewritten")

	return f.Sync()
}

func readCards(r io.Reader) ([]card.Card, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	cards := make([]card.Card, 0, len(records))
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && strings.EqualFold(rec[0], csvHeader[0]) {
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		c, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		cards = append(cards, c)
	}

	return cards, nil
}

func parseRecord(rec []string) (card.Card, error) {
	if len(rec) < legacyColumns {
		return card.Card{}, fmt.Errorf("%w: %d columns", ErrMalformedRecord, len(rec))
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}

	panLength, err := strconv.Atoi(rec[1])
	if err != nil {
		return card.Card{}, fmt.Errorf("%w: pan length %q", ErrMalformedRecord, rec[1])
	}
	perTxn, err := parseAmount(rec[9])
	if err != nil {
		return card.Card{}, err
	}
	daily, err := parseAmount(rec[10])
	if err != nil {
		return card.Card{}, err
	}

	c := card.Card{
		Prefix:      rec[0],
		PANLength:   panLength,
		PAN:         rec[2],
		Expiry:      rec[3],
		PIN:         rec[4],
		PVV:         rec[5],
		Status:      card.ParseStatus(rec[6]),
		Product:     rec[7],
		Scheme:      rec[8],
		PerTxnLimit: perTxn,
		DailyLimit:  daily,
		SourceID:    rec[11],
		Selected:    strings.EqualFold(rec[12], "Y"),
	}
	if len(rec) > legacyColumns {
		c.CVV = rec[13]
	}

	return c, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", ErrMalformedRecord, s)
	}

	return d, nil
}

func formatRecord(c card.Card) []string {
	selected := "N"
	if c.Selected {
		selected = "Y"
	}

	return []string{
		c.Prefix,
		strconv.Itoa(c.PANLength),
		c.PAN,
		c.Expiry,
		c.PIN,
		c.PVV,
		string(c.Status),
		c.Product,
		c.Scheme,
		c.PerTxnLimit.StringFixed(2),
		c.DailyLimit.StringFixed(2),
		c.SourceID,
		selected,
		c.CVV,
	}
}

func writeCards(w io.Writer, cards []card.Card) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write card header: %w", err)
	}
	for _, c := range cards {
		if err := cw.Write(formatRecord(c)); err != nil {
			return fmt.Errorf("write card record: %w", err)
		}
	}
	cw.Flush()

	return cw.Error()
}
