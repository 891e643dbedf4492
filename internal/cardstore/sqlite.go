package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/andrei-cloud/go_cardsim/internal/card"
)

// SQLiteStore keeps cards in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// _txlock=immediate makes every transaction take the write lock up front.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cards (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			prefix TEXT NOT NULL,
			pan_length INTEGER NOT NULL,
			pan TEXT NOT NULL UNIQUE,
			expiry TEXT NOT NULL,
			pin TEXT NOT NULL,
			pvv TEXT NOT NULL,
			cvv TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			product TEXT NOT NULL,
			scheme TEXT NOT NULL,
			per_txn_limit TEXT NOT NULL,
			daily_limit TEXT NOT NULL,
			source_id TEXT NOT NULL,
			selected INTEGER NOT NULL DEFAULT 0
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate card schema: %w", err)
	}

	return nil
}

// Load reads every card in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) ([]card.Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prefix, pan_length, pan, expiry, pin, pvv, cvv, status, product,
			scheme, per_txn_limit, daily_limit, source_id, selected
		FROM cards ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []card.Card
	for rows.Next() {
		var (
			c             card.Card
			status        string
			perTxn, daily string
			selected      int
		)
		if err := rows.Scan(&c.Prefix, &c.PANLength, &c.PAN, &c.Expiry, &c.PIN, &c.PVV, &c.CVV,
			&status, &c.Product, &c.Scheme, &perTxn, &daily, &c.SourceID, &selected); err != nil {
			return nil, err
		}
		c.Status = card.ParseStatus(status)
		c.Selected = selected != 0
		if c.PerTxnLimit, err = decimal.NewFromString(perTxn); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		if c.DailyLimit, err = decimal.NewFromString(daily); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		cards = append(cards, c)
	}

	return cards, rows.Err()
}

// LoadSelectedOrFirst returns the selected card, the first card when none is selected, or nil.
func (s *SQLiteStore) LoadSelectedOrFirst(ctx context.Context) (*card.Card, error) {
	cards, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	return selectedOrFirst(cards), nil
}

// UpdateStatus sets the status of the card with pan.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, pan string, status card.Status) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE cards SET status = ? WHERE pan = ?`, string(status), pan)
		if err != nil {
			return err
		}

		return requireRow(res, pan)
	})
}

// AppendGenerated inserts c.
func (s *SQLiteStore) AppendGenerated(ctx context.Context, c *card.Card) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE pan = ?`, c.PAN).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateCard, card.MaskPAN(c.PAN))
		}

		selected := 0
		if c.Selected {
			selected = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cards (prefix, pan_length, pan, expiry, pin, pvv, cvv, status, product,
				scheme, per_txn_limit, daily_limit, source_id, selected)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Prefix, c.PANLength, c.PAN, c.Expiry, c.PIN, c.PVV, c.CVV, string(c.Status), c.Product,
			c.Scheme, c.PerTxnLimit.StringFixed(2), c.DailyLimit.StringFixed(2), c.SourceID, selected)

		return err
	})
}

// Select marks the card with pan as selected and clears every other selection.
func (s *SQLiteStore) Select(ctx context.Context, pan string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE cards SET selected = 0`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE cards SET selected = 1 WHERE pan = ?`, pan)
		if err != nil {
			return err
		}

		return requireRow(res, pan)
	})
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin card transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}

		return err
	}

	return tx.Commit()
}

func requireRow(res sql.Result, pan string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrCardNotFound, card.MaskPAN(pan))
	}

	return nil
}
