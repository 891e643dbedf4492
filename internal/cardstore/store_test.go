package cardstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_cardsim/internal/card"
)

func testCard(pan string) *card.Card {
	return &card.Card{
		Prefix:      pan[:6],
		PANLength:   len(pan),
		PAN:         pan,
		Expiry:      "2912",
		PIN:         "1234",
		PVV:         "4909",
		CVV:         "082",
		Status:      card.StatusActive,
		Product:     "GOLD",
		Scheme:      card.SchemeFor(pan),
		PerTxnLimit: decimal.RequireFromString("2000.00"),
		DailyLimit:  decimal.RequireFromString("10000.00"),
		SourceID:    "GEN_SRC",
	}
}

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	csvStore, err := Open(Config{Backend: BackendCSV, Path: filepath.Join(dir, "cards.csv")})
	require.NoError(t, err)
	sqlStore, err := Open(Config{Backend: BackendSQLite, Path: filepath.Join(dir, "cards.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		csvStore.Close()
		sqlStore.Close()
	})

	return map[string]Store{BackendCSV: csvStore, BackendSQLite: sqlStore}
}

func TestStoreContract(t *testing.T) {
	t.Parallel()

	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			first, err := store.LoadSelectedOrFirst(ctx)
			require.NoError(t, err)
			assert.Nil(t, first)

			require.NoError(t, store.AppendGenerated(ctx, testCard("4532111084873037")))
			require.NoError(t, store.AppendGenerated(ctx, testCard("5412340000000001")))
			require.ErrorIs(t, store.AppendGenerated(ctx, testCard("5412340000000001")), ErrDuplicateCard)

			cards, err := store.Load(ctx)
			require.NoError(t, err)
			require.Len(t, cards, 2)
			assert.Equal(t, "4532111084873037", cards[0].PAN)
			assert.Equal(t, "082", cards[0].CVV)
			assert.True(t, decimal.RequireFromString("2000").Equal(cards[0].PerTxnLimit))

			first, err = store.LoadSelectedOrFirst(ctx)
			require.NoError(t, err)
			require.NotNil(t, first)
			assert.Equal(t, "4532111084873037", first.PAN)

			require.NoError(t, store.Select(ctx, "5412340000000001"))
			sel, err := store.LoadSelectedOrFirst(ctx)
			require.NoError(t, err)
			assert.Equal(t, "5412340000000001", sel.PAN)
			assert.True(t, sel.Selected)

			require.NoError(t, store.UpdateStatus(ctx, "5412340000000001", card.StatusBlocked))
			sel, err = store.LoadSelectedOrFirst(ctx)
			require.NoError(t, err)
			assert.True(t, sel.Blocked())

			require.ErrorIs(t, store.UpdateStatus(ctx, "4000000000000002", card.StatusBlocked), ErrCardNotFound)
			require.ErrorIs(t, store.Select(ctx, "4000000000000002"), ErrCardNotFound)
		})
	}
}

func TestCSVLegacyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cards.csv")
	content := strings.Join([]string{
		"PREFIX,PAN_LENGTH,PAN,EXPIRY,PIN,PVV,STATUS,PRODUCT,SCHEME,PER_TXN_LIMIT,DAILY_LIMIT,SOURCE_ID,SELECTED",
		"453211,16,4532111084873037,2912,1234,4909,ACTIVE,GOLD,VISA,2000.00,10000.00,SRC1,N",
		"541234,16,5412340000000001,2912,0000,0923,BLOCKED,GOLD,MASTERCARD,2000.00,10000.00,SRC2,Y",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store := NewCSVStore(path)
	cards, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Empty(t, cards[0].CVV)
	assert.Equal(t, card.StatusBlocked, cards[1].Status)

	sel, err := store.LoadSelectedOrFirst(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SRC2", sel.SourceID)

	require.NoError(t, store.UpdateStatus(context.Background(), "4532111084873037", card.StatusBlocked))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "SELECTED,CVV"))
	assert.Equal(t, "453211,16,4532111084873037,2912,1234,4909,BLOCKED,GOLD,VISA,2000.00,10000.00,SRC1,N,", lines[1])
}

func TestCSVMalformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cards.csv")
	require.NoError(t, os.WriteFile(path, []byte("PREFIX,PAN\n453211,16,4532\n"), 0o600))

	_, err := NewCSVStore(path).Load(context.Background())
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestCSVMissingFile(t *testing.T) {
	t.Parallel()

	store := NewCSVStore(filepath.Join(t.TempDir(), "none.csv"))
	cards, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestCSVConcurrentUpdates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cards.csv")
	seed := NewCSVStore(path)
	ctx := context.Background()

	const n = 12
	pans := make([]string, n)
	for i := range pans {
		partial := fmt.Sprintf("45321100000%04d", i)
		pans[i] = fmt.Sprintf("%s%d", partial, card.LuhnCheckDigit(partial))
		require.NoError(t, seed.AppendGenerated(ctx, testCard(pans[i])))
	}

	// separate stores share only the file lock
	var wg sync.WaitGroup
	for _, pan := range pans {
		wg.Add(1)
		go func(pan string) {
			defer wg.Done()
			assert.NoError(t, NewCSVStore(path).UpdateStatus(ctx, pan, card.StatusBlocked))
		}(pan)
	}
	wg.Wait()

	cards, err := seed.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cards, n)
	for _, c := range cards {
		assert.Equal(t, card.StatusBlocked, c.Status, c.PAN)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := Open(Config{Backend: "redis", Path: "x"})
	require.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(Config{Backend: BackendCSV})
	require.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewCSVStore(filepath.Join(t.TempDir(), "cards.csv"))
	require.ErrorIs(t, store.AppendGenerated(ctx, testCard("4532111084873037")), context.Canceled)
}
