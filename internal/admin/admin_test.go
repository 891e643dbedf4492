package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_cardsim/internal/admin"
	"github.com/andrei-cloud/go_cardsim/internal/card"
	"github.com/andrei-cloud/go_cardsim/internal/server"
)

type fakeStats struct{ s server.Stats }

func (f fakeStats) Stats() server.Stats { return f.s }

type fakeCards struct {
	cards []card.Card
	err   error
}

func (f fakeCards) Load(context.Context) ([]card.Card, error) { return f.cards, f.err }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()
	a := admin.New(":0", nil, nil)
	rec := get(t, a.Router(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStats(t *testing.T) {
	t.Parallel()
	a := admin.New(":0", fakeStats{server.Stats{Variant: "binary", Requests: 3, Approved: 2, Declined: 1}}, nil)
	rec := get(t, a.Router(), "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var got server.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "binary", got.Variant)
	assert.EqualValues(t, 3, got.Requests)
	assert.EqualValues(t, 1, got.Declined)

	rec = get(t, admin.New(":0", nil, nil).Router(), "/stats")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCardsAreMasked(t *testing.T) {
	t.Parallel()
	cards := fakeCards{cards: []card.Card{{
		PAN:         "4532111084873037",
		Expiry:      "2912",
		PIN:         "1234",
		PVV:         "4909",
		CVV:         "082",
		Status:      card.StatusActive,
		Scheme:      card.SchemeVisa,
		Product:     "GOLD",
		PerTxnLimit: decimal.RequireFromString("2000"),
		DailyLimit:  decimal.RequireFromString("10000"),
		Selected:    true,
	}}}
	rec := get(t, admin.New(":0", nil, cards).Router(), "/cards")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "4532111084873037")
	assert.NotContains(t, body, "4909")
	assert.NotContains(t, body, "\"082\"")

	var got []admin.CardView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "453211******3037", got[0].PAN)
	assert.Equal(t, "2000.00", got[0].PerTxnLimit)
	assert.Equal(t, "10000.00", got[0].DailyLimit)
	assert.True(t, got[0].Selected)
}

func TestCardsErrors(t *testing.T) {
	t.Parallel()
	rec := get(t, admin.New(":0", nil, fakeCards{err: errors.New("disk gone")}).Router(), "/cards")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = get(t, admin.New(":0", nil, nil).Router(), "/cards")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	admin.New(":0", nil, nil).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
