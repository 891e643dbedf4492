// Package admin serves a small read-only HTTP view of a running endpoint.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/andrei-cloud/go_cardsim/internal/card"
	"github.com/andrei-cloud/go_cardsim/internal/server"
)

// StatsSource reports endpoint counters.
type StatsSource interface {
	Stats() server.Stats
}

// CardSource lists card records.
type CardSource interface {
	Load(ctx context.Context) ([]card.Card, error)
}

// CardView is the public projection of a card. Secrets are never exposed.
type CardView struct {
	PAN         string `json:"pan"`
	Expiry      string `json:"expiry"`
	Status      string `json:"status"`
	Scheme      string `json:"scheme"`
	Product     string `json:"product"`
	PerTxnLimit string `json:"limit_txn"`
	DailyLimit  string `json:"limit_daily"`
	Selected    bool   `json:"selected"`
}

// Admin is the HTTP side channel.
type Admin struct {
	addr  string
	stats StatsSource
	cards CardSource
	srv   *http.Server
}

// New returns an Admin listening on addr. cards may be nil.
func New(addr string, stats StatsSource, cards CardSource) *Admin {
	a := &Admin{addr: addr, stats: stats, cards: cards}
	a.srv = &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a
}

// Router returns the route table.
func (a *Admin) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", a.health).Methods(http.MethodGet)
	r.HandleFunc("/stats", a.statsHandler).Methods(http.MethodGet)
	r.HandleFunc("/cards", a.cardsHandler).Methods(http.MethodGet)

	return r
}

// Start serves until Stop is called.
func (a *Admin) Start() error {
	log.Info().Str("address", a.addr).Msg("admin listener started")
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Stop shuts the listener down.
func (a *Admin) Stop(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}

func (a *Admin) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Admin) statsHandler(w http.ResponseWriter, _ *http.Request) {
	if a.stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no endpoint"})
		return
	}
	writeJSON(w, http.StatusOK, a.stats.Stats())
}

func (a *Admin) cardsHandler(w http.ResponseWriter, r *http.Request) {
	if a.cards == nil {
		writeJSON(w, http.StatusOK, []CardView{})
		return
	}

	cards, err := a.cards.Load(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("admin: loading cards failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})

		return
	}

	views := make([]CardView, 0, len(cards))
	for i := range cards {
		views = append(views, View(&cards[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

// View projects c for display.
func View(c *card.Card) CardView {
	return CardView{
		PAN:         card.MaskPAN(c.PAN),
		Expiry:      c.Expiry,
		Status:      string(c.Status),
		Scheme:      c.Scheme,
		Product:     c.Product,
		PerTxnLimit: c.PerTxnLimit.StringFixed(2),
		DailyLimit:  c.DailyLimit.StringFixed(2),
		Selected:    c.Selected,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("admin: encoding response failed")
	}
}
