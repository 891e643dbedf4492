package client_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_cardsim/internal/builder"
	"github.com/andrei-cloud/go_cardsim/internal/card"
	"github.com/andrei-cloud/go_cardsim/internal/cardstore"
	"github.com/andrei-cloud/go_cardsim/internal/client"
	"github.com/andrei-cloud/go_cardsim/internal/dispatcher"
	"github.com/andrei-cloud/go_cardsim/internal/iso8583"
	"github.com/andrei-cloud/go_cardsim/internal/message"
	"github.com/andrei-cloud/go_cardsim/internal/security"
)

// loopback runs requests through the codec and dispatcher in process.
type loopback struct {
	codec *iso8583.Codec
	disp  *dispatcher.Dispatcher
	sent  []*message.Message
	fail  error
}

func (l *loopback) RoundTrip(ctx context.Context, req *message.Message) (*message.Message, error) {
	if l.fail != nil {
		return nil, l.fail
	}
	raw, err := l.codec.Pack(req)
	if err != nil {
		return nil, err
	}
	decoded, err := l.codec.Unpack(raw)
	if err != nil {
		return nil, err
	}
	l.sent = append(l.sent, decoded)

	resp, _, err := l.disp.Dispatch(ctx, decoded)

	return resp, err
}

func newRunner(t *testing.T, v iso8583.Variant) (*client.Runner, *loopback, cardstore.Store) {
	t.Helper()
	p, err := iso8583.ProfileFor(v)
	require.NoError(t, err)
	codec, err := iso8583.NewCodec(v)
	require.NoError(t, err)

	sec := security.New()
	store := cardstore.NewCSVStore(filepath.Join(t.TempDir(), "cards.csv"))
	lb := &loopback{codec: codec, disp: dispatcher.New(p, sec)}

	return &client.Runner{
		Transport: lb,
		Builder:   builder.New(p, sec),
		Store:     store,
		Generator: card.NewGenerator(sec),
		Session:   client.NewSession(),
	}, lb, store
}

func TestOperationsTable(t *testing.T) {
	t.Parallel()

	names := make(map[string]bool)
	for _, op := range client.Operations {
		assert.NotEmpty(t, op.Label)
		assert.NotNil(t, op.Run)
		assert.False(t, names[op.Name], "duplicate %s", op.Name)
		names[op.Name] = true
	}
	assert.Len(t, client.Operations, 14)

	_, err := client.Lookup("teleport")
	require.ErrorIs(t, err, client.ErrUnknownOperation)
}

func TestEveryOperationApproved(t *testing.T) {
	t.Parallel()

	for _, v := range []iso8583.Variant{iso8583.VariantASCII, iso8583.VariantBinary} {
		t.Run(string(v), func(t *testing.T) {
			t.Parallel()
			r, _, _ := newRunner(t, v)
			ctx := context.Background()

			// seed the store so financial operations carry security fields
			gen, err := client.Lookup("generate-sync")
			require.NoError(t, err)
			_, err = gen.Run(ctx, r)
			require.NoError(t, err)

			for _, op := range client.Operations {
				if op.Name == "update-card-status" {
					continue
				}
				out, err := op.Run(ctx, r)
				require.NoError(t, err, op.Name)
				assert.Equal(t, "00", out.ResponseCode(), op.Name)
			}
		})
	}
}

func TestReversalOperation(t *testing.T) {
	t.Parallel()

	r, lb, _ := newRunner(t, iso8583.VariantBinary)
	op, err := client.Lookup("purchase-reversal")
	require.NoError(t, err)

	out, err := op.Run(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, out.Exchanges, 2)
	require.Len(t, lb.sent, 2)

	orig, rev := lb.sent[0], lb.sent[1]
	assert.Equal(t, "1100", orig.MTI())
	assert.Equal(t, "1420", rev.MTI())
	assert.Equal(t, orig.GetString(message.PAN), rev.GetString(message.PAN))
	assert.Equal(t, builder.ReversalLink(orig), rev.GetString(message.OriginalData))
	assert.Equal(t, "1430", out.Last().Response.MTI())
}

func TestUpdateCardStatusPersists(t *testing.T) {
	t.Parallel()

	r, lb, store := newRunner(t, iso8583.VariantASCII)
	ctx := context.Background()

	gen, err := client.Lookup("generate-sync")
	require.NoError(t, err)
	out, err := gen.Run(ctx, r)
	require.NoError(t, err)
	generated := out.Card

	sync := lb.sent[0]
	assert.Equal(t, generated.PAN, sync.GetString(message.PAN))
	assert.NotContains(t, sync.GetString(message.AdditionalData), "PIN=")

	op, err := client.Lookup("update-card-status")
	require.NoError(t, err)
	out, err = op.Run(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "00", out.ResponseCode())
	assert.Equal(t, "PAN="+generated.PAN+"|STATUS=BLOCKED", lb.sent[1].GetString(message.AdditionalData))

	c, err := store.LoadSelectedOrFirst(ctx)
	require.NoError(t, err)
	assert.Equal(t, card.StatusBlocked, c.Status)
}

func TestSessionFollowsLogon(t *testing.T) {
	t.Parallel()

	r, _, _ := newRunner(t, iso8583.VariantASCII)
	ctx := context.Background()

	logon, err := client.Lookup("logon")
	require.NoError(t, err)
	_, err = logon.Run(ctx, r)
	require.NoError(t, err)
	assert.True(t, r.Session.SignedOn())

	logoff, err := client.Lookup("logoff")
	require.NoError(t, err)
	_, err = logoff.Run(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, client.StateConnected, r.Session.State())
}

func TestTransportErrorPropagates(t *testing.T) {
	t.Parallel()

	r, lb, _ := newRunner(t, iso8583.VariantASCII)
	lb.fail = client.ErrConnection

	for _, name := range []string{"echo", "purchase", "purchase-reversal", "generate-sync"} {
		op, err := client.Lookup(name)
		require.NoError(t, err)
		_, err = op.Run(context.Background(), r)
		assert.True(t, errors.Is(err, client.ErrConnection), name)
	}
}

func TestFallbackWithoutStore(t *testing.T) {
	t.Parallel()

	r, lb, _ := newRunner(t, iso8583.VariantASCII)
	r.Store = nil

	op, err := client.Lookup("purchase")
	require.NoError(t, err)
	out, err := op.Run(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "00", out.ResponseCode())
	assert.Equal(t, builder.FallbackPAN, lb.sent[0].GetString(message.PAN))
	assert.Nil(t, out.Card)
}

func TestDefaultPrefix(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "453211", client.DefaultPrefix(iso8583.VariantASCII))
	assert.Equal(t, "541234", client.DefaultPrefix(iso8583.VariantBinary))
}

func TestCardFileWithoutCVVColumn(t *testing.T) {
	t.Parallel()

	for _, v := range []iso8583.Variant{iso8583.VariantASCII, iso8583.VariantBinary} {
		t.Run(string(v), func(t *testing.T) {
			t.Parallel()

			const pan = "4532111084873037"
			pvv, err := security.New().DerivePVV(pan, "1234")
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "cards.csv")
			content := "PREFIX,PAN_LENGTH,PAN,EXPIRY,PIN,PVV,STATUS,PRODUCT,SCHEME,PER_TXN_LIMIT,DAILY_LIMIT,SOURCE_ID,SELECTED\n" +
				fmt.Sprintf("453211,16,%s,2912,1234,%s,ACTIVE,GOLD,VISA,2000.00,10000.00,SRC1,Y\n", pan, pvv)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			r, lb, _ := newRunner(t, v)
			r.Store = cardstore.NewCSVStore(path)

			for _, name := range []string{"pre-auth", "balance", "purchase", "withdrawal", "refund"} {
				op, err := client.Lookup(name)
				require.NoError(t, err)
				out, err := op.Run(context.Background(), r)
				require.NoError(t, err)
				assert.Equal(t, "00", out.ResponseCode(), name)
				require.NotNil(t, out.Card)
				assert.Empty(t, out.Card.CVV)
			}
			for _, sent := range lb.sent {
				assert.Equal(t, pan, sent.GetString(message.PAN))
				assert.False(t, sent.Has(message.AdditionalData))
			}
		})
	}
}
