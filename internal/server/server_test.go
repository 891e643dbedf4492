package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/andrei-cloud/anet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_cardsim/internal/builder"
	"github.com/andrei-cloud/go_cardsim/internal/client"
	"github.com/andrei-cloud/go_cardsim/internal/dispatcher"
	"github.com/andrei-cloud/go_cardsim/internal/iso8583"
	"github.com/andrei-cloud/go_cardsim/internal/message"
	"github.com/andrei-cloud/go_cardsim/internal/security"
	server "github.com/andrei-cloud/go_cardsim/internal/server"
)

// startTestServer starts an endpoint for variant on addr.
func startTestServer(t *testing.T, addr string, v iso8583.Variant) *server.Server {
	t.Helper()
	codec, err := iso8583.NewCodec(v)
	require.NoError(t, err)
	p, err := iso8583.ProfileFor(v)
	require.NoError(t, err)

	return serveWith(t, addr, codec, dispatcher.New(p, security.New()))
}

// serveWith starts an endpoint on addr answering through d.
func serveWith(t *testing.T, addr string, codec *iso8583.Codec, d server.Dispatcher) *server.Server {
	t.Helper()
	srv, err := server.NewServer(addr, codec, d)
	require.NoError(t, err)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			t.Fatalf("server start error: %v", err)
		}
	case <-time.After(200 * time.Millisecond):
		// Allow some time for the server to start
	}
	t.Cleanup(func() { srv.Stop() })

	return srv
}

func TestRoundTripBothVariants(t *testing.T) {
	tests := []struct {
		addr    string
		variant iso8583.Variant
	}{
		{"127.0.0.1:18583", iso8583.VariantASCII},
		{"127.0.0.1:18584", iso8583.VariantBinary},
	}

	for _, tc := range tests {
		t.Run(string(tc.variant), func(t *testing.T) {
			srv := startTestServer(t, tc.addr, tc.variant)

			codec, err := iso8583.NewCodec(tc.variant)
			require.NoError(t, err)
			cl := client.New(tc.addr, codec, client.WithTimeout(2*time.Second))
			defer cl.Close()

			p, err := iso8583.ProfileFor(tc.variant)
			require.NoError(t, err)
			b := builder.New(p, security.New())

			echo, err := b.Build(builder.Request{Category: builder.Echo})
			require.NoError(t, err)
			resp, err := cl.RoundTrip(context.Background(), echo)
			require.NoError(t, err)
			assert.Equal(t, echo.MTI(), resp.MTI())
			assert.Equal(t, "00", resp.GetString(message.ResponseCode))
			assert.Equal(t, echo.GetString(message.STAN), resp.GetString(message.STAN))
			assert.Equal(t, client.StateConnected, cl.Session().State())

			bal, err := b.Build(builder.Request{Category: builder.BalanceInquiry})
			require.NoError(t, err)
			resp, err = cl.RoundTrip(context.Background(), bal)
			require.NoError(t, err)
			assert.Equal(t, "00", resp.GetString(message.ResponseCode))
			assert.NotEmpty(t, resp.GetString(message.AdditionalAmounts))

			stats := srv.Stats()
			assert.Equal(t, string(tc.variant), stats.Variant)
			assert.EqualValues(t, 2, stats.Requests)
			assert.EqualValues(t, 2, stats.Approved)
		})
	}
}

// TestMalformedRequest verifies an undecodable request gets no response.
func TestMalformedRequest(t *testing.T) {
	const addr = "127.0.0.1:18585"
	srv := startTestServer(t, addr, iso8583.VariantASCII)

	factory := func(addr string) (anet.PoolItem, error) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err != nil {
			return nil, err
		}

		if err := conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
			conn.Close()

			return nil, err
		}

		return conn, nil
	}

	pool := anet.NewPool(1, factory, addr, nil)
	defer pool.Close()

	broker := anet.NewBroker([]anet.Pool{pool}, 1, nil, nil)
	go broker.Start()
	defer broker.Close()

	req := []byte("0200ZZZZ")
	resp, err := broker.Send(&req)
	if err == nil {
		assert.Empty(t, resp)
	}

	assert.Eventually(t, func() bool {
		return srv.Stats().Malformed == 1
	}, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 0, srv.Stats().Approved)
}

func TestClientConnectionError(t *testing.T) {
	codec, err := iso8583.NewCodec(iso8583.VariantASCII)
	require.NoError(t, err)
	cl := client.New("127.0.0.1:1", codec,
		client.WithTimeout(time.Second), client.WithDialTimeout(100*time.Millisecond))
	defer cl.Close()

	_, err = cl.RoundTrip(context.Background(), message.New("0800"))
	require.ErrorIs(t, err, client.ErrConnection)
	assert.Equal(t, client.StateDisconnected, cl.Session().State())
}

// unencodable answers through the real dispatcher and then sets a field the
// binary layout does not define.
type unencodable struct {
	next server.Dispatcher
}

func (u unencodable) Dispatch(
	ctx context.Context,
	req *message.Message,
) (*message.Message, dispatcher.Result, error) {
	resp, res, err := u.next.Dispatch(ctx, req)
	if err == nil {
		resp.SetString(message.NetworkCode, "301")
	}

	return resp, res, err
}

func TestUnencodableResponseAnswersSystemMalfunction(t *testing.T) {
	const addr = "127.0.0.1:18586"
	codec, err := iso8583.NewCodec(iso8583.VariantBinary)
	require.NoError(t, err)
	p, err := iso8583.ProfileFor(iso8583.VariantBinary)
	require.NoError(t, err)
	srv := serveWith(t, addr, codec, unencodable{next: dispatcher.New(p, security.New())})

	cl := client.New(addr, codec, client.WithTimeout(2*time.Second))
	defer cl.Close()

	echo, err := builder.New(p, security.New()).Build(builder.Request{Category: builder.Echo})
	require.NoError(t, err)
	resp, err := cl.RoundTrip(context.Background(), echo)
	require.NoError(t, err)

	assert.Equal(t, "96", resp.GetString(message.ResponseCode))
	assert.Equal(t, echo.GetString(message.STAN), resp.GetString(message.STAN))
	assert.False(t, resp.Has(message.NetworkCode))
	assert.Equal(t, uint64(1), srv.Stats().Declined)
}
