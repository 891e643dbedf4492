package security

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)

	return b
}

func TestFormPinBlock(t *testing.T) {
	t.Parallel()

	sim := New()
	tests := []struct {
		name    string
		pin     string
		pan     string
		want    string
		wantErr error
	}{
		{name: "sixteen digit pan", pin: "1234", pan: "4532111084873030", want: "041215EEF7B78CFC"},
		{name: "short pan padded", pin: "1234", pan: "123456", want: "041234FFFFEDCBA9"},
		{name: "twelve digit pin", pin: "123456789012", pan: "4111111111111111", want: "0C122547698103EE"},
		{name: "empty pan", pin: "1234", pan: "", wantErr: ErrInvalidInput},
		{name: "alpha pan", pin: "1234", pan: "41111111111A1111", wantErr: ErrInvalidInput},
		{name: "empty pin", pin: "", pan: "4532111084873030", wantErr: ErrInvalidInput},
		{name: "pin too long", pin: "1234567890123", pan: "4532111084873030", wantErr: ErrInvalidInput},
		{name: "non numeric pin", pin: "12a4", pan: "4532111084873030", wantErr: ErrInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := sim.FormPinBlock(tc.pin, tc.pan)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, 8)
			assert.Equal(t, tc.want, strings.ToUpper(hex.EncodeToString(got)))
		})
	}
}

func TestExtractPin(t *testing.T) {
	t.Parallel()

	sim := New()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		for _, pin := range []string{"1", "1234", "987654", "123456789012"} {
			block, err := sim.FormPinBlock(pin, "5412340000000005")
			require.NoError(t, err)
			got, err := sim.ExtractPin(block, "5412340000000005")
			require.NoError(t, err)
			assert.Equal(t, pin, got)
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		t.Parallel()
		_, err := sim.ExtractPin([]byte{1, 2, 3}, "4532111084873030")
		require.ErrorIs(t, err, ErrFormat)
	})

	t.Run("wrong format nibble", func(t *testing.T) {
		t.Parallel()
		_, err := sim.ExtractPin(mustHex(t, "141215EEF7B78CFC"), "4532111084873030")
		require.ErrorIs(t, err, ErrFormat)
	})

	t.Run("bad padding", func(t *testing.T) {
		t.Parallel()
		_, err := sim.ExtractPin(mustHex(t, "0412340000000000"), "123456")
		require.ErrorIs(t, err, ErrFormat)
	})

	t.Run("different pan does not recover pin", func(t *testing.T) {
		t.Parallel()
		block := mustHex(t, "041215EEF7B78CFC")
		got, err := sim.ExtractPin(block, "4111111111111111")
		if err == nil {
			assert.NotEqual(t, "1234", got)
		}
	})
}

func TestPVV(t *testing.T) {
	t.Parallel()

	sim := New()
	tests := []struct {
		pan  string
		pin  string
		want string
	}{
		{pan: "4532111084873030", pin: "1234", want: "4909"},
		{pan: "4532111084873030", pin: "0000", want: "6719"},
		{pan: "5412340000000005", pin: "1234", want: "9113"},
		{pan: "1234567890123456", pin: "1234", want: "0330"},
	}

	for _, tc := range tests {
		t.Run(tc.pan+"/"+tc.pin, func(t *testing.T) {
			t.Parallel()
			got, err := sim.DerivePVV(tc.pan, tc.pin)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			again, err := sim.DerivePVV(tc.pan, tc.pin)
			require.NoError(t, err)
			assert.Equal(t, got, again)

			ok, err := sim.VerifyPVV(tc.pan, tc.pin, tc.want)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}

	ok, err := sim.VerifyPVV("4532111084873030", "1235", "4909")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = sim.DerivePVV("", "1234")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCVV(t *testing.T) {
	t.Parallel()

	sim := New()
	tests := []struct {
		name    string
		pan     string
		expiry  string
		want    string
		wantErr error
	}{
		{name: "visa", pan: "4532111084873030", expiry: "2912", want: "082"},
		{name: "mastercard", pan: "5412340000000005", expiry: "2912", want: "036"},
		{name: "fallback pan", pan: "1234567890123456", expiry: "2912", want: "356"},
		{name: "month thirteen", pan: "4532111084873030", expiry: "2913", wantErr: ErrFormat},
		{name: "month zero", pan: "4532111084873030", expiry: "2900", wantErr: ErrFormat},
		{name: "short expiry", pan: "4532111084873030", expiry: "291", wantErr: ErrFormat},
		{name: "alpha expiry", pan: "4532111084873030", expiry: "29AB", wantErr: ErrFormat},
		{name: "no pan", pan: "", expiry: "2912", wantErr: ErrInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := sim.DeriveCVV(tc.pan, tc.expiry, "101")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)

				_, err = sim.VerifyCVV(tc.pan, tc.expiry, "101", "000")
				require.ErrorIs(t, err, tc.wantErr)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			ok, err := sim.VerifyCVV(tc.pan, tc.expiry, "101", tc.want)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestStringHash(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int32(0), stringHash(""))
	assert.Equal(t, int32(97), stringHash("a"))
	assert.Equal(t, int32(99162322), stringHash("hello"))
	assert.Equal(t, int32(1584875013), stringHash("0123456789"))
	// wraps negative
	assert.Equal(t, int32(-780304909), stringHash("730301234"))
	assert.Equal(t, int64(780304909), absHash("730301234"))
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	t.Run("lengths", func(t *testing.T) {
		t.Parallel()
		sim := New()
		for _, bits := range []int{64, 128, 192, 256} {
			k, err := sim.GenerateKey(bits, "ZPK")
			require.NoError(t, err)
			assert.Len(t, k.Value, bits/8)
			assert.Equal(t, "ZPK", k.Type)
			assert.Len(t, k.KCV(), KCVLength)
		}
	})

	t.Run("invalid length", func(t *testing.T) {
		t.Parallel()
		sim := New()
		for _, bits := range []int{0, -8, 12} {
			_, err := sim.GenerateKey(bits, "ZPK")
			require.ErrorIs(t, err, ErrInvalidInput)
		}
	})

	t.Run("deterministic source", func(t *testing.T) {
		t.Parallel()
		src := bytes.Repeat([]byte{0xAB}, 16)
		sim := New(WithRandom(bytes.NewReader(src)))
		k, err := sim.GenerateKey(128, "TMK")
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("AB", 16), k.Hex())
	})
}

func TestKeyKCV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		want string
	}{
		{name: "single", key: "0123456789ABCDEF", want: "D5D44F"},
		{name: "double", key: "0123456789ABCDEFFEDCBA9876543210", want: "08D7B4"},
		{name: "triple", key: "0123456789ABCDEFFEDCBA98765432100123456789ABCDEF", want: "08D7B4"},
		{name: "odd length", key: "A1B2C3D4", want: "A1B2C3"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			k := Key{Value: mustHex(t, tc.key)}
			assert.Equal(t, tc.want, strings.ToUpper(hex.EncodeToString(k.KCV())))
		})
	}
}

func TestGeneratePin(t *testing.T) {
	t.Parallel()

	sim := New()
	pin, err := sim.GeneratePin(4)
	require.NoError(t, err)
	assert.Len(t, pin, 4)
	assert.True(t, isDigits(pin))

	_, err = sim.GeneratePin(0)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(WithRandom(bytes.NewReader(nil))).GeneratePin(4)
	require.Error(t, err)
}
