package security

import (
	"crypto/cipher"
	"crypto/des"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// KCVLength is the number of bytes in a key check value.
const KCVLength = 3

// Key is generated key material.
type Key struct {
	Type  string
	Value []byte
}

// Hex returns the key value as upper-case hex.
func (k Key) Hex() string {
	return strings.ToUpper(hex.EncodeToString(k.Value))
}

// KCV returns the key check value: the first three bytes of a block of
// zeros encrypted under the key. Keys that are not single, double or triple
// DES length fall back to their first three bytes.
func (k Key) KCV() []byte {
	kcv := make([]byte, KCVLength)

	var (
		block cipher.Block
		err   error
	)
	switch len(k.Value) {
	case 8:
		block, err = des.NewCipher(k.Value)
	case 16:
		triple := make([]byte, 24)
		copy(triple, k.Value)
		copy(triple[16:], k.Value[:8])
		block, err = des.NewTripleDESCipher(triple)
	case 24:
		block, err = des.NewTripleDESCipher(k.Value)
	default:
		copy(kcv, k.Value)
		return kcv
	}
	if err != nil {
		copy(kcv, k.Value)
		return kcv
	}

	out := make([]byte, block.BlockSize())
	block.Encrypt(out, make([]byte, block.BlockSize()))
	copy(kcv, out)

	return kcv
}

// GenerateKey returns bitLength bits of random key material tagged with keyType.
func (s *Simulator) GenerateKey(bitLength int, keyType string) (Key, error) {
	if bitLength <= 0 || bitLength%8 != 0 {
		return Key{}, fmt.Errorf("%w: key length %d bits", ErrInvalidInput, bitLength)
	}

	value := make([]byte, bitLength/8)
	if _, err := io.ReadFull(s.random, value); err != nil {
		return Key{}, fmt.Errorf("generate key: %w", err)
	}

	k := Key{Type: keyType, Value: value}
	log.Debug().
		Str("event", "key_generated").
		Str("key_type", keyType).
		Int("bits", bitLength).
		Str("kcv", strings.ToUpper(hex.EncodeToString(k.KCV()))).
		Msg("generated key")

	return k, nil
}

// GeneratePin returns a random numeric PIN of the given length.
func (s *Simulator) GeneratePin(length int) (string, error) {
	if length < minPinLength || length > maxPinLength {
		return "", fmt.Errorf("%w: pin length %d", ErrInvalidInput, length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	for i, b := range buf {
		buf[i] = '0' + b%10
	}

	return string(buf), nil
}
