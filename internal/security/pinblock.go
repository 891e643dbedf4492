package security

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	pinBlockLength = 8
	minPinLength   = 1
	maxPinLength   = 12
)

// panField returns the 16 hex digit PAN field of an ISO 0 block: four zeros
// followed by the 12 PAN digits left of the check digit. PANs shorter than
// 13 digits are left padded with zeros to 12 instead.
func panField(pan string) (string, error) {
	if pan == "" {
		return "", fmt.Errorf("%w: pan required", ErrInvalidInput)
	}
	if !isDigits(pan) {
		return "", fmt.Errorf("%w: pan must be numeric", ErrInvalidInput)
	}

	var digits string
	if len(pan) < 13 {
		digits = strings.Repeat("0", 12-len(pan)) + pan
	} else {
		digits = pan[len(pan)-13 : len(pan)-1]
	}

	return "0000" + digits, nil
}

func xorHex(a, b string) ([]byte, error) {
	x, err := hex.DecodeString(a)
	if err != nil {
		return nil, err
	}
	y, err := hex.DecodeString(b)
	if err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("length mismatch %d != %d", len(x), len(y))
	}
	out := make([]byte, len(x))
	for i := range x {
		out[i] = x[i] ^ y[i]
	}

	return out, nil
}

// FormPinBlock builds the 8 byte ISO format 0 clear PIN block for pin and pan.
func (s *Simulator) FormPinBlock(pin, pan string) ([]byte, error) {
	if len(pin) < minPinLength || len(pin) > maxPinLength || !isDigits(pin) {
		return nil, fmt.Errorf("%w: pin must be 1 to 12 digits", ErrInvalidInput)
	}

	pf, err := panField(pan)
	if err != nil {
		return nil, err
	}

	pinField := fmt.Sprintf("0%X%s", len(pin), pin)
	pinField += strings.Repeat("F", 16-len(pinField))

	block, err := xorHex(pinField, pf)
	if err != nil {
		return nil, fmt.Errorf("form pin block: %w", err)
	}

	log.Debug().
		Str("event", "pin_block_formed").
		Str("pin_block", strings.ToUpper(hex.EncodeToString(block))).
		Msg("formed iso0 pin block")

	return block, nil
}

// ExtractPin recovers the clear PIN from an ISO format 0 block.
func (s *Simulator) ExtractPin(block []byte, pan string) (string, error) {
	if len(block) != pinBlockLength {
		return "", fmt.Errorf("%w: pin block must be %d bytes, got %d", ErrFormat, pinBlockLength, len(block))
	}

	pf, err := panField(pan)
	if err != nil {
		return "", err
	}

	clear, err := xorHex(hex.EncodeToString(block), pf)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	field := strings.ToUpper(hex.EncodeToString(clear))

	if field[0] != '0' {
		return "", fmt.Errorf("%w: unexpected pin block format %c", ErrFormat, field[0])
	}

	n, err := strconv.ParseInt(field[1:2], 16, 8)
	if err != nil || n < minPinLength || n > maxPinLength {
		return "", fmt.Errorf("%w: invalid pin length", ErrFormat)
	}

	pin := field[2 : 2+n]
	if !isDigits(pin) {
		return "", fmt.Errorf("%w: pin contains non-decimal digits", ErrFormat)
	}
	if strings.Trim(field[2+n:], "F") != "" {
		return "", fmt.Errorf("%w: invalid pin block padding", ErrFormat)
	}

	log.Debug().
		Str("event", "pin_block_decoded").
		Int("pin_length", int(n)).
		Msg("extracted pin from iso0 pin block")

	return pin, nil
}
