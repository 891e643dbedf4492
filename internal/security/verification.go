package security

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

// stringHash is the 31-multiplier polynomial hash over signed 32-bit
// arithmetic. Stored card files carry values derived from it, so the
// overflow behaviour must not change.
func stringHash(s string) int32 {
	var h int32
	for _, r := range s {
		if r > 0xFFFF {
			// Supplementary runes hash as their UTF-16 surrogate pair.
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))

			continue
		}
		h = 31*h + int32(r)
	}

	return h
}

func absHash(s string) int64 {
	h := int64(stringHash(s))
	if h < 0 {
		h = -h
	}

	return h
}

// DerivePVV returns the 4 digit PIN verification value for pan and pin.
func (s *Simulator) DerivePVV(pan, pin string) (string, error) {
	if pan == "" || pin == "" {
		return "", fmt.Errorf("%w: pan and pin required", ErrInvalidInput)
	}

	last := pan
	if len(pan) > 5 {
		last = pan[len(pan)-5:]
	}

	pvv := fmt.Sprintf("%04d", absHash(last+pin)%10000)
	log.Debug().Str("event", "pvv_derived").Str("pvv", pvv).Msg("derived pvv")

	return pvv, nil
}

// VerifyPVV reports whether pvv matches the value derived from pan and pin.
func (s *Simulator) VerifyPVV(pan, pin, pvv string) (bool, error) {
	want, err := s.DerivePVV(pan, pin)
	if err != nil {
		return false, err
	}

	ok := want == pvv
	log.Debug().Str("event", "pvv_verified").Bool("match", ok).Msg("verified pvv")

	return ok, nil
}

// ValidateExpiry checks that expiry is YYMM with a month between 01 and 12.
func ValidateExpiry(expiry string) error {
	if len(expiry) != 4 || !isDigits(expiry) {
		return fmt.Errorf("%w: expiry %q is not YYMM", ErrFormat, expiry)
	}
	month, _ := strconv.Atoi(expiry[2:])
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: expiry month %02d out of range", ErrFormat, month)
	}

	return nil
}

// DeriveCVV returns the 3 digit card verification value.
func (s *Simulator) DeriveCVV(pan, expiry, serviceCode string) (string, error) {
	if pan == "" {
		return "", fmt.Errorf("%w: pan required", ErrInvalidInput)
	}
	if err := ValidateExpiry(expiry); err != nil {
		return "", err
	}

	cvv := fmt.Sprintf("%03d", absHash(pan+expiry+serviceCode)%1000)
	log.Debug().
		Str("event", "cvv_derived").
		Str("service_code", serviceCode).
		Str("cvv", cvv).
		Msg("derived cvv")

	return cvv, nil
}

// VerifyCVV reports whether cvv matches the value derived from the card data.
func (s *Simulator) VerifyCVV(pan, expiry, serviceCode, cvv string) (bool, error) {
	want, err := s.DeriveCVV(pan, expiry, serviceCode)
	if err != nil {
		return false, err
	}

	ok := want == cvv
	log.Debug().Str("event", "cvv_verified").Bool("match", ok).Msg("verified cvv")

	return ok, nil
}
