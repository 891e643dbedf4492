package card

// Luhn reports whether pan carries a valid mod-10 check digit.
func Luhn(pan string) bool {
	if len(pan) < 2 {
		return false
	}
	for i := 0; i < len(pan); i++ {
		if pan[i] < '0' || pan[i] > '9' {
			return false
		}
	}

	return LuhnCheckDigit(pan[:len(pan)-1]) == int(pan[len(pan)-1]-'0')
}

// LuhnCheckDigit returns the digit that makes partial+digit Luhn valid.
// Non-digit characters are skipped.
func LuhnCheckDigit(partial string) int {
	sum := 0
	double := true
	for i := len(partial) - 1; i >= 0; i-- {
		c := partial[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return (10 - sum%10) % 10
}
