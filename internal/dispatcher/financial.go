package dispatcher

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/andrei-cloud/go_cardsim/internal/errorcodes"
	"github.com/andrei-cloud/go_cardsim/internal/message"
)

const serviceCode = "101"

func (d *Dispatcher) classifyFinancial(req *message.Message) string {
	if req.MTI() == d.profile.AuthorizeMTI && d.profile.AuthorizeMTI != d.profile.FinancialMTI {
		return "pre_auth"
	}
	if d.profile.UsesFunctionCodes() && req.GetString(message.FunctionCode) == d.profile.PreAuthFunction {
		return "pre_auth"
	}

	switch req.GetString(message.ProcessingCode) {
	case "000000":
		return "purchase"
	case "310000":
		return "balance_inquiry"
	case "010000":
		return "withdrawal"
	case "200000":
		return "refund"
	default:
		return "financial"
	}
}

func (d *Dispatcher) financial(req *message.Message) (*message.Message, Result) {
	op := d.classifyFinancial(req)
	res := Result{Kind: KindFinancial, Operation: op}

	rc := d.validate(req)
	res.ResponseCode = rc
	resp := d.respond(req, rc)
	if !rc.IsApproved() {
		return resp, res
	}

	resp.SetString(message.AuthID, d.authCode())
	if op == "balance_inquiry" {
		resp.SetString(message.AdditionalAmounts, BalanceField(d.balance))
	}

	return resp, res
}

// validate checks CVV then PIN when the request carries them.
func (d *Dispatcher) validate(req *message.Message) errorcodes.ResponseCode {
	pan := req.GetString(message.PAN)

	if cvv, ok := lookupTag(req.GetString(message.AdditionalData), "CVV"); ok {
		match, err := d.sec.VerifyCVV(pan, req.GetString(message.Expiry), serviceCode, cvv)
		if err != nil {
			logValidationError("cvv", err)
			return errorcodes.GeneralError
		}
		if !match {
			return errorcodes.CVVInvalid
		}
	}

	if req.Has(message.PINBlock) && req.Has(message.AdditionalResponse) {
		pin, err := d.sec.ExtractPin(req.Get(message.PINBlock), pan)
		if err != nil {
			logValidationError("pin_block", err)
			log.Debug().
				Str("stan", req.GetString(message.STAN)).
				Str("pin_block", req.HexString(message.PINBlock)).
				Msg("undecodable pin block")
			return errorcodes.GeneralError
		}
		match, err := d.sec.VerifyPVV(pan, pin, req.GetString(message.AdditionalResponse))
		if err != nil {
			logValidationError("pvv", err)
			return errorcodes.GeneralError
		}
		if !match {
			return errorcodes.IncorrectPIN
		}
	}

	return errorcodes.Approved
}

func logValidationError(check string, err error) {
	log.Warn().
		Str("event", "validation_error").
		Str("check", check).
		Err(err).
		Msg("security validation failed to run")
}

// lookupTag finds key=value in a pipe separated composite field.
func lookupTag(composite, key string) (string, bool) {
	if composite == "" {
		return "", false
	}
	for _, part := range strings.Split(composite, "|") {
		k, v, ok := strings.Cut(part, "=")
		if ok && strings.TrimSpace(k) == key {
			return strings.TrimSpace(v), true
		}
	}

	return "", false
}

// BalanceField renders an additional amounts entry: default account type,
// available balance amount type, USD and a credit sign, then 12 digits of
// minor units.
func BalanceField(balance decimal.Decimal) string {
	sign := "C"
	if balance.IsNegative() {
		sign = "D"
	}

	return fmt.Sprintf("0002840%s%012d", sign, balance.Shift(2).Truncate(0).Abs().IntPart())
}
