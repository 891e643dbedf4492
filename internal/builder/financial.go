package builder

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andrei-cloud/go_cardsim/internal/card"
	"github.com/andrei-cloud/go_cardsim/internal/message"
)

// Processing codes.
const (
	ProcPurchase   = "000000"
	ProcBalance    = "310000"
	ProcWithdrawal = "010000"
	ProcRefund     = "200000"
)

type financialKind struct {
	procCode string
	amount   decimal.Decimal
}

// Demo amounts per category in major units.
var financialKinds = map[Category]financialKind{
	Purchase:       {procCode: ProcPurchase, amount: decimal.RequireFromString("10.00")},
	BalanceInquiry: {procCode: ProcBalance, amount: decimal.RequireFromString("10.00")},
	Withdrawal:     {procCode: ProcWithdrawal, amount: decimal.RequireFromString("20.00")},
	Refund:         {procCode: ProcRefund, amount: decimal.RequireFromString("15.00")},
	PreAuth:        {procCode: ProcPurchase, amount: decimal.RequireFromString("50.00")},
}

// Amount returns the demo amount carried by a financial category.
func Amount(c Category) (decimal.Decimal, bool) {
	k, ok := financialKinds[c]
	return k.amount, ok
}

// MinorUnits12 renders amount as 12 digits of minor units, truncating sub-cent digits.
func MinorUnits12(amount decimal.Decimal) string {
	return fmt.Sprintf("%012d", amount.Shift(2).Truncate(0).Abs().IntPart())
}

func cardPANExpiry(c *card.Card, fallbackExpiry string) (string, string) {
	if c == nil {
		return FallbackPAN, fallbackExpiry
	}

	return c.PAN, c.Expiry
}

func (b *Builder) financial(req Request) (*message.Message, error) {
	kind := financialKinds[req.Category]

	mti := b.profile.FinancialMTI
	if req.Category == PreAuth {
		mti = b.profile.AuthorizeMTI
	}

	now := b.now()
	m := b.base(mti, now)
	stan := m.GetString(message.STAN)
	pan, expiry := cardPANExpiry(req.Card, FallbackExpiry)

	m.SetString(message.PAN, pan)
	m.SetString(message.ProcessingCode, kind.procCode)
	m.SetString(message.Amount, MinorUnits12(kind.amount))
	m.SetString(message.LocalTime, now.Format("150405"))
	m.SetString(message.LocalDate, now.Format("0102"))
	m.SetString(message.Expiry, expiry)
	m.SetString(message.MerchantType, MerchantType)
	m.SetString(message.POSEntryMode, POSEntryMode)
	m.SetString(message.POSConditionCode, POSConditionCode)
	m.SetString(message.AcquirerID, b.acquirerID)
	m.SetString(message.RRN, RRN(now, stan))
	m.SetString(message.TerminalID, b.terminalID)
	m.SetString(message.MerchantID, b.merchantID)
	m.SetString(message.Currency, CurrencyUSD)

	if b.profile.UsesFunctionCodes() {
		fn := b.profile.PurchaseFunction
		switch req.Category {
		case PreAuth:
			fn = b.profile.PreAuthFunction
		case Refund:
			fn = b.profile.RefundFunction
		}
		m.SetString(message.FunctionCode, fn)
	}

	if req.Card != nil {
		if err := b.attachSecurity(m, req.Card); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// attachSecurity adds the PIN block, stored PVV and stored CVV of c.
// Cards from files without a CVV column carry no CVV tag.
func (b *Builder) attachSecurity(m *message.Message, c *card.Card) error {
	block, err := b.sec.FormPinBlock(c.PIN, c.PAN)
	if err != nil {
		return fmt.Errorf("form pin block for %s: %w", card.MaskPAN(c.PAN), err)
	}

	m.Set(message.PINBlock, block)
	m.SetString(message.AdditionalResponse, c.PVV)
	if c.CVV != "" {
		m.SetString(message.AdditionalData, "CVV="+c.CVV)
	}

	return nil
}

func (b *Builder) reversal(req Request) (*message.Message, error) {
	orig := req.Original
	if orig == nil || !message.ValidMTI(orig.MTI()) ||
		!orig.Has(message.STAN) || !orig.Has(message.TransmissionDateTime) {
		return nil, ErrMissingOriginal
	}

	procCode := ProcPurchase
	if req.Category == WithdrawalReversal {
		procCode = ProcWithdrawal
	}

	m := b.base(b.profile.ReversalMTI, b.now())
	m.SetString(message.PAN, orig.GetString(message.PAN))
	m.SetString(message.ProcessingCode, procCode)
	m.SetString(message.Amount, orig.GetString(message.Amount))
	m.SetString(message.RRN, orig.GetString(message.RRN))
	m.SetString(message.TerminalID, b.terminalID)
	if b.profile.UsesFunctionCodes() {
		m.SetString(message.FunctionCode, b.profile.ReversalFunction)
	}
	m.SetString(message.OriginalData, ReversalLink(orig))

	for _, id := range []int{message.PAN, message.Amount, message.RRN} {
		if m.GetString(id) == "" {
			m.Unset(id)
		}
	}

	return m, nil
}

// ReversalLink renders the original data elements of orig: MTI, trace
// number, transmission timestamp, acquiring and forwarding institution ids.
func ReversalLink(orig *message.Message) string {
	var sb strings.Builder
	sb.WriteString(orig.MTI())
	sb.WriteString(zeroFillRight(orig.GetString(message.STAN), 6))
	sb.WriteString(orig.GetString(message.TransmissionDateTime))
	sb.WriteString(institutionID(orig, message.AcquirerID))
	sb.WriteString(institutionID(orig, message.ForwarderID))

	return sb.String()
}

func institutionID(m *message.Message, field int) string {
	if !m.Has(field) {
		return zeroInstitutionID
	}

	return zeroFillRight(m.GetString(field), institutionIDLength)
}

// zeroFillRight left-justifies s in width characters padded with zeros, truncating longer values.
func zeroFillRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}

	return s + strings.Repeat("0", width-len(s))
}
