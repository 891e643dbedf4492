package iso8583

import "github.com/andrei-cloud/go_cardsim/internal/message"

// Profile holds the message types and sub-function codes of a variant.
type Profile struct {
	Variant Variant

	NetworkMTI       string
	AuthorizeMTI     string
	FinancialMTI     string
	ReversalMTI      string
	FileActionMTI    string
	SubFunctionField int

	EchoCode        string
	LogonCode       string
	LogoffCode      string
	KeyExchangeCode string

	// Function codes carried in field 24 by the binary variant. Empty for ascii.
	PurchaseFunction string
	PreAuthFunction  string
	RefundFunction   string
	ReversalFunction string
}

var profiles = map[Variant]Profile{
	VariantASCII: {
		Variant:          VariantASCII,
		NetworkMTI:       "0800",
		AuthorizeMTI:     "0100",
		FinancialMTI:     "0200",
		ReversalMTI:      "0420",
		FileActionMTI:    "0300",
		SubFunctionField: message.NetworkCode,
		EchoCode:         "301",
		LogonCode:        "001",
		LogoffCode:       "002",
		KeyExchangeCode:  "161",
	},
	VariantBinary: {
		Variant:          VariantBinary,
		NetworkMTI:       "1804",
		AuthorizeMTI:     "1100",
		FinancialMTI:     "1100",
		ReversalMTI:      "1420",
		FileActionMTI:    "1304",
		SubFunctionField: message.FunctionCode,
		EchoCode:         "801",
		LogonCode:        "001",
		LogoffCode:       "002",
		KeyExchangeCode:  "161",
		PurchaseFunction: "100",
		PreAuthFunction:  "104",
		RefundFunction:   "200",
		ReversalFunction: "400",
	},
}

// ProfileFor returns the profile of variant.
func ProfileFor(variant Variant) (Profile, error) {
	p, ok := profiles[variant]
	if !ok {
		return Profile{}, ErrUnknownVariant
	}

	return p, nil
}

// UsesFunctionCodes reports whether financial messages carry a field 24 function code.
func (p Profile) UsesFunctionCodes() bool {
	return p.PurchaseFunction != ""
}
