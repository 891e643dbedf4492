package iso8583

import (
	"github.com/moov-io/iso8583"
	"github.com/moov-io/iso8583/encoding"
	"github.com/moov-io/iso8583/field"
	"github.com/moov-io/iso8583/padding"
	"github.com/moov-io/iso8583/prefix"
)

// binaryFields lists data elements that carry raw bytes in both variants.
var binaryFields = map[int]bool{
	52: true,
}

// asciiSpec is the text-tagged layout: ASCII digits, hex bitmap, ASCII length prefixes.
var asciiSpec = &iso8583.MessageSpec{
	Name: "Card simulator ASCII (1987 layout)",
	Fields: map[int]field.Field{
		0: field.NewString(&field.Spec{
			Length:      4,
			Description: "Message Type Indicator",
			Enc:         encoding.ASCII,
			Pref:        prefix.ASCII.Fixed,
		}),
		1: field.NewBitmap(&field.Spec{
			Length:      8,
			Description: "Bitmap",
			Enc:         encoding.BytesToASCIIHex,
			Pref:        prefix.Hex.Fixed,
		}),
		2:   asciiLL(19, "Primary Account Number"),
		3:   asciiFixed(6, "Processing Code"),
		4:   asciiFixed(12, "Transaction Amount"),
		7:   asciiFixed(10, "Transmission Date & Time"),
		11:  asciiFixed(6, "Systems Trace Audit Number (STAN)"),
		12:  asciiFixed(6, "Local Transaction Time"),
		13:  asciiFixed(4, "Local Transaction Date"),
		14:  asciiFixed(4, "Expiration Date"),
		18:  asciiFixed(4, "Merchant Type"),
		22:  asciiFixed(3, "Point of Service (POS) Entry Mode"),
		25:  asciiFixed(2, "Point of Service (POS) Condition Code"),
		32:  asciiLL(11, "Acquiring Institution Identification Code"),
		33:  asciiLL(11, "Forwarding Institution Identification Code"),
		37:  alphaFixed(12, "Retrieval Reference Number"),
		38:  alphaFixed(6, "Authorization Identification Response"),
		39:  alphaFixed(2, "Response Code"),
		41:  alphaFixed(8, "Card Acceptor Terminal Identification"),
		42:  alphaFixed(15, "Card Acceptor Identification Code"),
		44:  asciiLL(25, "Additional Response Data"),
		48:  asciiLLL(999, "Additional Data - Private"),
		49:  asciiFixed(3, "Currency Code, Transaction"),
		52:  binaryFixed(8, "PIN Data"),
		54:  asciiLLL(120, "Additional Amounts"),
		70:  asciiFixed(3, "Network Management Information Code"),
		90:  asciiFixed(42, "Original Data Elements"),
		91:  asciiFixed(1, "File Update Code"),
		101: asciiLL(17, "File Name"),
	},
}

// binarySpec is the binary-tagged layout: BCD digits, binary bitmap, binary length prefixes.
var binarySpec = &iso8583.MessageSpec{
	Name: "Card simulator binary (1993 layout)",
	Fields: map[int]field.Field{
		0: field.NewString(&field.Spec{
			Length:      4,
			Description: "Message Type Indicator",
			Enc:         encoding.BCD,
			Pref:        prefix.BCD.Fixed,
		}),
		1: field.NewBitmap(&field.Spec{
			Length:      8,
			Description: "Bitmap",
			Enc:         encoding.Binary,
			Pref:        prefix.Binary.Fixed,
		}),
		2:   bcdLL(19, "Primary Account Number"),
		3:   bcdFixed(6, "Processing Code"),
		4:   bcdFixed(12, "Amount, Transaction"),
		7:   bcdFixed(10, "Date and Time, Transmission"),
		11:  bcdFixed(6, "Systems Trace Audit Number"),
		12:  bcdFixed(6, "Date and Time, Local Transaction"),
		13:  bcdFixed(4, "Date, Effective"),
		14:  bcdFixed(4, "Date, Expiration"),
		18:  bcdFixed(4, "Merchant Type"),
		22:  bcdFixed(3, "Point of Service Data Code"),
		24:  bcdFixed(3, "Function Code"),
		25:  bcdFixed(2, "Message Reason Code"),
		32:  bcdLL(11, "Acquiring Institution Identification Code"),
		33:  bcdLL(11, "Forwarding Institution Identification Code"),
		37:  alphaFixed(12, "Retrieval Reference Number"),
		38:  alphaFixed(6, "Approval Code"),
		39:  alphaFixed(2, "Action Code"),
		41:  alphaFixed(8, "Card Acceptor Terminal Identification"),
		42:  alphaFixed(15, "Card Acceptor Identification Code"),
		44:  binLL(25, "Additional Response Data"),
		48:  binLLL(999, "Additional Data - Private"),
		49:  bcdFixed(3, "Currency Code, Transaction"),
		52:  binaryFixed(8, "Personal Identification Number (PIN) Data"),
		54:  binLLL(120, "Amounts, Additional"),
		90:  bcdFixed(42, "Original Data Elements"),
		91:  asciiFixed(1, "File Update Code"),
		101: binLL(17, "File Name"),
	},
}

func asciiFixed(length int, desc string) field.Field {
	return field.NewString(&field.Spec{
		Length:      length,
		Description: desc,
		Enc:         encoding.ASCII,
		Pref:        prefix.ASCII.Fixed,
	})
}

// alphaFixed is a fixed alphanumeric field; short values are space padded on the right.
func alphaFixed(length int, desc string) field.Field {
	return field.NewString(&field.Spec{
		Length:      length,
		Description: desc,
		Enc:         encoding.ASCII,
		Pref:        prefix.ASCII.Fixed,
		Pad:         padding.Right(' '),
	})
}

func asciiLL(maxLen int, desc string) field.Field {
	return field.NewString(&field.Spec{
		Length:      maxLen,
		Description: desc,
		Enc:         encoding.ASCII,
		Pref:        prefix.ASCII.LL,
	})
}

func asciiLLL(maxLen int, desc string) field.Field {
	return field.NewString(&field.Spec{
		Length:      maxLen,
		Description: desc,
		Enc:         encoding.ASCII,
		Pref:        prefix.ASCII.LLL,
	})
}

func bcdFixed(length int, desc string) field.Field {
	return field.NewString(&field.Spec{
		Length:      length,
		Description: desc,
		Enc:         encoding.BCD,
		Pref:        prefix.BCD.Fixed,
	})
}

func bcdLL(maxLen int, desc string) field.Field {
	return field.NewString(&field.Spec{
		Length:      maxLen,
		Description: desc,
		Enc:         encoding.BCD,
		Pref:        prefix.BCD.LL,
	})
}

func binLL(maxLen int, desc string) field.Field {
	return field.NewString(&field.Spec{
		Length:      maxLen,
		Description: desc,
		Enc:         encoding.ASCII,
		Pref:        prefix.Binary.LL,
	})
}

func binLLL(maxLen int, desc string) field.Field {
	return field.NewString(&field.Spec{
		Length:      maxLen,
		Description: desc,
		Enc:         encoding.ASCII,
		Pref:        prefix.Binary.LLL,
	})
}

func binaryFixed(length int, desc string) field.Field {
	return field.NewBinary(&field.Spec{
		Length:      length,
		Description: desc,
		Enc:         encoding.Binary,
		Pref:        prefix.Binary.Fixed,
	})
}
