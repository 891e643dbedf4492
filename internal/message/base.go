// Package message holds the logical financial message exchanged between the
// simulator roles: a message-type indicator plus a set of numbered fields.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"unicode"

	"github.com/rs/zerolog/log"
)

// Field numbers used by the simulator.
const (
	PAN                  = 2
	ProcessingCode       = 3
	Amount               = 4
	TransmissionDateTime = 7
	STAN                 = 11
	LocalTime            = 12
	LocalDate            = 13
	Expiry               = 14
	MerchantType         = 18
	POSEntryMode         = 22
	FunctionCode         = 24
	POSConditionCode     = 25
	AcquirerID           = 32
	ForwarderID          = 33
	RRN                  = 37
	AuthID               = 38
	ResponseCode         = 39
	TerminalID           = 41
	MerchantID           = 42
	AdditionalResponse   = 44
	AdditionalData       = 48
	Currency             = 49
	PINBlock             = 52
	AdditionalAmounts    = 54
	NetworkCode          = 70
	OriginalData         = 90
	FileUpdateCode       = 91
	FileName             = 101

	MinField = 2
	MaxField = 128
)

// ErrInvalidField is returned when a field number is outside the data element range.
var ErrInvalidField = errors.New("invalid field number")

// Message is an MTI with its data elements. The zero value is not usable; use New.
type Message struct {
	mti    string
	fields map[int][]byte
}

// New creates an empty message with the given MTI.
func New(mti string) *Message {
	return &Message{mti: mti, fields: make(map[int][]byte)}
}

// MTI returns the message-type indicator.
func (m *Message) MTI() string {
	return m.mti
}

// SetMTI replaces the message-type indicator.
func (m *Message) SetMTI(mti string) {
	m.mti = mti
}

// SetChecked stores val under field, rejecting field numbers the codec cannot carry.
func (m *Message) SetChecked(field int, val []byte) error {
	if field < MinField || field > MaxField {
		return fmt.Errorf("%w: %d", ErrInvalidField, field)
	}
	m.fields[field] = val

	return nil
}

// Set stores val under field. Out of range field numbers are logged and
// ignored.
func (m *Message) Set(field int, val []byte) {
	if err := m.SetChecked(field, val); err != nil {
		log.Debug().Str("mti", m.mti).Int("field", field).Err(err).Msg("field ignored")
	}
}

// SetString stores a text value under field.
func (m *Message) SetString(field int, val string) {
	m.Set(field, []byte(val))
}

// Get returns the raw value of field or nil.
func (m *Message) Get(field int) []byte {
	return m.fields[field]
}

// GetString returns the value of field as text, empty when absent.
func (m *Message) GetString(field int) string {
	return string(m.fields[field])
}

// Has reports whether field is present.
func (m *Message) Has(field int) bool {
	_, ok := m.fields[field]
	return ok
}

// Unset removes field.
func (m *Message) Unset(field int) {
	delete(m.fields, field)
}

// Fields returns the present field numbers in ascending order.
func (m *Message) Fields() []int {
	ids := make([]int, 0, len(m.fields))
	for id := range m.fields {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	return ids
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := New(m.mti)
	for id, v := range m.fields {
		c.fields[id] = bytes.Clone(v)
	}

	return c
}

// Trace renders the message one field per line, binary values in hex.
func (m *Message) Trace() string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("MTI: %s\n", m.mti))
	for _, id := range m.Fields() {
		buf.WriteString(fmt.Sprintf("\t[%03d]=%s\n", id, printable(m.fields[id])))
	}

	return buf.String()
}

// printable returns the value as text if every byte is printable ASCII, else upper hex.
func printable(v []byte) string {
	for _, b := range v {
		if b > unicode.MaxASCII || !unicode.IsPrint(rune(b)) {
			return fmt.Sprintf("%X", v)
		}
	}

	return string(v)
}

// HexString returns the value of field as upper-case hex.
func (m *Message) HexString(field int) string {
	return fmt.Sprintf("%X", m.fields[field])
}

// ResponseMTI returns the response counterpart of a request MTI: the function
// digit is advanced from request to response (request MTI + 10). Network
// management messages answer with the request MTI itself, and MTIs that are
// not requests are returned unchanged.
func ResponseMTI(mti string) string {
	if len(mti) != 4 || !isDigits(mti) {
		return mti
	}
	if mti[1] == '8' {
		return mti
	}
	fn := mti[2]
	if (fn-'0')%2 != 0 {
		return mti
	}

	b := []byte(mti)
	b[2] = fn + 1

	return string(b)
}

// ValidMTI reports whether mti is four decimal digits.
func ValidMTI(mti string) bool {
	return len(mti) == 4 && isDigits(mti)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}
