// Package iso8583 packs and unpacks simulator messages in the two supported
// wire variants and describes the codes each variant uses.
package iso8583

import (
	"errors"
	"fmt"
	"strings"

	"github.com/moov-io/iso8583"

	"github.com/andrei-cloud/go_cardsim/internal/message"
)

// Variant selects a wire layout.
type Variant string

const (
	// VariantASCII is the text-tagged 1987 layout.
	VariantASCII Variant = "ascii"
	// VariantBinary is the binary-tagged 1993 layout.
	VariantBinary Variant = "binary"
)

// Codec errors.
var (
	ErrUnknownVariant = errors.New("unknown protocol variant")
	ErrPack           = errors.New("failed to pack message")
	ErrUnpack         = errors.New("failed to unpack message")
)

// ParseVariant maps a configuration value to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ascii", "text", "iso87":
		return VariantASCII, nil
	case "binary", "iso93":
		return VariantBinary, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// Codec converts between message.Message and wire bytes for one variant.
type Codec struct {
	variant Variant
	spec    *iso8583.MessageSpec
}

// NewCodec returns the codec for variant.
func NewCodec(variant Variant) (*Codec, error) {
	switch variant {
	case VariantASCII:
		return &Codec{variant: variant, spec: asciiSpec}, nil
	case VariantBinary:
		return &Codec{variant: variant, spec: binarySpec}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
}

// Variant returns the wire variant handled by the codec.
func (c *Codec) Variant() Variant {
	return c.variant
}

// Supports reports whether the variant layout defines field id.
func (c *Codec) Supports(id int) bool {
	_, ok := c.spec.Fields[id]
	return ok && id > 1
}

// Pack encodes m. Fields the layout does not define, or values violating a
// field's length, fail with ErrPack.
func (c *Codec) Pack(m *message.Message) ([]byte, error) {
	if !message.ValidMTI(m.MTI()) {
		return nil, fmt.Errorf("%w: invalid mti %q", ErrPack, m.MTI())
	}

	msg := iso8583.NewMessage(c.spec)
	msg.MTI(m.MTI())

	for _, id := range m.Fields() {
		if !c.Supports(id) {
			return nil, fmt.Errorf("%w: field %d not defined for %s variant", ErrPack, id, c.variant)
		}

		var err error
		if binaryFields[id] {
			err = msg.BinaryField(id, m.Get(id))
		} else {
			err = msg.Field(id, m.GetString(id))
		}
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrPack, id, err)
		}
	}

	packed, err := msg.Pack()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPack, err)
	}

	return packed, nil
}

// Unpack decodes raw into a message. Any decoding failure is reported as ErrUnpack.
func (c *Codec) Unpack(raw []byte) (*message.Message, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrUnpack)
	}

	msg := iso8583.NewMessage(c.spec)
	if err := msg.Unpack(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnpack, err)
	}

	mti, err := msg.GetMTI()
	if err != nil {
		return nil, fmt.Errorf("%w: mti: %v", ErrUnpack, err)
	}

	out := message.New(mti)
	for id := range msg.GetFields() {
		if id < message.MinField {
			continue
		}

		if binaryFields[id] {
			v, err := msg.GetBytes(id)
			if err != nil {
				return nil, fmt.Errorf("%w: field %d: %v", ErrUnpack, id, err)
			}
			out.Set(id, v)

			continue
		}

		v, err := msg.GetString(id)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrUnpack, id, err)
		}
		out.SetString(id, v)
	}

	return out, nil
}
