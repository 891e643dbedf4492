package builder

import (
	"fmt"

	"github.com/andrei-cloud/go_cardsim/internal/card"
	"github.com/andrei-cloud/go_cardsim/internal/message"
)

func (b *Builder) fileAction(update string) *message.Message {
	m := b.base(b.profile.FileActionMTI, b.now())
	m.SetString(message.FileUpdateCode, update)
	m.SetString(message.FileName, CardMasterFile)

	return m
}

func (b *Builder) createCard(req Request) (*message.Message, error) {
	pan, expiry := cardPANExpiry(req.Card, FallbackCreateExp)

	m := b.fileAction(FileUpdateAdd)
	m.SetString(message.AdditionalData, fmt.Sprintf("PAN=%s|EXP=%s|SVC=%s", pan, expiry, ServiceCode))

	return m, nil
}

func (b *Builder) updateCardStatus(req Request) (*message.Message, error) {
	pan, _ := cardPANExpiry(req.Card, FallbackExpiry)
	status := req.Status
	if status == "" {
		status = card.StatusBlocked
	}

	m := b.fileAction(FileUpdateChange)
	m.SetString(message.AdditionalData, fmt.Sprintf("PAN=%s|STATUS=%s", pan, status))

	return m, nil
}

// syncCard announces a newly generated card. The payload carries no PIN or CVV data.
func (b *Builder) syncCard(req Request) (*message.Message, error) {
	c := req.Card
	if c == nil {
		return nil, fmt.Errorf("%w: sync card", ErrMissingCard)
	}

	m := b.fileAction(FileUpdateAdd)
	m.SetString(message.PAN, c.PAN)
	m.SetString(message.Expiry, c.Expiry)
	m.SetString(message.TerminalID, terminalField(c.SourceID))
	m.SetString(message.AdditionalData, fmt.Sprintf("SCHEME=%s|LIMIT_TXN=%s|LIMIT_DAILY=%s|BIN=%s",
		c.Scheme, c.PerTxnLimit.StringFixed(2), c.DailyLimit.StringFixed(2), c.BIN()))

	return m, nil
}

// terminalField fits a source id into the 8 character terminal id field.
func terminalField(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}
