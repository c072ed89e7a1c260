package adapter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	tele "gopkg.in/telebot.v4"

	"valubot/internal/transport"
)

var recipientGone = []error{
	tele.ErrBlockedByUser,
	tele.ErrUserIsDeactivated,
	tele.ErrChatNotFound,
	tele.ErrNotStartedByUser,
	tele.ErrKickedFromGroup,
	tele.ErrKickedFromSuperGroup,
}

// mapError wraps errors that mean the recipient is unreachable with
// transport.ErrRecipientBlocked. Everything else passes through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range recipientGone {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %w", transport.ErrRecipientBlocked, err)
		}
	}
	var te *tele.Error
	if errors.As(err, &te) && te.Code == http.StatusForbidden {
		return fmt.Errorf("%w: %w", transport.ErrRecipientBlocked, err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "forbidden") {
		return fmt.Errorf("%w: %w", transport.ErrRecipientBlocked, err)
	}
	return err
}

// isNotFound reports whether a getChat failure means the handle does not
// exist.
func isNotFound(err error) bool {
	if errors.Is(err, tele.ErrChatNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "username_invalid") || strings.Contains(msg, "username not occupied")
}
