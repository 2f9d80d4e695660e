// Package channel delivers rendered follow-up messages to a destination through an
// outbound provider. Senders fail closed: every provider error or panic comes back as a
// failed Result, never as a Go error or panic, so a dispatch cycle can keep going.
package channel

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/unclebandit/contractor-followups/internal/config"
	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
)

type Sender interface {
	Send(ctx context.Context, to, body string) Result
}

// Result is either {Success: true, MessageID} or {Success: false, Error}.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

func Delivered(messageID string) Result {
	return Result{Success: true, MessageID: messageID}
}

func Failure(err error) Result {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	return Result{Success: false, Error: err.Error()}
}

// New builds the sender selected by cfg.ChannelProvider. Missing credentials are a
// configuration error.
func New(cfg *config.Config, logger *zap.Logger) (Sender, error) {
	if err := cfg.ValidateChannel(); err != nil {
		return nil, err
	}
	switch cfg.ChannelProvider {
	case config.ProviderTwilio:
		return NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.DefaultPhoneRegion, logger)
	case config.ProviderLog:
		return NewLogSender(logger), nil
	}
	return nil, fmt.Errorf("%w: unsupported provider %q", appErrors.ErrChannelNotConfigured, cfg.ChannelProvider)
}
