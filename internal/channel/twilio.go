package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
	"github.com/unclebandit/contractor-followups/internal/metrics"
)

// messageCreator is the slice of the Twilio API the sender uses.
type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

type TwilioSender struct {
	FromNumber    string
	DefaultRegion string

	api    messageCreator
	logger *zap.Logger
}

func NewTwilioSender(accountSid, authToken, fromNumber, defaultRegion string, logger *zap.Logger) (*TwilioSender, error) {
	if accountSid == "" || authToken == "" || fromNumber == "" {
		return nil, fmt.Errorf("%w: twilio credentials and phone number are required", appErrors.ErrChannelNotConfigured)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioSender{
		FromNumber:    fromNumber,
		DefaultRegion: defaultRegion,
		api:           client.Api,
		logger:        logger,
	}, nil
}

func (t *TwilioSender) Send(ctx context.Context, to, body string) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("twilio send panicked", zap.Any("panic", r))
			res = Failure(fmt.Errorf("twilio send panicked: %v", r))
		}
		outcome := "success"
		if !res.Success {
			outcome = "failure"
		}
		metrics.ChannelSendDuration.WithLabelValues("twilio", outcome).Observe(time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return Failure(err)
	}

	dest, err := NormalizePhone(to, t.DefaultRegion)
	if err != nil {
		return Failure(err)
	}

	params := &api.CreateMessageParams{}
	params.SetBody(body)
	params.SetFrom(t.FromNumber)
	params.SetTo(dest)

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		t.logger.Warn("twilio rejected message", zap.String("to", dest), zap.Error(err))
		return Failure(err)
	}
	if resp == nil || resp.Sid == nil {
		return Failure(fmt.Errorf("twilio returned no message sid"))
	}
	return Delivered(*resp.Sid)
}
