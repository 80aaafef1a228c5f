package alerts

import (
	"errors"
	"fmt"

	"hive-monitor/models"
	"hive-monitor/utils"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioNotifier delivers alerts as SMS messages.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
	to     string
}

// NewTwilioNotifierFromEnv builds a notifier from TWILIO_SID, TWILIO_AUTH,
// TWILIO_FROM and ALERT_PHONE_TO. Returns an error if any are unset, so the
// caller can fall back to log-only alerting.
func NewTwilioNotifierFromEnv() (*TwilioNotifier, error) {
	sid := utils.GetEnv("TWILIO_SID")
	auth := utils.GetEnv("TWILIO_AUTH")
	from := utils.GetEnv("TWILIO_FROM")
	to := utils.GetEnv("ALERT_PHONE_TO")

	if sid == "" || auth == "" || from == "" || to == "" {
		return nil, errors.New("twilio alerting not configured")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: sid,
		Password: auth,
	})

	return &TwilioNotifier{client: client, from: from, to: to}, nil
}

func (n *TwilioNotifier) Notify(record *models.ClassificationRecord) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.to)
	params.SetFrom(n.from)
	params.SetBody(FormatAlertBody(record))

	if _, err := n.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send alert SMS: %w", err)
	}

	return nil
}
