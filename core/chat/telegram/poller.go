package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Run modes accepted by PollerOptions.RunMode.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

const defaultLongPollTimeout = 10 * time.Second

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

func (w WebhookOptions) addr() string {
	return net.JoinHostPort(w.Listen, strconv.Itoa(w.Port))
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

func (o PollerOptions) webhook() bool {
	return strings.EqualFold(strings.TrimSpace(o.RunMode), RunModeWebhook)
}

// BuildPoller picks the update source for the bot. Only message updates
// from private chats get through; everything else is dropped before any
// handler runs.
func BuildPoller(opts PollerOptions) tele.Poller {
	var source tele.Poller
	if opts.webhook() {
		source = &tele.Webhook{
			Listen:         opts.Webhook.addr(),
			AllowedUpdates: []string{"message"},
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	} else {
		timeout := time.Duration(opts.LongPollTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = defaultLongPollTimeout
		}
		source = &tele.LongPoller{Timeout: timeout, AllowedUpdates: []string{"message"}}
	}
	return tele.NewMiddlewarePoller(source, privateOnly)
}

func privateOnly(u *tele.Update) bool {
	return u.Message != nil && u.Message.Chat != nil && u.Message.Chat.Type == tele.ChatPrivate
}
