package slack

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/engclin/melwatch/internal/services"
	"github.com/engclin/melwatch/internal/utils"
)

const defaultQueueSize = 64

// messagePoster is the slice of the Slack API the notifier needs
type messagePoster interface {
	conversationLister
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts MEL alert transitions to a Slack channel. Delivery is
// asynchronous so a slow Slack API never stalls a reconcile pass; events
// that do not fit in the queue are dropped and logged.
type Notifier struct {
	client   messagePoster
	resolver *ChannelResolver
	channel  string
	timeout  time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	queue  chan services.AlertEvent
	closed bool
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier for the given bot token and channel.
// Extra options are passed to the Slack client.
func NewNotifier(botToken, channel string, logger *zap.Logger, options ...slack.Option) *Notifier {
	client := slack.New(botToken, options...)
	return newNotifier(client, channel, logger, defaultQueueSize)
}

func newNotifier(client messagePoster, channel string, logger *zap.Logger, queueSize int) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{
		client:   client,
		resolver: NewChannelResolver(client, logger),
		channel:  channel,
		timeout:  10 * time.Second,
		logger:   logger,
		queue:    make(chan services.AlertEvent, queueSize),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Notify implements services.AlertNotifier
func (n *Notifier) Notify(_ context.Context, event services.AlertEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- event:
	default:
		n.logger.Warn("slack queue full, dropping alert event",
			zap.String("type", string(event.Type)),
			zap.String("sector_id", event.Alert.SectorID),
			zap.String("group_key", event.Alert.EquipmentGroupKey))
	}
}

// Close stops accepting events and waits for queued ones to be sent
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for event := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		if err := n.send(ctx, event); err != nil {
			n.logger.Error("failed to post alert to slack",
				zap.String("type", string(event.Type)),
				zap.String("alert_uuid", event.Alert.UUID),
				zap.Error(err))
		}
		cancel()
	}
}

func (n *Notifier) send(ctx context.Context, event services.AlertEvent) error {
	channelID, err := n.resolver.ResolveChannel(ctx, n.channel)
	if err != nil {
		return err
	}
	text, blocks := FormatEvent(event)
	_, _, err = n.client.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	return err
}

// maxSectionText is Slack's limit for section block text
const maxSectionText = 3000

// FormatEvent renders the fallback text and blocks for an alert event
func FormatEvent(event services.AlertEvent) (string, []slack.Block) {
	a := event.Alert
	group := utils.EscapeMrkdwn(a.EquipmentGroupName)
	sector := utils.EscapeMrkdwn(a.SectorID)

	var headline string
	switch event.Type {
	case services.AlertEventCreated:
		headline = fmt.Sprintf(":rotating_light: MEL breach: *%s* in sector %s has %d available (minimum %d)",
			group, sector, a.CurrentAvailable, a.MinimumQuantity)
	case services.AlertEventUpdated:
		previous := "?"
		if event.PreviousAvailable != nil {
			previous = fmt.Sprint(*event.PreviousAvailable)
		}
		headline = fmt.Sprintf(":warning: MEL breach updated: *%s* in sector %s now has %d available (was %s, minimum %d)",
			group, sector, a.CurrentAvailable, previous, a.MinimumQuantity)
	case services.AlertEventResolved:
		if event.Orphaned {
			headline = fmt.Sprintf(":white_check_mark: MEL alert closed: rule for *%s* in sector %s no longer active",
				group, sector)
		} else {
			headline = fmt.Sprintf(":white_check_mark: MEL restored: *%s* in sector %s is back at minimum %d",
				group, sector, a.MinimumQuantity)
		}
		if a.ResolvedAt != nil && !a.CreatedAt.IsZero() {
			headline += fmt.Sprintf(" after %s", utils.FormatDuration(a.ResolvedAt.Sub(a.CreatedAt)))
		}
	default:
		headline = fmt.Sprintf("MEL alert %s: %s in sector %s", event.Type, group, sector)
	}
	headline = utils.TruncateText(headline, maxSectionText)

	section := slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, headline, false, false), nil, nil)
	details := slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("group `%s` · alert `%s`", utils.EscapeMrkdwn(a.EquipmentGroupKey), a.UUID), false, false),
	)
	return headline, []slack.Block{section, details}
}
