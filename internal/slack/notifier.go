package slack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/slack-go/slack"

	"github.com/fixithostel/fixit/internal/notify"
)

// MemberLookup maps application user ids to Slack member ids
type MemberLookup interface {
	SlackIDs(userIDs []string) (map[string]string, error)
}

// Config holds what the notifier needs to reach Slack
type Config struct {
	BotToken        string
	FallbackChannel string // channel name or ID for recipients without a Slack id
	ProxyURL        string
	APIURL          string // overrides the Slack API base URL, used in tests
}

// Enabled reports whether a bot token is configured
func (c Config) Enabled() bool {
	return c.BotToken != ""
}

// Notifier delivers notifications as Slack DMs, falling back to a shared
// channel for recipients that have not linked a Slack account
type Notifier struct {
	client   *slack.Client
	members  MemberLookup
	resolver *ChannelResolver
	fallback string
}

// NewNotifier creates a Slack notifier
func NewNotifier(cfg Config, members MemberLookup) *Notifier {
	options := []slack.Option{slack.OptionDebug(false)}

	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			options = append(options, slack.OptionHTTPClient(&http.Client{
				Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
			}))
			log.Printf("SlackNotifier: Using proxy: %s", cfg.ProxyURL)
		} else {
			log.Printf("SlackNotifier: Ignoring invalid proxy URL %q: %v", cfg.ProxyURL, err)
		}
	}
	if cfg.APIURL != "" {
		options = append(options, slack.OptionAPIURL(cfg.APIURL))
	}

	client := slack.New(cfg.BotToken, options...)
	return &Notifier{
		client:   client,
		members:  members,
		resolver: NewChannelResolver(client),
		fallback: cfg.FallbackChannel,
	}
}

// Dispatch sends n to every recipient. Recipients with a Slack id get a DM;
// the rest are mentioned by count in one fallback channel post.
func (n *Notifier) Dispatch(ctx context.Context, msg notify.Notification) error {
	if len(msg.Recipients) == 0 {
		return nil
	}

	slackIDs, err := n.members.SlackIDs(msg.Recipients)
	if err != nil {
		return fmt.Errorf("failed to resolve Slack members: %w", err)
	}

	blocks := buildBlocks(msg)
	var errs []error
	unreachable := 0

	for _, recipient := range msg.Recipients {
		memberID, ok := slackIDs[recipient]
		if !ok {
			unreachable++
			continue
		}
		_, _, err := n.client.PostMessageContext(ctx, memberID,
			slack.MsgOptionText(msg.Message, false),
			slack.MsgOptionBlocks(blocks...),
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("DM to %s: %w", recipient, err))
		}
	}

	if unreachable > 0 && n.fallback != "" {
		if err := n.postFallback(ctx, msg, blocks, unreachable); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (n *Notifier) postFallback(ctx context.Context, msg notify.Notification, blocks []slack.Block, unreachable int) error {
	channelID, err := n.resolver.ResolveChannel(ctx, n.fallback)
	if err != nil {
		return fmt.Errorf("fallback channel: %w", err)
	}

	note := slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("_%d reporter(s) have no linked Slack account_", unreachable), false, false),
	)
	_, _, err = n.client.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(msg.Message, false),
		slack.MsgOptionBlocks(append(blocks, note)...),
	)
	if err != nil {
		return fmt.Errorf("post to %s: %w", n.fallback, err)
	}
	return nil
}

// buildBlocks renders a notification as Block Kit blocks
func buildBlocks(msg notify.Notification) []slack.Block {
	header := slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, headerText(msg.Type), false, false))
	body := slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, msg.Message, false, false), nil, nil)

	var fields []string
	fields = append(fields, "Issue: `"+msg.IssueID+"`")
	if msg.Status != "" {
		fields = append(fields, "Status: *"+string(msg.Status)+"*")
	}
	if msg.MergeID != "" {
		fields = append(fields, "Merge: `"+msg.MergeID+"`")
	}

	elements := make([]slack.MixedElement, 0, len(fields))
	for _, f := range fields {
		elements = append(elements, slack.NewTextBlockObject(slack.MarkdownType, f, false, false))
	}
	return []slack.Block{header, body, slack.NewContextBlock("", elements...)}
}

func headerText(eventType string) string {
	switch eventType {
	case notify.EventIssueMerged:
		return "Issues merged"
	case notify.EventIssueUnmerged:
		return "Issues unmerged"
	default:
		return "Issue " + strings.ReplaceAll(strings.TrimPrefix(eventType, "issue_"), "_", " ")
	}
}
