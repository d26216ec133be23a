package telegramimpl

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/notify"
	"github.com/orgball2608/fary-stories/pkg/formatter"
	"github.com/orgball2608/fary-stories/pkg/logger"
)

// sender is the part of *tgbotapi.BotAPI used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Channel posts story announcements to a public Telegram channel.
type Channel struct {
	bot       sender
	channel   string
	publicURL string
	logger    logger.Logger
}

var _ notify.Notifier = (*Channel)(nil)

func New(token, channel, publicURL string, log logger.Logger) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newChannel(bot, channel, publicURL, log), nil
}

func newChannel(bot sender, channel, publicURL string, log logger.Logger) *Channel {
	return &Channel{
		bot:       bot,
		channel:   "@" + strings.TrimPrefix(channel, "@"),
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    log.WithComponent("TelegramNotifier"),
	}
}

func (c *Channel) StoryPublished(_ context.Context, story domain.StoryItem) error {
	caption := caption(story, notify.StoryURL(c.publicURL, story))
	media := tgbotapi.FileURL(story.MediaRef)

	var msg tgbotapi.Chattable
	switch story.MediaKind {
	case domain.MediaKindVideo:
		video := tgbotapi.NewVideo(0, media)
		video.ChannelUsername = c.channel
		video.Caption = caption
		video.ParseMode = tgbotapi.ModeMarkdownV2
		msg = video
	default:
		photo := tgbotapi.NewPhotoToChannel(c.channel, media)
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeMarkdownV2
		msg = photo
	}

	if _, err := c.bot.Send(msg); err != nil {
		c.logger.Error("Error sending story to channel", "channel", c.channel, "story_id", story.ID, "error", err)
		return fmt.Errorf("failed to send %s to channel: %w", story.MediaKind, err)
	}

	c.logger.Info("Story announced in channel", "channel", c.channel, "story_id", story.ID)
	return nil
}

func caption(story domain.StoryItem, link string) string {
	var b strings.Builder
	b.WriteString("*New story* by `")
	b.WriteString(formatter.EscapeMarkdownV2(formatter.ShortAddress(story.SubjectKey)))
	b.WriteString("`")
	if story.Text != "" {
		b.WriteString("\n\n")
		b.WriteString(formatter.EscapeMarkdownV2(story.Text))
	}
	if len(story.Tags) > 0 {
		b.WriteString("\n")
		for _, tag := range story.Tags {
			b.WriteString(formatter.EscapeMarkdownV2(" #" + tag))
		}
	}
	b.WriteString("\n\n[Watch](")
	b.WriteString(link)
	b.WriteString(")")
	return b.String()
}
