package notify

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ldi/telepathic/internal/logging"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts notifications to one chat.
type Telegram struct {
	api    telegramSender
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logging.Info("notify", "Telegram bot authorized on account %s", api.Self.UserName)
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) send(n Notification) {
	if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, n.Text())); err != nil {
		logging.Warn("notify", "Telegram send failed: %v", err)
	}
}

func (t *Telegram) Toast(msg string)         { t.send(newNotification(KindToast, "", msg)) }
func (t *Telegram) Alert(title, body string) { t.send(newNotification(KindAlert, title, body)) }
func (t *Telegram) Error(err error)          { t.send(newNotification(KindError, "", err.Error())) }

type discordSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts notifications to one channel.
type Discord struct {
	session   discordSender
	channelID string
}

func NewDiscord(token, channelID string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &Discord{session: session, channelID: channelID}, nil
}

// discordLimit is Discord's maximum message length.
const discordLimit = 2000

func (d *Discord) send(n Notification) {
	content := n.Text()
	if len(content) > discordLimit {
		content = content[:discordLimit-3] + "..."
	}
	if _, err := d.session.ChannelMessageSend(d.channelID, content); err != nil {
		logging.Warn("notify", "Discord send failed: %v", err)
	}
}

func (d *Discord) Toast(msg string)         { d.send(newNotification(KindToast, "", msg)) }
func (d *Discord) Alert(title, body string) { d.send(newNotification(KindAlert, title, body)) }
func (d *Discord) Error(err error)          { d.send(newNotification(KindError, "", err.Error())) }
