// Package bot is the Telegram front end of the gateway. Non-command messages
// are converted to audio with the session's stored preferences; commands
// manage those preferences.
package bot

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"

	"github.com/vocalize/tts-gateway/internal/observability"
	"github.com/vocalize/tts-gateway/internal/store"
	"github.com/vocalize/tts-gateway/internal/tts"
)

// Synthesizer produces audio bytes for validated text
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
}

// Info is the bot identity reported by the Telegram API
type Info struct {
	ID        int64
	Username  string
	FirstName string
	IsBot     bool
}

// api is the slice of the Telegram client the handlers use. Narrow on purpose
// so tests can substitute a fake transport.
type api interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	SendAudio(ctx context.Context, params *telego.SendAudioParams) (*telego.Message, error)
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
	GetMe(ctx context.Context) (*telego.User, error)
}

// Bot converts chat messages into audio replies
type Bot struct {
	bot      *telego.Bot
	api      api
	synth    Synthesizer
	files    *store.TempFiles
	prefs    *store.Preferences
	commands map[string]commandHandler
}

// New creates the bot against the real Telegram API. The token is validated
// by the transport on the first call, not lazily inside a handler.
func New(token string, synth Synthesizer, files *store.TempFiles, prefs *store.Preferences) (*Bot, error) {
	tgBot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	b := &Bot{
		bot:   tgBot,
		api:   tgBot,
		synth: synth,
		files: files,
		prefs: prefs,
	}
	b.commands = b.commandTable()

	return b, nil
}

// Start begins long polling and dispatches updates until ctx is cancelled.
// A failure inside one message handler never terminates the loop.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		return fmt.Errorf("starting long polling: %w", err)
	}

	b.registerCommands(ctx)

	log.Info().Msg("Telegram bot connected (polling mode)")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					log.Info().Msg("Telegram updates channel closed")
					return
				}
				if update.Message != nil {
					b.dispatch(ctx, *update.Message)
				}
			}
		}
	}()

	return nil
}

// Info returns the bot identity via getMe
func (b *Bot) Info(ctx context.Context) (*Info, error) {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting bot info: %w", err)
	}

	return &Info{
		ID:        me.ID,
		Username:  me.Username,
		FirstName: me.FirstName,
		IsBot:     me.IsBot,
	}, nil
}

// registerCommands advertises the command menu to Telegram clients
func (b *Bot) registerCommands(ctx context.Context) {
	err := b.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: []telego.BotCommand{
			{Command: "start", Description: "Welcome and quick start"},
			{Command: "help", Description: "Commands and usage"},
			{Command: "voice", Description: "List available voices"},
			{Command: "setvoice", Description: "Set your voice"},
			{Command: "speed", Description: "List available speeds"},
			{Command: "setspeed", Description: "Set your speaking speed"},
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to register bot commands")
	}
}

// dispatch routes one message to the command table or the conversion flow
func (b *Bot) dispatch(ctx context.Context, msg telego.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Int64("chat_id", msg.Chat.ID).Msg("Recovered from message handler panic")
		}
	}()

	if name, args, ok := parseCommand(msg.Text); ok {
		handler, known := b.commands[name]
		if !known {
			return
		}
		handler(ctx, msg, args)
		observability.RecordBotMessage("command", true)
		return
	}

	ok := b.handleText(ctx, msg)
	observability.RecordBotMessage("text", ok)
}

// handleText runs the conversion flow for a non-command message. Returns
// false when the message was rejected or the conversion failed; every outcome
// is reported back to the chat.
func (b *Bot) handleText(ctx context.Context, msg telego.Message) bool {
	chatID := msg.Chat.ID
	text := msg.Text

	if text == "" {
		b.reply(ctx, chatID, "❌ Please send me text to convert to audio!")
		return false
	}

	validation := tts.ValidateText(text)
	if !validation.IsValid {
		if tts.TextLength(text) > tts.MaxTextLength {
			b.reply(ctx, chatID, "❌ Text too long! Maximum 4096 characters allowed.")
		} else {
			b.reply(ctx, chatID, "❌ Please send me text to convert to audio!")
		}
		return false
	}

	processing, err := b.api.SendMessage(ctx, tu.Message(tu.ID(chatID), "🎵 Converting text to audio..."))
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send processing message")
	}

	if err := b.convertAndSend(ctx, msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to process message")
		b.deleteMessage(ctx, chatID, processing)
		b.reply(ctx, chatID, fmt.Sprintf(
			"❌ Sorry, I couldn't process your message. Please try again later.\n\nError: %v", err))
		return false
	}

	b.deleteMessage(ctx, chatID, processing)
	return true
}

// convertAndSend synthesizes the message text with the session preferences
// and uploads the result as an audio attachment
func (b *Bot) convertAndSend(ctx context.Context, msg telego.Message) error {
	chatID := msg.Chat.ID
	voice := b.prefs.Voice(chatID)
	speed := b.prefs.Speed(chatID)

	audio, err := b.synth.Synthesize(ctx, msg.Text, voice, speed)
	if err != nil {
		return err
	}

	ref, err := b.files.Save(audio, voice)
	if err != nil {
		return err
	}
	// Upload needs time to drain before removal; the sweep is the backstop
	defer b.files.ScheduleDelete(ref)

	f, err := os.Open(ref.Path)
	if err != nil {
		return fmt.Errorf("opening staged audio: %w", err)
	}
	defer f.Close()

	params := tu.Audio(tu.ID(chatID), tu.File(f))
	params.Caption = caption(senderName(msg), voice, speed, msg.Text)
	params.Title = "Generated Audio"
	params.Performer = "TTS Bot"

	if _, err := b.api.SendAudio(ctx, params); err != nil {
		return fmt.Errorf("sending audio: %w", err)
	}

	return nil
}

// reply sends a plain text message, logging failures instead of surfacing them
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}

// deleteMessage removes the processing placeholder, best effort
func (b *Bot) deleteMessage(ctx context.Context, chatID int64, msg *telego.Message) {
	if msg == nil {
		return
	}
	err := b.api.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: msg.MessageID,
	})
	if err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("Failed to delete processing message")
	}
}

// caption builds the attachment caption: chosen voice and speed plus a
// truncated echo of the source text (first 100 characters)
func caption(name, voice string, speed float64, text string) string {
	return fmt.Sprintf("🎵 Here's your audio, %s! (Voice: %s, Speed: %sx)\n\n\"%s\"",
		name, voice, formatSpeed(speed), truncate(text, 100))
}

// senderName returns the sender's first name, or a neutral fallback
func senderName(msg telego.Message) string {
	if msg.From != nil && msg.From.FirstName != "" {
		return msg.From.FirstName
	}
	return "there"
}

// formatSpeed renders a speed without trailing zeros (0.8, 1, 1.25)
func formatSpeed(speed float64) string {
	return strconv.FormatFloat(speed, 'f', -1, 64)
}

// truncate shortens text to max characters, appending an ellipsis when cut
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

// parseCommand splits "/name args" into its parts. The bot-mention suffix
// (/name@botname) is stripped so group commands dispatch the same way.
func parseCommand(text string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	rest := text[1:]
	if rest == "" {
		return "", "", false
	}

	parts := strings.SplitN(rest, " ", 2)
	name = parts[0]
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	return strings.ToLower(name), args, true
}
