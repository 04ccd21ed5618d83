package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"

	"github.com/vocalize/tts-gateway/internal/tts"
)

// commandHandler handles one parsed command with its argument string
type commandHandler func(ctx context.Context, msg telego.Message, args string)

// commandTable maps command names to handlers. A tagged dispatch table, not a
// chain of pattern probes, so adding a command is one entry.
func (b *Bot) commandTable() map[string]commandHandler {
	return map[string]commandHandler{
		"start":    b.cmdStart,
		"help":     b.cmdHelp,
		"voice":    b.cmdVoice,
		"setvoice": b.cmdSetVoice,
		"speed":    b.cmdSpeed,
		"setspeed": b.cmdSetSpeed,
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg telego.Message, _ string) {
	welcome := fmt.Sprintf(`🎵 *Welcome to Text-to-Audio Bot, %s!* 🎵

I convert your text messages into audio using OpenAI's TTS.

*Quick start:* send me any text message and I'll reply with an MP3.

*Customize:*
• /voice — see all voices
• /setvoice nova — change voice
• /speed — see all speeds
• /setspeed 1.0 — change speed

Supports up to 4096 characters per message. Use /help for details.`, senderName(msg))

	b.replyMarkdown(ctx, msg.Chat.ID, welcome)
}

func (b *Bot) cmdHelp(ctx context.Context, msg telego.Message, _ string) {
	help := `📖 *Help & Commands*

🎙️ /voice — list available voices
🎙️ /setvoice [name] — change voice (example: /setvoice nova)
⚡ /speed — list available speeds
⚡ /setspeed [speed] — change speed (available: 0.5, 0.75, 0.8, 1.0, 1.25, 1.5, 2.0)

*How to use:* set your preferences (optional), then send any text message to get an MP3 back.

*Defaults:* voice alloy, speed 0.8x. Limit: 4096 characters per message.`

	b.replyMarkdown(ctx, msg.Chat.ID, help)
}

func (b *Bot) cmdVoice(ctx context.Context, msg telego.Message, _ string) {
	current := b.prefs.Voice(msg.Chat.ID)

	var sb strings.Builder
	sb.WriteString("🎙️ *Available Voices:*\n\n")
	for _, v := range tts.VoiceOptions() {
		marker := "🔸"
		if v.Value == current {
			marker = "✅"
		}
		fmt.Fprintf(&sb, "%s *%s* - %s\n", marker, v.Label, v.Description)
	}
	fmt.Fprintf(&sb, "\nChange with `/setvoice [voice_name]`, e.g. `/setvoice nova`\n")
	fmt.Fprintf(&sb, "Your current voice: *%s*", current)

	b.replyMarkdown(ctx, msg.Chat.ID, sb.String())
}

func (b *Bot) cmdSetVoice(ctx context.Context, msg telego.Message, args string) {
	voice := strings.ToLower(strings.TrimSpace(args))

	if err := b.prefs.SetVoice(msg.Chat.ID, voice); err != nil {
		b.reply(ctx, msg.Chat.ID, "❌ Invalid voice. Use /voice to see available options.")
		return
	}

	b.replyMarkdown(ctx, msg.Chat.ID, fmt.Sprintf("✅ Voice set to: *%s*", voice))
}

func (b *Bot) cmdSpeed(ctx context.Context, msg telego.Message, _ string) {
	current := b.prefs.Speed(msg.Chat.ID)

	var sb strings.Builder
	sb.WriteString("⚡ *Available Speeds:*\n\n")
	for _, s := range tts.SpeedOptions() {
		marker := "🔸"
		if s.Value == current {
			marker = "✅"
		}
		fmt.Fprintf(&sb, "%s *%s* - %s\n", marker, s.Label, s.Description)
	}
	fmt.Fprintf(&sb, "\nChange with `/setspeed [speed]`, e.g. `/setspeed 1.0`\n")
	fmt.Fprintf(&sb, "Your current speed: *%sx*", formatSpeed(current))

	b.replyMarkdown(ctx, msg.Chat.ID, sb.String())
}

func (b *Bot) cmdSetSpeed(ctx context.Context, msg telego.Message, args string) {
	speed, err := strconv.ParseFloat(strings.TrimSpace(args), 64)
	if err != nil {
		b.reply(ctx, msg.Chat.ID, "❌ Invalid speed. Use /speed to see available options.")
		return
	}

	if err := b.prefs.SetSpeed(msg.Chat.ID, speed); err != nil {
		b.reply(ctx, msg.Chat.ID, "❌ Invalid speed. Use /speed to see available options.")
		return
	}

	b.replyMarkdown(ctx, msg.Chat.ID, fmt.Sprintf("✅ Speed set to: *%sx*", formatSpeed(speed)))
}

// replyMarkdown sends a Markdown-formatted message, falling back to plain
// text when Telegram rejects the formatting
func (b *Bot) replyMarkdown(ctx context.Context, chatID int64, text string) {
	tgMsg := tu.Message(tu.ID(chatID), text)
	tgMsg.ParseMode = telego.ModeMarkdown

	if _, err := b.api.SendMessage(ctx, tgMsg); err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("Markdown send failed, falling back to plain text")
		b.reply(ctx, chatID, text)
	}
}
