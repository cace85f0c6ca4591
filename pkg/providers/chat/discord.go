// Package chat implements orchestrator.ChatSource collaborators. DiscordChat
// is grounded on the poll-and-diff shape of
// original_source/CHZZK/chzzk_chat_collector.py's get_latest_chats (fetch a
// bounded window, newest-first, tolerate transient fetch errors by returning
// an empty slice) but replaces the scraper with
// github.com/bwmarrin/discordgo's REST channel-message history call, since
// Discord exposes chat history directly instead of requiring page scraping.
package chat

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/lokutor-ai/vtuber-orchestrator/pkg/orchestrator"
)

// DiscordChat polls a single channel's message history.
type DiscordChat struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordChat opens a Discord session (Bot token) and returns a
// ChatSource polling channelID.
func NewDiscordChat(token, channelID string) (*DiscordChat, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("chat: create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("chat: open discord session: %w", err)
	}

	return &DiscordChat{session: session, channelID: channelID}, nil
}

// Name satisfies orchestrator.ChatSource.
func (d *DiscordChat) Name() string {
	return "discord-chat"
}

// FetchLatest satisfies orchestrator.ChatSource: returns up to limit
// messages, newest-first, like the teacher's chzzk scraper's
// parsed_chats[:limit]. A fetch error yields an empty slice rather than
// propagating, matching the original's tolerate-and-continue polling loop.
func (d *DiscordChat) FetchLatest(ctx context.Context, limit int) ([]orchestrator.ChatLine, error) {
	messages, err := d.session.ChannelMessages(d.channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, nil
	}
	return linesFromMessages(messages), nil
}

// linesFromMessages converts Discord messages into chat lines, dropping bot
// authors so the orchestrator never treats its own (or another bot's)
// messages as audience input.
func linesFromMessages(messages []*discordgo.Message) []orchestrator.ChatLine {
	lines := make([]orchestrator.ChatLine, 0, len(messages))
	for _, m := range messages {
		if m.Author == nil || m.Author.Bot {
			continue
		}
		lines = append(lines, orchestrator.ChatLine{
			User:    m.Author.Username,
			Message: m.Content,
		})
	}
	return lines
}

// Close releases the underlying Discord session.
func (d *DiscordChat) Close() error {
	return d.session.Close()
}
