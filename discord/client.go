// Package discord wraps the discordgo session behind the narrow surfaces the
// watcher and dispatcher use, and hosts the reaction easter eggs.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/hellobirb/archive"
	"github.com/onnwee/hellobirb/presence"
)

// Client wraps a discordgo session. It implements dispatch.Sender,
// dispatch.Muter, and presence.Platform.
type Client struct {
	Session *discordgo.Session
}

// New creates a session with the gateway intents the bot needs. The session
// is not opened; call Open on the returned client.
func New(token string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMessages
	return &Client{Session: s}, nil
}

func (c *Client) Open() error {
	if err := c.Session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.Session.Close()
}

// Typing emits a typing indicator in a channel.
func (c *Client) Typing(channelID string) error {
	return c.Session.ChannelTyping(channelID)
}

// Send posts a plain message.
func (c *Client) Send(channelID, content string) error {
	_, err := c.Session.ChannelMessageSend(channelID, content)
	return err
}

// SendEmbed posts an archive embed.
func (c *Client) SendEmbed(channelID string, embed *archive.Embed) error {
	_, err := c.Session.ChannelMessageSendEmbed(channelID, toMessageEmbed(embed))
	return err
}

func toMessageEmbed(e *archive.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       int(e.Color),
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Image != nil {
		out.Image = &discordgo.MessageEmbedImage{URL: e.Image.URL}
	}
	return out
}

func (c *Client) GrantRole(guildID, memberID, roleID string) error {
	return c.Session.GuildMemberRoleAdd(guildID, memberID, roleID)
}

func (c *Client) RevokeRole(guildID, memberID, roleID string) error {
	return c.Session.GuildMemberRoleRemove(guildID, memberID, roleID)
}

func (c *Client) SetMute(guildID, memberID string, mute bool) error {
	return c.Session.GuildMemberMute(guildID, memberID, mute)
}

// VideoCount counts members with video active in a voice channel, from the
// session's state cache.
func (c *Client) VideoCount(guildID, channelID string) (int, error) {
	guild, err := c.Session.State.Guild(guildID)
	if err != nil {
		return 0, fmt.Errorf("looking up guild %s: %w", guildID, err)
	}
	n := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID && vs.SelfVideo {
			n++
		}
	}
	return n, nil
}

// RegisterVoiceWatcher adapts discordgo voice-state updates into watcher
// events.
func (c *Client) RegisterVoiceWatcher(w *presence.Watcher) {
	c.Session.AddHandler(func(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
		ev := presence.Event{
			GuildID:  vsu.GuildID,
			MemberID: vsu.UserID,
			Mention:  "<@" + vsu.UserID + ">",
			After: presence.VoiceState{
				ChannelID:   vsu.ChannelID,
				SelfVideo:   vsu.SelfVideo,
				ServerMuted: vsu.Mute,
			},
		}
		if before := vsu.BeforeUpdate; before != nil {
			ev.Before = presence.VoiceState{
				ChannelID:   before.ChannelID,
				SelfVideo:   before.SelfVideo,
				ServerMuted: before.Mute,
			}
		}
		w.HandleVoiceUpdate(ev)
	})
}
