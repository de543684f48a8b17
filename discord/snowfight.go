package discord

import (
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// The snowball minigame bot posts hit announcements as embeds. This easter
// egg makes the greeter retaliate when it gets hit, laugh at other targets,
// and answer trumpet noises in kind.

const (
	snowballBotID  = "914971233379045406"
	hitEmbedColor  = 6356832
	laughOdds      = 0.2
	retaliateColor = 0xFF2A00
	warCryColor    = 0xFFD700
)

// Some targets are funnier than others.
var specialLaughOdds = map[string]float64{
	"<@622099233176158218>": 0.4,
	"<@250825783755407373>": 0.4,
}

var retaliationGifs = []string{
	"https://media2.giphy.com/media/xUySTqYAa9n6awCiSk/giphy.gif",
	"https://c.tenor.com/DrU8PT2Qj2oAAAAC/kill-it-with-fire-fire.gif",
	"https://media1.giphy.com/media/9GIF5KfVkGEllkQyz9/giphy.gif",
	"https://i.imgur.com/DIeqX40.gif",
	"https://media1.giphy.com/media/xUySTZhLpepqXCl5Dy/giphy.gif",
	"https://c.tenor.com/48IYu9PI9wMAAAAC/man-throw.gif",
	"https://media0.giphy.com/media/lF5bH6enH9F1m/giphy.gif",
	"https://media2.giphy.com/media/xIytx7kHpq74c/giphy.gif",
	"https://media4.giphy.com/media/OgRsVkXWDLbXi/giphy.gif",
	"https://media1.giphy.com/media/rhYsUMhhd6yA0/giphy.gif",
}

var retaliationTitles = []string{
	"vengeance :knife:",
	"doom :boom:",
	"your demise :skull:",
	"you poor fool :pensive:",
}

var dootDootGifs = []string{
	"https://c.tenor.com/HcnatKp3NkkAAAAC/trumpet-middlefinger.gif",
	"https://c.tenor.com/gYGHTkX9PX0AAAAd/louis-armstrong.gif",
	"https://c.tenor.com/6YLyrvVA5X4AAAAd/muppets-muppet-show.gif",
	"https://c.tenor.com/bSLC9u5P5CUAAAAC/m%C3%BAsica-instrument.gif",
	"https://c.tenor.com/o9RZrhOOFj8AAAAC/spongebob-sweet-victory.gif",
	"https://c.tenor.com/ySRwF-YfeHUAAAAC/basketball-wives-woot-woot.gif",
}

var mentionPattern = regexp.MustCompile(`<@\d+>`)

type snowReaction int

const (
	snowIgnore snowReaction = iota
	snowRetaliate
	snowLaugh
	snowWarCry
)

// laughProbability returns the odds of laughing at a hit on target.
func laughProbability(target string) float64 {
	if p, ok := specialLaughOdds[target]; ok {
		return p
	}
	return laughOdds
}

// classifyHit decides how to react to one snowball-hit embed. A hit on this
// bot always retaliates; otherwise the laugh draw (roll is uniform [0,1))
// comes first and a "doot doot" taunt in the embed earns a war cry.
func classifyHit(description, botMention, target string, roll float64) snowReaction {
	if strings.Contains(description, botMention) {
		return snowRetaliate
	}
	if target == "" {
		return snowIgnore
	}
	if roll < laughProbability(target) {
		return snowLaugh
	}
	if strings.Contains(description, "doot doot") {
		return snowWarCry
	}
	return snowIgnore
}

func retaliationEmbed(thrower string) *discordgo.MessageEmbed {
	descriptions := []string{
		thrower + ", prepare to be hit!",
		thrower + ", prepare to meet your doom!",
		thrower + ", prepare to be pelted into the infinite!",
		"You're mine, " + thrower + "!",
	}
	return &discordgo.MessageEmbed{
		Title:       retaliationTitles[rand.Intn(len(retaliationTitles))],
		Description: descriptions[rand.Intn(len(descriptions))],
		Color:       retaliateColor,
		Image:       &discordgo.MessageEmbedImage{URL: retaliationGifs[rand.Intn(len(retaliationGifs))]},
	}
}

func warCryEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "The trumpets of war :trumpet:",
		Description: "**DOOT DOOT, MOFOS!**",
		Color:       warCryColor,
		Image:       &discordgo.MessageEmbedImage{URL: dootDootGifs[rand.Intn(len(dootDootGifs))]},
	}
}

func tauntFor(thrower, target string) string {
	taunts := []string{
		"Haha, " + thrower + " hit " + target + " with a snowball! :joy:",
		target + " totally had that coming. Good job " + thrower + "! :raised_hands:",
		"Bwahahaha! You can barely recognize " + target + " with all that snow on their face! :joy:",
		"Oh snap! " + thrower + " totally _owned_ " + target + " with that one! :grin:",
		target + " looks much nicer covered in snow, don't you think? :bird:",
	}
	return taunts[rand.Intn(len(taunts))]
}

// RegisterSnowfight installs the snowball reaction handler for one guild.
func (c *Client) RegisterSnowfight(guildID string) {
	c.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		c.snowfightReact(s, m, guildID)
	})
}

func (c *Client) snowfightReact(s *discordgo.Session, m *discordgo.MessageCreate, guildID string) {
	if m.GuildID != guildID || m.Author.ID != snowballBotID || len(m.Embeds) == 0 {
		return
	}
	embed := m.Embeds[0]
	if embed.Color != hitEmbedColor {
		return
	}

	thrower := ""
	if m.Interaction != nil && m.Interaction.User != nil {
		thrower = m.Interaction.User.Mention()
	}
	botMention := "<@" + s.State.User.ID + ">"
	target := mentionPattern.FindString(embed.Description)

	switch classifyHit(embed.Description, botMention, target, rand.Float64()) {
	case snowRetaliate:
		slog.Info("snowball hit; retaliating", slog.String("thrower", thrower))
		c.sendEmbedLater(m.ChannelID, retaliationEmbed(thrower))
	case snowLaugh:
		slog.Info("laughing at snowball target", slog.String("target", target))
		c.sendLater(m.ChannelID, tauntFor(thrower, target))
	case snowWarCry:
		slog.Info("offering doot doot war cry after snowball hit")
		c.sendEmbedLater(m.ChannelID, warCryEmbed())
	}
}

// sendLater mimics a human pause: typing first, message a few seconds on.
func (c *Client) sendLater(channelID, content string) {
	time.AfterFunc(2*time.Second, func() {
		if err := c.Typing(channelID); err != nil {
			slog.Warn("snowfight typing failed", slog.Any("err", err))
		}
	})
	time.AfterFunc(5*time.Second, func() {
		if err := c.Send(channelID, content); err != nil {
			slog.Warn("snowfight send failed", slog.Any("err", err))
		}
	})
}

func (c *Client) sendEmbedLater(channelID string, embed *discordgo.MessageEmbed) {
	time.AfterFunc(2*time.Second, func() {
		if err := c.Typing(channelID); err != nil {
			slog.Warn("snowfight typing failed", slog.Any("err", err))
		}
	})
	time.AfterFunc(5*time.Second, func() {
		if _, err := c.Session.ChannelMessageSendEmbed(channelID, embed); err != nil {
			slog.Warn("snowfight retaliation failed", slog.Any("err", err))
		}
	})
}
