// Package greet composes context-sensitive greetings for members joining the
// watched voice channel. Composition is deterministic apart from explicitly
// randomized draws; callers needing reproducibility inject the random source.
package greet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/hellobirb/archive"
	"github.com/onnwee/hellobirb/config"
	"github.com/onnwee/hellobirb/telemetry"
	"github.com/onnwee/hellobirb/weather"
)

// partyThreshold is the channel occupancy that counts as "enough for a party".
const partyThreshold = 9

// Rand is the injectable random source. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// Forecaster fetches the current forecast for a configured location.
type Forecaster interface {
	Forecast(ctx context.Context, location string) (weather.Forecast, error)
}

// Archive surfaces pending MOTD entries and date-keyed on-this-day content.
type Archive interface {
	ListPending() ([]archive.Entry, error)
	Archive(archive.Entry) error
	OnThisDay(t time.Time) (*archive.OnThisDay, error)
}

// Options are the composition knobs, fixed at startup.
type Options struct {
	GoodToSeeYouDays      int
	GiftProbability       float64
	ExtraGiftProbability  float64
	MondayMorningAddendum string
	WeatherLocation       string
	WeatherFreshness      time.Duration
	Dev                   config.DevFlags
}

// Request describes one qualifying join event.
type Request struct {
	MemberID string
	// Mention is the member's mention token, e.g. "<@123>".
	Mention string
	// Occupancy counts members with video active in the watched channel.
	Occupancy int
	// Now is the event time in the bot's configured time zone.
	Now time.Time
	// LastSeen is the member's previous last-seen time, nil for first meeting.
	LastSeen *time.Time
	// LastGreeting is the previous global greeting time, nil if none.
	LastGreeting *time.Time
}

// MotdMessage is one follow-up message with an optional explicit send delay.
type MotdMessage struct {
	Body     string
	Delay    time.Duration
	HasDelay bool
}

// Payload is a composed greeting plus its side artifacts.
type Payload struct {
	Text      string
	Motd      []MotdMessage
	OnThisDay *archive.OnThisDay
}

// Composer turns join events into greeting payloads.
type Composer struct {
	Weather Forecaster
	Archive Archive
	Rand    Rand
	Opts    Options
}

// Compose runs the full decision pipeline for one join event. External
// lookups (weather, archive) degrade to absent content on failure; Compose
// itself never fails.
func (c *Composer) Compose(ctx context.Context, req Request) Payload {
	var clauses []string
	add := func(s string) { clauses = append(clauses, s) }

	add(c.salutation(req.Now, req.Mention))

	if s := dateGreeting(req.Now); s != "" {
		add(s)
	}

	if s := c.reunion(req.Now, req.LastSeen); s != "" {
		add(s)
	}

	if req.LastGreeting != nil && daysBetween(*req.LastGreeting, req.Now) >= 2 {
		add("It's been a little quiet around here lately, so I'm extra glad you stopped by! :two_hearts:")
	}

	if s := occupancyClause(req.Occupancy); s != "" {
		add(s)
	}

	firstToday := c.firstGreetingOfDay(req.Now, req.LastGreeting)
	if firstToday && (req.Occupancy == 1 || c.Opts.Dev.AlwaysFirst) {
		add(fmt.Sprintf("You're the first one here today! Have a %s for being an early bird.", c.pick(firstHereAwards)))
	}

	payload := Payload{}
	if firstToday {
		payload.Motd = c.consumeMotd()
		payload.OnThisDay = c.onThisDay(req.Now)
	}

	if s := c.giftClause(strings.Join(clauses, " ")); s != "" {
		add(s)
	}

	paragraphs := []string{strings.Join(clauses, " ")}

	if req.Now.Weekday() == time.Monday {
		prompt := c.pick(weekendPrompts)
		if c.Opts.MondayMorningAddendum != "" && isMorning(req.Now) {
			prompt = c.Opts.MondayMorningAddendum + " " + prompt
		}
		paragraphs = append(paragraphs, prompt)
	}

	if s := c.weatherParagraph(ctx, req); s != "" {
		paragraphs = append(paragraphs, s)
	}

	// Standing health reminder, roughly two days in seven.
	if c.Rand.Intn(7) < 2 {
		paragraphs = append(paragraphs, "Remember to drink some water today! :potable_water:")
	}

	payload.Text = strings.Join(paragraphs, "\n\n")
	return payload
}

// salutation maps the local hour to a time-of-day bucket.
func (c *Composer) salutation(now time.Time, mention string) string {
	hour := now.Hour()
	switch {
	case hour < 5:
		return fmt.Sprintf("You're burning the midnight oil, %s! :crescent_moon:", mention)
	case hour < 8:
		return fmt.Sprintf("Good morning, %s! You're up bright and early! :sunrise:", mention)
	case hour < 12:
		return fmt.Sprintf("Good morning, %s! :sun_with_face:", mention)
	case hour < 17:
		return fmt.Sprintf("Good afternoon, %s! :butterfly:", mention)
	case hour < 20:
		return fmt.Sprintf("Good evening, %s! :city_dusk:", mention)
	default:
		return fmt.Sprintf("Good evening, %s! :night_with_stars:", mention)
	}
}

// dateGreeting returns the Friday and/or first-of-month clause, empty when
// neither applies. The Friday half is suppressed late in the evening.
func dateGreeting(now time.Time) string {
	friday := now.Weekday() == time.Friday && now.Hour() < 20
	firstOfMonth := now.Day() == 1
	month := now.Month().String()
	switch {
	case friday && firstOfMonth:
		return fmt.Sprintf("Happy Friday, and happy %s! :partying_face:", month)
	case friday:
		return "Happy Friday! :partying_face:"
	case firstOfMonth:
		return fmt.Sprintf("Happy %s! :calendar:", month)
	}
	return ""
}

// reunion returns the first-meeting clause for unknown members, or the
// good-to-see-you clause (escalated after twice the configured gap) for
// returning ones. The two are mutually exclusive.
func (c *Composer) reunion(now time.Time, lastSeen *time.Time) string {
	if lastSeen == nil {
		return "I don't believe we've met before. It's so nice to meet you! :hatching_chick:"
	}
	threshold := c.Opts.GoodToSeeYouDays
	if c.Opts.Dev.AlwaysGoodToSeeYou {
		threshold = 0
	}
	days := daysBetween(*lastSeen, now)
	switch {
	case days >= 2*threshold && (threshold > 0 || c.Opts.Dev.AlwaysGoodToSeeYou):
		return "It's so good to see you again! I've missed you! :pleading_face:"
	case days >= threshold:
		return "It's so good to see you again!"
	}
	return ""
}

// occupancyClause returns the graduated headcount clause.
func occupancyClause(n int) string {
	switch {
	case n == partyThreshold:
		return "That makes enough of you for a party! :tada:"
	case n >= partyThreshold-2 && n < partyThreshold:
		return fmt.Sprintf("Only %d more needed for a party!", partyThreshold-n)
	case n >= partyThreshold/2:
		return "We're over halfway to a party!"
	}
	return ""
}

// firstGreetingOfDay reports whether no greeting has gone out yet today in
// the bot's time zone. Keyed off the global last-greeting timestamp only.
func (c *Composer) firstGreetingOfDay(now time.Time, lastGreeting *time.Time) bool {
	if c.Opts.Dev.AlwaysFirst {
		return true
	}
	if lastGreeting == nil {
		return true
	}
	return !SameDay(lastGreeting.In(now.Location()), now)
}

// giftClause draws whether to gift, how many, and which. Items whose rendered
// text already appears in the greeting so far are redrawn; the retry loop is
// bounded by the catalog size so it always terminates.
func (c *Composer) giftClause(soFar string) string {
	p := c.Opts.GiftProbability
	if c.Opts.Dev.AlwaysGift {
		p = 1
	}
	if c.Rand.Float64() >= p {
		return ""
	}
	count := 1
	pExtra := c.Opts.ExtraGiftProbability
	if c.Opts.Dev.AlwaysExtraGift {
		pExtra = 1
	}
	if c.Rand.Float64() < pExtra {
		count = 2
	}

	var picked []string
	for len(picked) < count {
		gift := ""
		for attempt := 0; attempt < len(gifts); attempt++ {
			candidate := gifts[c.Rand.Intn(len(gifts))]
			if !strings.Contains(soFar, candidate) {
				gift = candidate
				break
			}
		}
		if gift == "" {
			break
		}
		picked = append(picked, gift)
		soFar += " " + gift
	}
	if len(picked) == 0 {
		return ""
	}

	clause := "I brought you " + strings.Join(picked, " and also ") + "."
	if len(picked) >= 2 {
		clause += " " + c.pick(affectionClosers)
	}
	return clause
}

// weatherParagraph fetches the forecast when a location is configured and
// the last report has gone stale. Failures are logged and the paragraph is
// simply omitted.
func (c *Composer) weatherParagraph(ctx context.Context, req Request) string {
	if c.Opts.WeatherLocation == "" || c.Weather == nil {
		return ""
	}
	fresh := req.LastGreeting != nil && req.Now.Sub(req.LastGreeting.In(req.Now.Location())) < c.Opts.WeatherFreshness
	if fresh && !c.Opts.Dev.AlwaysWeather {
		return ""
	}
	f, err := c.Weather.Forecast(ctx, c.Opts.WeatherLocation)
	if err != nil {
		slog.Warn("weather forecast unavailable", slog.Any("err", err))
		if telemetry.WeatherFetchFailed != nil {
			telemetry.WeatherFetchFailed.Inc()
		}
		return ""
	}
	return fmt.Sprintf("The forecast for %s: %s", f.For, f.Text)
}

// consumeMotd reads all pending MOTD entries and archives each one, unless
// the alwaysFirst override is set (so repeated local testing doesn't eat the
// files). Errors degrade to "no MOTD".
func (c *Composer) consumeMotd() []MotdMessage {
	if c.Archive == nil {
		return nil
	}
	entries, err := c.Archive.ListPending()
	if err != nil {
		slog.Warn("unable to list motd entries", slog.Any("err", err))
		return nil
	}
	msgs := make([]MotdMessage, 0, len(entries))
	for _, e := range entries {
		body, delay, hasDelay := archive.ParseDelayDirective(e.Body)
		msgs = append(msgs, MotdMessage{Body: body, Delay: delay, HasDelay: hasDelay})
		if c.Opts.Dev.AlwaysFirst {
			continue
		}
		if err := c.Archive.Archive(e); err != nil {
			slog.Warn("unable to archive motd entry", slog.String("path", e.Path), slog.Any("err", err))
		}
	}
	return msgs
}

func (c *Composer) onThisDay(now time.Time) *archive.OnThisDay {
	if c.Archive == nil {
		return nil
	}
	content, err := c.Archive.OnThisDay(now)
	if err != nil {
		slog.Warn("unable to read on-this-day content", slog.Any("err", err))
		return nil
	}
	return content
}

// pick draws a uniform choice from options.
func (c *Composer) pick(options []string) string {
	return options[c.Rand.Intn(len(options))]
}

func isMorning(t time.Time) bool {
	return t.Hour() >= 5 && t.Hour() < 12
}

// daysBetween counts whole 24-hour periods from earlier to later.
func daysBetween(earlier, later time.Time) int {
	if later.Before(earlier) {
		return 0
	}
	return int(later.Sub(earlier).Hours() / 24)
}

// SameDay reports whether a and b fall on the same calendar day. Both must
// already be in the relevant time zone.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
