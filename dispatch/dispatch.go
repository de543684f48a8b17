// Package dispatch sequences the sends for one composed greeting: typing
// indicators, the main greeting, MOTD follow-ups, on-this-day content, and
// the mute-on-join explanation. Scheduling never blocks the caller; once a
// send is scheduled it fires regardless of later state, and one failure
// never cancels the rest.
package dispatch

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/onnwee/hellobirb/archive"
	"github.com/onnwee/hellobirb/greet"
	"github.com/onnwee/hellobirb/telemetry"
)

// Pacing constants, tuned so the bot reads as a (slightly excitable) human.
const (
	motdBaseDelay    = 10 * time.Second
	motdDefaultGap   = 30 * time.Second
	onThisDayMinWait = 45 * time.Second
	onThisDayExtra   = 60 // seconds of random extra wait
	onThisDayLead    = 2 * time.Second
	devOnThisDayWait = 5 * time.Second
)

// Sender is the message surface of the chat platform.
type Sender interface {
	Typing(channelID string) error
	Send(channelID, content string) error
	SendEmbed(channelID string, embed *archive.Embed) error
}

// Muter toggles a member's server-side mute.
type Muter interface {
	SetMute(guildID, memberID string, mute bool) error
}

// Request carries the per-join context the dispatcher needs.
type Request struct {
	ChannelID   string
	GuildID     string
	MemberID    string
	TypingDelay time.Duration
	// MuteOnJoin enables the mute-and-explain follow-up.
	MuteOnJoin bool
	// PreMuted means the member was already server-muted before joining;
	// the policy then leaves them alone entirely.
	PreMuted bool
	// OnMuted runs after a successful mute, before the explanation message.
	// The watcher uses it to remember which mutes are its own to undo.
	OnMuted func()
	// Short compresses the on-this-day wait for dev testing.
	Short bool
}

// task is one scheduled operation at a relative offset from dispatch time.
type task struct {
	after time.Duration
	name  string
	run   func() error
}

// Dispatcher schedules the sends for composed greetings.
type Dispatcher struct {
	Sender Sender
	Muter  Muter
	Rand   greet.Rand
}

// Dispatch plans and launches the send sequence for one payload. It returns
// immediately; the sequence runs on its own goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, p greet.Payload, req Request) {
	tasks := d.plan(ctx, p, req)
	go d.run(ctx, tasks)
}

// plan builds the task list with relative delays.
func (d *Dispatcher) plan(ctx context.Context, p greet.Payload, req Request) []task {
	log := telemetry.LoggerWithCorr(ctx)
	var tasks []task

	tasks = append(tasks, task{0, "typing", func() error {
		return d.Sender.Typing(req.ChannelID)
	}})
	tasks = append(tasks, task{req.TypingDelay, "greeting", func() error {
		if err := d.Sender.Send(req.ChannelID, p.Text); err != nil {
			return err
		}
		d.muteFollowup(ctx, req)
		return nil
	}})

	if len(p.Motd) > 0 {
		at := motdBaseDelay
		tasks = append(tasks, task{at, "motd typing", func() error {
			return d.Sender.Typing(req.ChannelID)
		}})
		for i, m := range p.Motd {
			gap := motdDefaultGap
			if m.HasDelay {
				gap = m.Delay
			}
			at += gap
			body := m.Body
			tasks = append(tasks, task{at, "motd", func() error {
				if err := d.Sender.Send(req.ChannelID, body); err != nil {
					return err
				}
				telemetry.MotdConsumed.Inc()
				return nil
			}})
			if i < len(p.Motd)-1 {
				nextGap := motdDefaultGap
				if next := p.Motd[i+1]; next.HasDelay {
					nextGap = next.Delay
				}
				tasks = append(tasks, task{at + nextGap*6/10, "motd typing", func() error {
					return d.Sender.Typing(req.ChannelID)
				}})
			}
		}
	}

	if p.OnThisDay != nil {
		wait := onThisDayMinWait + time.Duration(d.Rand.Intn(onThisDayExtra))*time.Second
		if req.Short {
			wait = devOnThisDayWait + time.Duration(d.Rand.Intn(3))*time.Second
		}
		content := p.OnThisDay
		tasks = append(tasks, task{wait, "on-this-day typing", func() error {
			return d.Sender.Typing(req.ChannelID)
		}})
		tasks = append(tasks, task{wait + onThisDayLead, "on-this-day", func() error {
			if content.IsEmbed() {
				return d.Sender.SendEmbed(req.ChannelID, content.Embed)
			}
			return d.Sender.Send(req.ChannelID, content.Plain)
		}})
	}

	log.Debug("planned dispatch", slog.Int("tasks", len(tasks)), slog.Int("motd", len(p.Motd)), slog.Bool("on_this_day", p.OnThisDay != nil))
	return tasks
}

// run executes tasks in offset order on the caller's goroutine. Failures are
// logged and counted; later tasks still run.
func (d *Dispatcher) run(ctx context.Context, tasks []task) {
	log := telemetry.LoggerWithCorr(ctx)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].after < tasks[j].after })
	elapsed := time.Duration(0)
	for _, t := range tasks {
		if wait := t.after - elapsed; wait > 0 {
			time.Sleep(wait)
			elapsed = t.after
		}
		if err := t.run(); err != nil {
			telemetry.SendsFailed.Inc()
			log.Error("scheduled send failed", slog.String("task", t.name), slog.Any("err", err))
			continue
		}
		telemetry.SendsSucceeded.Inc()
	}
}

// muteFollowup applies the mute-on-join policy after the main greeting:
// mute the member and explain, unless something else muted them first.
// Unmuting happens on the leave transition, handled by the watcher.
func (d *Dispatcher) muteFollowup(ctx context.Context, req Request) {
	if !req.MuteOnJoin || req.PreMuted || d.Muter == nil {
		return
	}
	log := telemetry.LoggerWithCorr(ctx)
	if err := d.Muter.SetMute(req.GuildID, req.MemberID, true); err != nil {
		log.Error("unable to mute member on join", slog.String("member", req.MemberID), slog.Any("err", err))
		return
	}
	if req.OnMuted != nil {
		req.OnMuted()
	}
	if err := d.Sender.Send(req.ChannelID, "I've muted your mic so the room stays cozy. I'll unmute you on your way out! :zipper_mouth:"); err != nil {
		log.Error("unable to send mute explanation", slog.Any("err", err))
	}
}
