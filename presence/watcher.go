package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/hellobirb/config"
	"github.com/onnwee/hellobirb/dispatch"
	"github.com/onnwee/hellobirb/greet"
	"github.com/onnwee/hellobirb/telemetry"
)

// VoiceState is the slice of a member voice state the watcher cares about.
type VoiceState struct {
	ChannelID string
	SelfVideo bool
	// ServerMuted is the server-side mute flag, needed to decide whether the
	// mute-on-join policy may touch the member.
	ServerMuted bool
}

// Event is one before/after voice-state pair for a member.
type Event struct {
	GuildID  string
	MemberID string
	Mention  string
	Before   VoiceState
	After    VoiceState
}

// Platform is the slice of the chat platform the watcher drives directly.
// All calls are fire-and-forget; failures are logged and dropped.
type Platform interface {
	GrantRole(guildID, memberID, roleID string) error
	RevokeRole(guildID, memberID, roleID string) error
	SetMute(guildID, memberID string, mute bool) error
	// VideoCount counts members with video active in a voice channel.
	VideoCount(guildID, channelID string) (int, error)
}

// Watcher classifies voice-state transitions against the watched channel and
// drives the greeting pipeline. Events are processed one at a time; the
// composer and dispatcher run on their own goroutines.
type Watcher struct {
	Store      *Store
	Platform   Platform
	Composer   *greet.Composer
	Dispatcher *dispatch.Dispatcher
	Cfg        *config.Config

	mu        sync.Mutex
	mutedByUs map[string]bool
}

func NewWatcher(store *Store, platform Platform, composer *greet.Composer, dispatcher *dispatch.Dispatcher, cfg *config.Config) *Watcher {
	return &Watcher{
		Store:      store,
		Platform:   platform,
		Composer:   composer,
		Dispatcher: dispatcher,
		Cfg:        cfg,
		mutedByUs:  make(map[string]bool),
	}
}

// watched reports whether a state counts as "in the watched channel with
// video on".
func (w *Watcher) watched(s VoiceState) bool {
	return s.SelfVideo && s.ChannelID == w.Cfg.WatchChannelID
}

// HandleVoiceUpdate classifies one before/after pair and reacts. Transitions
// that neither enter nor leave the watched-with-video state are ignored.
func (w *Watcher) HandleVoiceUpdate(ev Event) {
	joined := w.watched(ev.After) && !w.watched(ev.Before)
	left := w.watched(ev.Before) && !w.watched(ev.After)
	switch {
	case joined:
		w.handleJoin(ev)
	case left:
		w.handleLeave(ev)
	}
}

func (w *Watcher) handleJoin(ev Event) {
	ctx := telemetry.WithCorrelation(context.Background(), uuid.New().String())
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("member", ev.MemberID))
	telemetry.JoinsDetected.Inc()
	log.Info("member joined watched channel with video")

	if w.Cfg.PresenceRoleID != "" {
		if err := w.Platform.GrantRole(ev.GuildID, ev.MemberID, w.Cfg.PresenceRoleID); err != nil {
			log.Warn("unable to grant presence role", slog.Any("err", err))
		}
	}

	now := time.Now()
	prevSeen, prevGreeting := w.Store.RecordSeen(ev.MemberID, now)
	telemetry.SetTrackedMembers(w.Store.Len())

	// Same-day dedup: the seen record above stands either way.
	local := now.In(w.Cfg.Location)
	if prevSeen != nil && !w.Cfg.Dev.AlwaysGreet && greet.SameDay(prevSeen.In(w.Cfg.Location), local) {
		telemetry.GreetingsDeduped.Inc()
		log.Info("refusing to greet member more than once today")
		return
	}

	occupancy, err := w.Platform.VideoCount(ev.GuildID, w.Cfg.WatchChannelID)
	if err != nil {
		log.Warn("unable to count channel occupancy", slog.Any("err", err))
		occupancy = 1
	}

	req := greet.Request{
		MemberID:     ev.MemberID,
		Mention:      ev.Mention,
		Occupancy:    occupancy,
		Now:          local,
		LastSeen:     prevSeen,
		LastGreeting: prevGreeting,
	}
	preMuted := ev.After.ServerMuted
	go w.greeting(ctx, req, ev, preMuted)
}

// greeting composes and dispatches off the event goroutine, so a slow
// weather fetch blocks only this one pipeline.
func (w *Watcher) greeting(ctx context.Context, req greet.Request, ev Event, preMuted bool) {
	ctx, span := telemetry.StartSpan(ctx, "hellobirb", "greeting")
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx)

	start := time.Now()
	payload := w.Composer.Compose(ctx, req)
	if telemetry.ComposeDuration != nil {
		telemetry.ComposeDuration.Observe(time.Since(start).Seconds())
	}
	telemetry.GreetingsComposed.Inc()

	typingDelay := w.Cfg.TypingDelay
	if w.Cfg.Dev.AlwaysGreet {
		typingDelay = 0
	}
	w.Dispatcher.Dispatch(ctx, payload, dispatch.Request{
		ChannelID:   w.Cfg.AnnounceChannelID,
		GuildID:     ev.GuildID,
		MemberID:    ev.MemberID,
		TypingDelay: typingDelay,
		MuteOnJoin:  w.Cfg.MuteOnJoin,
		PreMuted:    preMuted,
		// Flag the mute only once it actually lands, so a failed mute
		// doesn't leave a stray unmute for the leave path.
		OnMuted: func() {
			w.mu.Lock()
			w.mutedByUs[ev.MemberID] = true
			w.mu.Unlock()
		},
		Short: w.Cfg.Dev.AlwaysFirst,
	})
	log.Info("greeting dispatched", slog.Int("motd", len(payload.Motd)), slog.Bool("on_this_day", payload.OnThisDay != nil))
}

func (w *Watcher) handleLeave(ev Event) {
	log := slog.Default().With(slog.String("member", ev.MemberID))
	log.Info("member left watched channel")

	if w.Cfg.PresenceRoleID != "" {
		if err := w.Platform.RevokeRole(ev.GuildID, ev.MemberID, w.Cfg.PresenceRoleID); err != nil {
			log.Warn("unable to revoke presence role", slog.Any("err", err))
		}
	}

	w.mu.Lock()
	mutedByUs := w.mutedByUs[ev.MemberID]
	delete(w.mutedByUs, ev.MemberID)
	w.mu.Unlock()
	// Only undo mutes this bot applied; a member muted by another mechanism
	// before joining stays muted.
	if mutedByUs {
		if err := w.Platform.SetMute(ev.GuildID, ev.MemberID, false); err != nil {
			log.Warn("unable to unmute member on leave", slog.Any("err", err))
		}
	}
}
