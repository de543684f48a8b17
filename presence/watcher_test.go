package presence

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/hellobirb/archive"
	"github.com/onnwee/hellobirb/config"
	"github.com/onnwee/hellobirb/dispatch"
	"github.com/onnwee/hellobirb/greet"
	"github.com/onnwee/hellobirb/telemetry"
	"github.com/onnwee/hellobirb/weather"
)

type fakePlatform struct {
	mu       sync.Mutex
	granted  []string
	revoked  []string
	muted    map[string]bool
	muteErr  error
	videoCnt int
}

func (f *fakePlatform) GrantRole(_, memberID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = append(f.granted, memberID)
	return nil
}

func (f *fakePlatform) RevokeRole(_, memberID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, memberID)
	return nil
}

func (f *fakePlatform) SetMute(_, memberID string, mute bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.muteErr != nil {
		return f.muteErr
	}
	if f.muted == nil {
		f.muted = make(map[string]bool)
	}
	f.muted[memberID] = mute
	return nil
}

func (f *fakePlatform) setMuteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muteErr = err
}

func (f *fakePlatform) VideoCount(_, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.videoCnt, nil
}

type fakeSender struct {
	sent chan string
}

func (f *fakeSender) Typing(string) error { return nil }
func (f *fakeSender) Send(_, content string) error {
	f.sent <- content
	return nil
}
func (f *fakeSender) SendEmbed(string, *archive.Embed) error { return nil }

type countingWeather struct {
	mu    sync.Mutex
	calls int
}

func (c *countingWeather) Forecast(context.Context, string) (weather.Forecast, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return weather.Forecast{For: "today", Text: "Sunny :sun_with_face:"}, nil
}

func (c *countingWeather) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type rngStub struct{}

func (rngStub) Intn(n int) int   { return n - 1 }
func (rngStub) Float64() float64 { return 1 }

func newTestWatcher(t *testing.T) (*Watcher, *fakePlatform, *fakeSender, *countingWeather) {
	t.Helper()
	telemetry.Init()
	cfg := &config.Config{
		WatchChannelID:    "watch",
		AnnounceChannelID: "announce",
		PresenceRoleID:    "role",
		Location:          time.UTC,
		GoodToSeeYouDays:  7,
	}
	cw := &countingWeather{}
	composer := &greet.Composer{
		Weather: cw,
		Rand:    rngStub{},
		Opts: greet.Options{
			GoodToSeeYouDays: 7,
			WeatherLocation:  "TOP/32,81",
			WeatherFreshness: 6 * time.Hour,
		},
	}
	sender := &fakeSender{sent: make(chan string, 8)}
	platform := &fakePlatform{videoCnt: 1}
	dispatcher := &dispatch.Dispatcher{Sender: sender, Rand: rngStub{}}
	store := Open(filepath.Join(t.TempDir(), "last-seen.json"))
	w := NewWatcher(store, platform, composer, dispatcher, cfg)
	t.Cleanup(store.Flush)
	return w, platform, sender, cw
}

func joinEvent(member string) Event {
	return Event{
		GuildID:  "guild",
		MemberID: member,
		Mention:  "<@" + member + ">",
		Before:   VoiceState{ChannelID: "", SelfVideo: false},
		After:    VoiceState{ChannelID: "watch", SelfVideo: true},
	}
}

func leaveEvent(member string) Event {
	ev := joinEvent(member)
	ev.Before, ev.After = ev.After, ev.Before
	return ev
}

func waitSend(t *testing.T, s *fakeSender) string {
	t.Helper()
	select {
	case msg := <-s.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a send")
		return ""
	}
}

func TestClassification(t *testing.T) {
	w, platform, _, _ := newTestWatcher(t)

	// Video toggled on outside the watched channel: ignored.
	w.HandleVoiceUpdate(Event{
		MemberID: "x",
		Before:   VoiceState{ChannelID: "other", SelfVideo: false},
		After:    VoiceState{ChannelID: "other", SelfVideo: true},
	})
	// Moving between non-watched channels with video: ignored.
	w.HandleVoiceUpdate(Event{
		MemberID: "x",
		Before:   VoiceState{ChannelID: "other", SelfVideo: true},
		After:    VoiceState{ChannelID: "other2", SelfVideo: true},
	})
	if len(platform.granted) != 0 || len(platform.revoked) != 0 {
		t.Errorf("ignored transitions must not touch roles: %v %v", platform.granted, platform.revoked)
	}

	w.HandleVoiceUpdate(joinEvent("alice"))
	if len(platform.granted) != 1 || platform.granted[0] != "alice" {
		t.Errorf("join should grant presence role, got %v", platform.granted)
	}

	w.HandleVoiceUpdate(leaveEvent("alice"))
	if len(platform.revoked) != 1 || platform.revoked[0] != "alice" {
		t.Errorf("leave should revoke presence role, got %v", platform.revoked)
	}
}

func TestSameDayDedupShortCircuits(t *testing.T) {
	w, _, sender, cw := newTestWatcher(t)

	w.HandleVoiceUpdate(joinEvent("alice"))
	waitSend(t, sender)
	if cw.count() != 1 {
		t.Fatalf("first join should fetch weather once, got %d", cw.count())
	}

	// Second join the same day: no composition, so no weather fetch and no
	// send.
	w.HandleVoiceUpdate(joinEvent("alice"))
	time.Sleep(100 * time.Millisecond)
	if cw.count() != 1 {
		t.Errorf("deduped join must not fetch weather, got %d calls", cw.count())
	}
	select {
	case msg := <-sender.sent:
		t.Errorf("deduped join must not send, got %q", msg)
	default:
	}

	// The seen record still stands.
	if _, ok := w.Store.Get("alice"); !ok {
		t.Errorf("dedup must not roll back the seen record")
	}
}

func TestDevAlwaysGreetBypassesDedup(t *testing.T) {
	w, _, sender, _ := newTestWatcher(t)
	w.Cfg.Dev.AlwaysGreet = true

	w.HandleVoiceUpdate(joinEvent("alice"))
	waitSend(t, sender)
	w.HandleVoiceUpdate(joinEvent("alice"))
	waitSend(t, sender)
}

func TestMuteOnJoinUnmutesOnLeave(t *testing.T) {
	w, platform, sender, _ := newTestWatcher(t)
	w.Cfg.MuteOnJoin = true
	w.Dispatcher.Muter = platform

	w.HandleVoiceUpdate(joinEvent("alice"))
	waitSend(t, sender) // greeting
	waitSend(t, sender) // mute explanation
	platform.mu.Lock()
	muted := platform.muted["alice"]
	platform.mu.Unlock()
	if !muted {
		t.Fatalf("expected alice muted after greeting")
	}

	w.HandleVoiceUpdate(leaveEvent("alice"))
	platform.mu.Lock()
	muted = platform.muted["alice"]
	platform.mu.Unlock()
	if muted {
		t.Errorf("expected alice unmuted on leave")
	}
}

func TestFailedMuteSkipsUnmuteOnLeave(t *testing.T) {
	w, platform, sender, _ := newTestWatcher(t)
	w.Cfg.MuteOnJoin = true
	w.Dispatcher.Muter = platform
	platform.setMuteErr(fmt.Errorf("missing permission"))

	w.HandleVoiceUpdate(joinEvent("alice"))
	waitSend(t, sender) // greeting; the explanation never goes out
	time.Sleep(100 * time.Millisecond)

	// If the failed mute had been flagged anyway, the leave path would now
	// record a spurious unmute.
	platform.setMuteErr(nil)
	w.HandleVoiceUpdate(leaveEvent("alice"))
	platform.mu.Lock()
	_, touched := platform.muted["alice"]
	platform.mu.Unlock()
	if touched {
		t.Errorf("leave must not unmute a member the failed mute never muted")
	}
}

func TestPreMutedMemberLeftAlone(t *testing.T) {
	w, platform, sender, _ := newTestWatcher(t)
	w.Cfg.MuteOnJoin = true
	w.Dispatcher.Muter = platform

	ev := joinEvent("bob")
	ev.After.ServerMuted = true
	w.HandleVoiceUpdate(ev)
	waitSend(t, sender) // greeting only
	time.Sleep(100 * time.Millisecond)
	platform.mu.Lock()
	_, touched := platform.muted["bob"]
	platform.mu.Unlock()
	if touched {
		t.Errorf("pre-muted member must not be touched by the mute policy")
	}

	leave := leaveEvent("bob")
	leave.Before.ServerMuted = true
	w.HandleVoiceUpdate(leave)
	platform.mu.Lock()
	_, touched = platform.muted["bob"]
	platform.mu.Unlock()
	if touched {
		t.Errorf("leave must not unmute a member this bot never muted")
	}
}
