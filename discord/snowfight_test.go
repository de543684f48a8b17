package discord

import (
	"slices"
	"strings"
	"testing"
)

const (
	botMention    = "<@891908176356712459>"
	specialTarget = "<@622099233176158218>"
	plainTarget   = "<@111111111111111111>"
)

func TestLaughProbability(t *testing.T) {
	if got := laughProbability(specialTarget); got != 0.4 {
		t.Errorf("special target odds = %v, want 0.4", got)
	}
	if got := laughProbability(plainTarget); got != 0.2 {
		t.Errorf("default odds = %v, want 0.2", got)
	}
}

func TestClassifyHit(t *testing.T) {
	cases := []struct {
		name        string
		description string
		target      string
		roll        float64
		want        snowReaction
	}{
		{"bot hit retaliates", "doot doot " + botMention + " got hit!", botMention, 0.99, snowRetaliate},
		{"no target ignored", "someone got hit", "", 0, snowIgnore},
		{"default target laughs under odds", plainTarget + " got hit!", plainTarget, 0.1, snowLaugh},
		{"default target quiet over odds", plainTarget + " got hit!", plainTarget, 0.3, snowIgnore},
		{"special target laughs at higher odds", specialTarget + " got hit!", specialTarget, 0.3, snowLaugh},
		{"doot doot earns war cry", "doot doot! " + plainTarget + " got hit!", plainTarget, 0.9, snowWarCry},
		{"laugh wins over war cry", "doot doot! " + plainTarget + " got hit!", plainTarget, 0.1, snowLaugh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyHit(tc.description, botMention, tc.target, tc.roll)
			if got != tc.want {
				t.Errorf("classifyHit() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRetaliationEmbed(t *testing.T) {
	e := retaliationEmbed("<@42>")
	if !slices.Contains(retaliationTitles, e.Title) {
		t.Errorf("title %q not in catalog", e.Title)
	}
	if !strings.Contains(e.Description, "<@42>") {
		t.Errorf("description %q missing thrower mention", e.Description)
	}
	if e.Color != 0xFF2A00 {
		t.Errorf("color = %#x, want FF2A00", e.Color)
	}
	if e.Image == nil || !slices.Contains(retaliationGifs, e.Image.URL) {
		t.Errorf("image not drawn from gif catalog: %+v", e.Image)
	}
}

func TestWarCryEmbed(t *testing.T) {
	e := warCryEmbed()
	if e.Title != "The trumpets of war :trumpet:" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Description != "**DOOT DOOT, MOFOS!**" {
		t.Errorf("description = %q", e.Description)
	}
	if e.Color != 0xFFD700 {
		t.Errorf("color = %#x, want FFD700", e.Color)
	}
	if e.Image == nil || !slices.Contains(dootDootGifs, e.Image.URL) {
		t.Errorf("image not drawn from gif catalog: %+v", e.Image)
	}
}

func TestTauntMentionsTarget(t *testing.T) {
	for i := 0; i < 20; i++ {
		taunt := tauntFor("<@42>", plainTarget)
		if !strings.Contains(taunt, plainTarget) {
			t.Fatalf("taunt %q missing target mention", taunt)
		}
	}
}
