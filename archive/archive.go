// Package archive surfaces operator-authored content from the data directory:
// pending message-of-the-day files and date-keyed "on this day" content.
// Consumed MOTD files are acknowledged by renaming them out of the pending
// glob with a timestamp suffix.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	motdDirName      = "motd"
	onThisDayDirName = "on-this-day"
	archivedSuffix   = "sent"
)

// Entry is one pending MOTD file.
type Entry struct {
	Path string
	Body string
}

// FS reads MOTD and on-this-day content from a data directory.
type FS struct {
	Dir string
}

func NewFS(dir string) *FS {
	return &FS{Dir: dir}
}

// ListPending returns all pending MOTD entries, ordered by file name so
// operators can control sequencing with numeric prefixes.
func (f *FS) ListPending() ([]Entry, error) {
	pattern := filepath.Join(f.Dir, motdDirName, "*.txt")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing motd files: %w", err)
	}
	sort.Strings(paths)
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading motd file %s: %w", p, err)
		}
		body := strings.TrimSpace(string(data))
		if body == "" {
			continue
		}
		entries = append(entries, Entry{Path: p, Body: body})
	}
	return entries, nil
}

// Archive moves a consumed entry out of the pending set by renaming it with
// a timestamp suffix. Rename is atomic at the filesystem level; that is the
// only guard against two racing first-greetings consuming the same file.
func (f *FS) Archive(e Entry) error {
	stamp := time.Now().UTC().Format("2006-01-02T150405")
	dest := fmt.Sprintf("%s.%s.%s", e.Path, stamp, archivedSuffix)
	if err := os.Rename(e.Path, dest); err != nil {
		return fmt.Errorf("archiving motd file %s: %w", e.Path, err)
	}
	return nil
}

// OnThisDay looks up date-keyed content for t: first by exact year-month-day,
// then by month-day only. JSON files become structured embeds, .txt files
// plain text. Missing content is not an error; it returns (nil, nil).
func (f *FS) OnThisDay(t time.Time) (*OnThisDay, error) {
	dir := filepath.Join(f.Dir, onThisDayDirName)
	for _, key := range []string{t.Format("2006-01-02"), t.Format("01-02")} {
		if data, err := os.ReadFile(filepath.Join(dir, key+".json")); err == nil {
			embed, err := DecodeEmbed(data)
			if err != nil {
				return nil, fmt.Errorf("parsing on-this-day content for %s: %w", key, err)
			}
			return &OnThisDay{Embed: embed}, nil
		}
		if data, err := os.ReadFile(filepath.Join(dir, key+".txt")); err == nil {
			return &OnThisDay{Plain: strings.TrimSpace(string(data))}, nil
		}
	}
	return nil, nil
}

// ParseDelayDirective strips a leading "!delay <duration>" line from a MOTD
// body. The duration, when present, overrides the dispatcher's default
// inter-entry delay.
func ParseDelayDirective(body string) (rest string, delay time.Duration, ok bool) {
	line, remainder, found := strings.Cut(body, "\n")
	if !found {
		line, remainder = body, ""
	}
	arg, isDirective := strings.CutPrefix(strings.TrimSpace(line), "!delay ")
	if !isDirective {
		return body, 0, false
	}
	d, err := time.ParseDuration(strings.TrimSpace(arg))
	if err != nil || d < 0 {
		// A malformed directive is left in place so the operator notices.
		return body, 0, false
	}
	return strings.TrimSpace(remainder), d, true
}

// OnThisDay is date-keyed supplemental content: either plain text or a
// structured embed, never both.
type OnThisDay struct {
	Plain string
	Embed *Embed
}

// IsEmbed reports whether the content is the structured variant.
func (o *OnThisDay) IsEmbed() bool { return o.Embed != nil }

// Embed mirrors the subset of Discord embed fields the on-this-day JSON
// files may set.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       HexColor     `json:"color"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Image       *EmbedImage  `json:"image,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

// HexColor is an embed color that accepts either a JSON number or a hex
// string like "B024B1" (the format the operator files historically used).
type HexColor int

func (c *HexColor) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = HexColor(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("color must be a number or hex string")
	}
	var n64 int64
	if _, err := fmt.Sscanf(strings.TrimPrefix(s, "#"), "%x", &n64); err != nil {
		return fmt.Errorf("invalid hex color %q", s)
	}
	*c = HexColor(n64)
	return nil
}

const (
	defaultEmbedTitle = ":calendar: On This Day! :sparkles:"
	defaultEmbedColor = 0xB024B1
)

// DecodeEmbed parses embed JSON, applying the standard on-this-day title and
// color when the file doesn't set them.
func DecodeEmbed(data []byte) (*Embed, error) {
	embed := &Embed{Title: defaultEmbedTitle, Color: defaultEmbedColor}
	if err := json.Unmarshal(data, embed); err != nil {
		return nil, err
	}
	return embed, nil
}
