// Package weather fetches short forecasts from the weather.gov gridpoint API
// and decorates recognized conditions with emoji.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.weather.gov"

// Forecast is the current-period forecast for a location.
type Forecast struct {
	// For is the period name, e.g. "Tuesday" or "this afternoon".
	For string
	// Text is the detailed forecast, emoji-decorated.
	Text string
}

// Client calls the weather.gov gridpoint forecast endpoint.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string
	// now is overridable for tests; defaults to time.Now.
	now func() time.Time
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) timeNow() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

type forecastResponse struct {
	Properties struct {
		Periods []struct {
			Name             string    `json:"name"`
			StartTime        time.Time `json:"startTime"`
			EndTime          time.Time `json:"endTime"`
			DetailedForecast string    `json:"detailedForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

// Forecast fetches the forecast for an office-and-grid pair like "TOP/32,81"
// and returns the period covering now, decorated.
func (c *Client) Forecast(ctx context.Context, officeAndGrid string) (Forecast, error) {
	if officeAndGrid == "" {
		return Forecast{}, fmt.Errorf("weather location must not be blank")
	}
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	url := fmt.Sprintf("%s/gridpoints/%s/forecast", base, officeAndGrid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Forecast{}, fmt.Errorf("building weather request: %w", err)
	}
	ua := c.UserAgent
	if ua == "" {
		ua = "hellobirb-discord-bot"
	}
	req.Header.Set("User-Agent", ua)
	resp, err := c.http().Do(req)
	if err != nil {
		return Forecast{}, fmt.Errorf("getting weather forecast: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Forecast{}, fmt.Errorf("weather.gov returned status %d", resp.StatusCode)
	}
	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Forecast{}, fmt.Errorf("parsing weather response: %w", err)
	}

	// The API may include periods that have already passed, so find the one
	// covering now rather than trusting the first element.
	now := c.timeNow()
	for _, p := range body.Properties.Periods {
		if !now.Before(p.StartTime) && now.Before(p.EndTime) {
			return Forecast{For: cleanName(p.Name), Text: Decorate(p.DetailedForecast)}, nil
		}
	}
	return Forecast{}, fmt.Errorf("no current weather period found in response")
}

var weekdayName = regexp.MustCompile(`^(Mon|Tues|Wednes|Thurs|Fri|Satur|Sun)day$`)

// cleanName leaves day names alone but lowercases period names like
// "Tonight" or "This Afternoon" so they read naturally mid-sentence.
func cleanName(name string) string {
	if weekdayName.MatchString(name) {
		return name
	}
	return strings.ToLower(name)
}

// condition maps a forecast phrase to its emoji. The slice is ordered from
// more specific phrases to more general ones, so the most specific match for
// overlapping phrases wins.
type condition struct {
	re    *regexp.Regexp
	emoji string
}

var conditions = []condition{
	{regexp.MustCompile(`(?i)\bpart(?:ly|ially) sunny\b`), ":white_sun_cloud:"},
	{regexp.MustCompile(`(?i)\bpart(?:ly|ially) cloudy\b`), ":white_sun_small_cloud:"},
	{regexp.MustCompile(`(?i)\bcloud[sy]\b`), ":cloud:"},
	{regexp.MustCompile(`(?i)\bsun(?:ny)?\b`), ":sun_with_face:"},
	{regexp.MustCompile(`(?i)\brainy?\b`), ":cloud_with_rain:"},
	{regexp.MustCompile(`(?i)\bsnowy?\b`), ":snowflake:"},
}

// Decorate inserts an emoji after the first occurrence of each recognized
// condition keyword. Already-decorated phrases and words inside emoji
// shortcodes are left alone, so decoration is idempotent.
func Decorate(forecast string) string {
	decorated := forecast
	for _, cond := range conditions {
		offset := 0
		for offset < len(decorated) {
			loc := cond.re.FindStringIndex(decorated[offset:])
			if loc == nil {
				break
			}
			start, end := offset+loc[0], offset+loc[1]
			if alreadyDecorated(decorated, end) || inShortcode(decorated, start, end) {
				offset = end
				continue
			}
			decorated = decorated[:end] + " " + cond.emoji + decorated[end:]
			break
		}
	}
	return decorated
}

// alreadyDecorated reports whether the match at [.., end) is directly
// followed by an emoji shortcode.
func alreadyDecorated(s string, end int) bool {
	return strings.HasPrefix(s[end:], " :")
}

// inShortcode reports whether [start, end) sits inside a :shortcode: token,
// e.g. the "sun" in ":white_sun_small_cloud:".
func inShortcode(s string, start, end int) bool {
	before := false
	for i := start - 1; i >= 0; i-- {
		if s[i] == ' ' || s[i] == '\n' {
			break
		}
		if s[i] == ':' {
			before = true
			break
		}
	}
	if !before {
		return false
	}
	for i := end; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\n' {
			return false
		}
		if s[i] == ':' {
			return true
		}
	}
	return false
}
