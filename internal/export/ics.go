package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/m3connect/portal/internal/models"
)

const (
	icsTimeFormat   = "20060102T150405Z"
	eventDuration   = 2 * time.Hour
	defaultLocation = "Online"
)

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

// WriteICS renders event as a single-event calendar. Events are assumed to
// last two hours.
func WriteICS(w io.Writer, event models.Event, now time.Time) error {
	start := event.DateTime.UTC()
	location := defaultLocation
	if event.Location != nil && strings.TrimSpace(*event.Location) != "" {
		location = *event.Location
	}
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//M3 Connect//Events//EN",
		"BEGIN:VEVENT",
		"UID:" + event.ID + "@m3connect.com",
		"DTSTAMP:" + now.UTC().Format(icsTimeFormat),
		"DTSTART:" + start.Format(icsTimeFormat),
		"DTEND:" + start.Add(eventDuration).Format(icsTimeFormat),
		"SUMMARY:" + icsEscaper.Replace(event.Title),
		"DESCRIPTION:" + icsEscaper.Replace(event.Description),
		"LOCATION:" + icsEscaper.Replace(location),
		"END:VEVENT",
		"END:VCALENDAR",
	}
	for _, line := range lines {
		if _, err := fmt.Fprint(w, fold(line), "\r\n"); err != nil {
			return err
		}
	}
	return nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ICSFilename derives a download name from the event title.
func ICSFilename(event models.Event) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(strings.TrimSpace(event.Title), "_"), "_")
	if name == "" {
		name = "event"
	}
	return name + ".ics"
}

// fold splits content lines longer than 75 octets (RFC 5545 3.1).
func fold(line string) string {
	if len(line) <= 75 {
		return line
	}
	var b strings.Builder
	limit := 75
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8Start(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
		limit = 74
	}
	b.WriteString(line)
	return b.String()
}

func utf8Start(c byte) bool { return c&0xC0 != 0x80 }
