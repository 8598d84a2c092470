// Package currentsong writes the currently playing item to a file for OBS
// overlays, the same role jellycli's (removed-for-this-spec) TUI status
// line serves interactively, and the same role original_source's
// current_song.rs plays for the bot: render a template, blank on
// pause-less-empty state, log failures and never propagate them.
package currentsong

import (
	"fmt"
	"os"
	"text/template"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/twitchsongbot/songbot/internal/models"
)

const defaultTemplate = `{{.Artist}} - {{.Name}}{{if .Paused}} (paused){{end}} [{{.ElapsedHMS}}/{{.DurationHMS}}]`

// templateData is the field set spec.md §6 names for the current-song
// template: artist, name, user, duration_hms, elapsed_hms, paused.
type templateData struct {
	Artist      string
	Name        string
	User        string
	DurationHMS string
	ElapsedHMS  string
	Paused      bool
}

// Publisher writes the current-song file. It holds no lock, so concurrent
// Write/Blank calls may interleave; only the playback engine (the sole
// writer of Loaded) calls them.
type Publisher struct {
	path string
	tmpl *template.Template
}

// New creates a Publisher writing to path, parsing tmplText (or the
// default template when empty).
func New(path, tmplText string) (*Publisher, error) {
	if tmplText == "" {
		tmplText = defaultTemplate
	}
	tmpl, err := template.New("current_song").Parse(tmplText)
	if err != nil {
		return nil, fmt.Errorf("currentsong: parse template: %w", err)
	}
	return &Publisher{path: path, tmpl: tmpl}, nil
}

func compactHMS(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Write renders the current item to the configured path. Errors are
// logged and never returned to the caller — a publisher failure must
// never stall the playback engine.
func (p *Publisher) Write(item models.QueueItem, elapsed time.Duration, paused bool) {
	if p == nil || p.path == "" {
		return
	}

	user := ""
	if item.Requester != nil {
		user = *item.Requester
	}
	artist := ""
	if len(item.Meta.Artists) > 0 {
		artist = item.Meta.Artists[0]
		for _, a := range item.Meta.Artists[1:] {
			artist += ", " + a
		}
	}

	data := templateData{
		Artist:      artist,
		Name:        item.Meta.Name,
		User:        user,
		DurationHMS: compactHMS(item.Meta.Duration),
		ElapsedHMS:  compactHMS(elapsed),
		Paused:      paused,
	}

	f, err := os.Create(p.path)
	if err != nil {
		logrus.Warnf("currentsong: failed to open %s: %v", p.path, err)
		return
	}
	defer f.Close()

	if err := p.tmpl.Execute(f, data); err != nil {
		logrus.Warnf("currentsong: failed to render %s: %v", p.path, err)
	}
}

// Blank truncates the current-song file, used whenever Loaded becomes
// None (invariant 6 of spec.md §3).
func (p *Publisher) Blank() {
	if p == nil || p.path == "" {
		return
	}
	if err := os.Truncate(p.path, 0); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("currentsong: failed to blank %s: %v", p.path, err)
	}
}
