package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/sjson"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"trip_itinerary_planner/generator"
)

// Format is an output format of a rendered itinerary.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatText     Format = "text"
)

// Formats lists every supported format.
var Formats = []Format{FormatMarkdown, FormatHTML, FormatJSON, FormatYAML, FormatText}

// ParseFormat accepts a format name or its file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Ext is the file extension without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return string(f)
	}
}

// ContentType is the HTTP content type of the rendered format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Publisher renders outcomes and writes them to disk.
type Publisher struct {
	mapsLinks bool
	md        goldmark.Markdown
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Publisher. mapsLinks adds Google Maps links to locations and
// city changes in Markdown and HTML output.
func New(mapsLinks bool, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		mapsLinks: mapsLinks,
		md:        goldmark.New(goldmark.WithExtensions(extension.Table)),
		logger:    logger,
		now:       time.Now,
	}
}

// Render produces one format.
func (p *Publisher) Render(o generator.Outcome, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return []byte(markdown(o, p.mapsLinks)), nil
	case FormatHTML:
		return p.html(o)
	case FormatJSON:
		return p.json(o)
	case FormatYAML:
		return yaml.Marshal(o)
	case FormatText:
		return []byte(text(o)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}
}

// Write renders each format into dir and returns the written paths.
func (p *Publisher) Write(dir string, o generator.Outcome, formats []Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	base := fmt.Sprintf("itinerary_%s_%s", slug(o.Request.Destination), p.now().Format("20060102_150405"))
	var paths []string
	for _, f := range formats {
		data, err := p.Render(o, f)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, base+"."+f.Ext())
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, err
		}
		p.logger.Info("itinerary written", "run_id", o.RunID, "format", string(f), "path", path)
		paths = append(paths, path)
	}
	return paths, nil
}

// json stamps export metadata onto the outcome document.
func (p *Publisher) json(o generator.Outcome) ([]byte, error) {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return nil, err
	}
	stamps := []struct {
		path  string
		value any
	}{
		{"export.generated_at", p.now().UTC().Format(time.RFC3339)},
		{"export.status", status(o)},
		{"export.days", len(o.Draft.Days)},
		{"export.total_usd", o.Draft.Total},
	}
	for _, s := range stamps {
		if data, err = sjson.SetBytes(data, s.path, s.value); err != nil {
			return nil, err
		}
	}
	return data, nil
}

var linkRe = regexp.MustCompile(`<a href="`)

// html renders the Markdown through goldmark and wraps it in a standalone page.
func (p *Publisher) html(o generator.Outcome) ([]byte, error) {
	var body bytes.Buffer
	if err := p.md.Convert([]byte(markdown(o, p.mapsLinks)), &body); err != nil {
		return nil, err
	}
	// 外链在新窗口打开
	content := linkRe.ReplaceAllString(body.String(), `<a target="_blank" rel="noopener" href="`)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(tripTitle(o.Request)))
	b.WriteString(pageStyle)
	b.WriteString("</head>\n<body>\n<main>\n")
	b.WriteString(content)
	b.WriteString("</main>\n</body>\n</html>\n")
	return []byte(b.String()), nil
}

const pageStyle = `<style>
body{font-family:system-ui,sans-serif;line-height:1.5;color:#222;background:#fafafa}
main{max-width:46rem;margin:2rem auto;padding:0 1rem}
h2{border-bottom:1px solid #ddd;padding-bottom:.2em;margin-top:1.6em}
table{border-collapse:collapse}td,th{padding:.25em .75em;border-bottom:1px solid #eee}
</style>
`

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	out := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "_"), "_")
	if out == "" {
		return "trip"
	}
	return out
}
