// Package refs turns user-supplied reference files (notes from friends'
// trips, exported link lists) into opaque text blobs for the research prompt.
package refs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// ErrUnsupported is returned for formats that need a document parser.
var ErrUnsupported = errors.New("unsupported reference format")

// DefaultMaxChars bounds each blob so one long file cannot crowd out the
// rest of the prompt.
const DefaultMaxChars = 2000

var binaryExt = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".odt": true, ".ods": true, ".zip": true,
}

var linkRe = regexp.MustCompile(`https?://[^\s<>"'()]+`)

// Loader reads reference files concurrently.
type Loader struct {
	MaxChars    int
	Concurrency int
}

// Load returns one blob per path, in input order. Any unreadable or
// unsupported file fails the whole load.
func (l Loader) Load(ctx context.Context, paths []string) ([]string, error) {
	out := make([]string, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	limit := l.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read reference %s: %w", path, err)
			}
			blob, err := l.blob(filepath.Base(path), data)
			if err != nil {
				return fmt.Errorf("reference %s: %w", path, err)
			}
			out[i] = blob
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FromText wraps inline reference text (e.g. from an API body) the same way
// files are wrapped.
func (l Loader) FromText(name, text string) (string, error) {
	return l.blob(name, []byte(text))
}

func (l Loader) blob(name string, data []byte) (string, error) {
	if binaryExt[strings.ToLower(filepath.Ext(name))] {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
	}
	if !isText(data) {
		return "", fmt.Errorf("%w: binary content", ErrUnsupported)
	}
	text := strings.TrimSpace(string(data))

	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s (%s)\n", name, Kind(text))
	b.WriteString(truncate(text, l.maxChars()))
	if links := Links(text); len(links) > 0 {
		b.WriteString("\nLinks:\n")
		for _, link := range links {
			fmt.Fprintf(&b, "- %s\n", link)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (l Loader) maxChars() int {
	if l.MaxChars > 0 {
		return l.MaxChars
	}
	return DefaultMaxChars
}

// Kind labels text that is mostly a shared map or trip-planner export.
func Kind(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "google.com/maps"), strings.Contains(lower, "goo.gl/maps"), strings.Contains(lower, "maps.app.goo.gl"):
		return "google maps list"
	case strings.Contains(lower, "wanderlog.com"):
		return "wanderlog trip"
	default:
		return "notes"
	}
}

// Links extracts the distinct URLs in text, in order of appearance.
func Links(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range linkRe.FindAllString(text, -1) {
		l = strings.TrimRight(l, ".,;:!?")
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func isText(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return false
	}
	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	ct := http.DetectContentType(sniff)
	return strings.HasPrefix(ct, "text/") || strings.HasPrefix(ct, "application/json")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "\n... (truncated)"
}
