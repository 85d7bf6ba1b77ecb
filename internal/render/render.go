package render

import (
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sermuns/static-listing/internal/config"
	"github.com/sermuns/static-listing/pkg/types"
)

const (
	DirGlyph  = "📁"
	FileGlyph = "📄"

	// Placeholder is shown for a modified time or size that is unknown or not applicable.
	Placeholder = "-"

	TimeLayout = "2006-01-02 15:04:05"
)

var (
	//go:embed assets/style.css
	styleCSS string

	//go:embed assets/logo.svg
	logoSVG []byte

	iconURI = template.URL("data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(logoSVG))
)

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <link rel="icon" type="image/svg+xml" href="{{.Icon}}">
    <style>{{.Style}}</style>
</head>
<body>
    <header>
        <img src="{{.Icon}}" alt="">{{range .Breadcrumbs}}<a href="{{.URL}}">{{.Name}}</a>{{if not .Root}}/{{end}}{{end}}
    </header>
    <table>
        <thead>
            <tr><th>Type</th><th>Name</th><th>Last modified</th><th>Size</th></tr>
        </thead>
        <tbody>
        {{- range .Items}}
            <tr>
                <td class="type">{{.Glyph}}</td>
                <td class="name"><a href="{{.URL}}">{{.Name}}</a></td>
                <td class="modified">{{.Modified}}</td>
                <td class="size">{{.Size}}</td>
            </tr>
        {{- end}}
        </tbody>
    </table>
</body>
</html>
`

// Renderer turns a directory listing into an HTML page. It performs no I/O.
type Renderer struct {
	title    string
	baseURL  string
	template *template.Template
}

func New(cfg *config.Config) *Renderer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	return &Renderer{
		title:    cfg.Title,
		baseURL:  baseURL,
		template: template.Must(template.New("listing").Parse(htmlTemplate)),
	}
}

// Breadcrumb is one link in the navigation trail
type Breadcrumb struct {
	Name string
	URL  string
	Root bool
}

// TemplateData represents data for the HTML template
type TemplateData struct {
	Title       string
	Style       template.CSS
	Icon        template.URL
	Breadcrumbs []Breadcrumb
	Items       []TemplateItem
}

// TemplateItem represents one row of the listing table
type TemplateItem struct {
	Glyph    string
	Name     string
	URL      string
	Modified string
	Size     string
}

// Render produces the index page for the directory at relDir (relative to the
// input root, "." for the root) listing entries in the given order.
func (r *Renderer) Render(entries []types.Entry, relDir string) (string, error) {
	dir := cleanRel(relDir)

	items := make([]TemplateItem, len(entries))
	for i, entry := range entries {
		rel := entry.RelPath
		if rel == "" {
			rel = path.Join(dir, entry.Name)
		}
		glyph := FileGlyph
		if entry.IsDir {
			glyph = DirGlyph
		}
		items[i] = TemplateItem{
			Glyph:    glyph,
			Name:     entry.Name,
			URL:      joinURL(r.baseURL, rel, entry.IsDir),
			Modified: FormatTime(entry.ModTime),
			Size:     FormatSize(entry),
		}
	}

	data := TemplateData{
		Title:       r.title,
		Style:       template.CSS(styleCSS),
		Icon:        iconURI,
		Breadcrumbs: r.Breadcrumbs(dir),
		Items:       items,
	}

	var buf strings.Builder
	if err := r.template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render listing for %s: %w", dir, err)
	}
	return buf.String(), nil
}

// Breadcrumbs returns the trail from the site root to relDir. The root link is
// always first and labelled "/"; every directory below it follows in
// root-to-leaf order, the current directory included.
func (r *Renderer) Breadcrumbs(relDir string) []Breadcrumb {
	crumbs := []Breadcrumb{{Name: "/", URL: r.baseURL, Root: true}}

	var ancestors []string
	for dir := cleanRel(relDir); dir != "."; dir = path.Dir(dir) {
		ancestors = append(ancestors, dir)
	}

	for i := len(ancestors) - 1; i >= 0; i-- {
		dir := ancestors[i]
		crumbs = append(crumbs, Breadcrumb{
			Name: crumbName(dir),
			URL:  joinURL(r.baseURL, dir, true),
		})
	}

	return crumbs
}

func crumbName(dir string) string {
	name := path.Base(dir)
	if name == "." || name == ".." || name == "/" || name == "" {
		return "/"
	}
	return name
}

// cleanRel normalizes a relative path to slash form without a leading slash.
func cleanRel(rel string) string {
	rel = strings.TrimLeft(filepath.ToSlash(rel), "/")
	if rel == "" {
		return "."
	}
	return path.Clean(rel)
}

// joinURL appends each segment of rel to base, escaping it. Directory links end
// in a slash so they resolve to the generated index.html; file links never do.
func joinURL(base, rel string, isDir bool) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(base, "/"))
	for _, seg := range strings.Split(cleanRel(rel), "/") {
		if seg == "" || seg == "." {
			continue
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	if isDir || b.Len() == 0 {
		b.WriteByte('/')
	}
	return b.String()
}

// FormatTime formats a modification time, or returns the placeholder for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Local().Format(TimeLayout)
}

// FormatSize formats a file size with binary units. Directories have no size.
func FormatSize(entry types.Entry) string {
	if entry.IsDir || entry.Size < 0 {
		return Placeholder
	}
	return humanize.IBytes(uint64(entry.Size))
}
