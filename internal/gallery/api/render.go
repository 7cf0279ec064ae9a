package api

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/Borislavv/notion-widget-cache/pkg/model"
	"github.com/Borislavv/notion-widget-cache/pkg/service"
)

const (
	defaultColumns = 3
	maxColumns     = 6
	svgCell        = 120
	svgGap         = 4
	svgMaxPosts    = 12
)

var galleryTemplate = template.Must(template.New("gallery").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{margin:0;font-family:system-ui,sans-serif}
.theme-dark{background:#191919;color:#e6e6e6}
.grid{display:grid;grid-template-columns:repeat({{.Columns}},1fr);gap:4px}
.cell{position:relative;aspect-ratio:1/1;overflow:hidden;background:#f1f1ef}
.cell img,.cell video{width:100%;height:100%;object-fit:cover}
.caption{position:absolute;bottom:0;left:0;right:0;padding:4px 6px;font-size:12px;background:rgba(0,0,0,.45);color:#fff}
</style>
</head>
<body class="theme-{{.Theme}}">
{{if .ShowTitle}}<h1>{{.Title}}</h1>{{end}}
<div class="grid" data-source="{{.Source}}">
{{range .Posts}}<div class="cell" data-platform="{{.Platform}}" data-status="{{.Status}}">
{{if .Images}}{{with index .Images 0}}<img src="{{.URL}}" alt="{{.Name}}" loading="lazy">{{end}}{{else if .Videos}}{{with index .Videos 0}}<video src="{{.URL}}" muted playsinline preload="metadata"></video>{{end}}{{end}}
<div class="caption">{{.Title}}{{if .PublishDate}} <time>{{.PublishDate}}</time>{{end}}</div>
</div>
{{end}}</div>
</body>
</html>
`))

var liteTemplate = template.Must(template.New("lite").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>{{range .Posts}}{{with .Images}}{{with index . 0}}<img src="{{.URL}}" alt="{{.Name}}" width="{{$.CellSize}}" height="{{$.CellSize}}" loading="lazy">{{end}}{{end}}{{end}}</body>
</html>
`))

var svgTemplate = template.Must(template.New("svg").Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}">
<rect width="100%" height="100%" fill="#ffffff"/>
{{range .Cells}}<g transform="translate({{.X}},{{.Y}})">
<rect width="{{$.CellSize}}" height="{{$.CellSize}}" fill="#f1f1ef"/>
{{if .Image}}<image href="{{.Image}}" width="{{$.CellSize}}" height="{{$.CellSize}}" preserveAspectRatio="xMidYMid slice"/>{{end}}
<text x="4" y="{{$.CaptionY}}" font-family="sans-serif" font-size="10" fill="#37352f">{{.Title}}</text>
</g>
{{end}}</svg>
`))

type galleryView struct {
	Title     string
	ShowTitle bool
	Theme     string
	Columns   int
	CellSize  int
	Source    service.Source
	Posts     []model.Post
}

func newGalleryView(res *service.Result) galleryView {
	settings := res.Widget.Settings
	columns := settings.Columns
	if columns <= 0 {
		columns = defaultColumns
	} else if columns > maxColumns {
		columns = maxColumns
	}
	theme := settings.Theme
	if theme == "" {
		theme = "light"
	}
	title := settings.Title
	if title == "" {
		title = "Gallery"
	}
	return galleryView{
		Title:     title,
		ShowTitle: settings.ShowTitle,
		Theme:     theme,
		Columns:   columns,
		CellSize:  svgCell,
		Source:    res.Source,
		Posts:     res.Posts,
	}
}

func renderGallery(res *service.Result) ([]byte, error) {
	var buf bytes.Buffer
	err := galleryTemplate.Execute(&buf, newGalleryView(res))
	return buf.Bytes(), err
}

func renderLite(res *service.Result) ([]byte, error) {
	var buf bytes.Buffer
	err := liteTemplate.Execute(&buf, newGalleryView(res))
	return buf.Bytes(), err
}

// renderText lists one post per line: title, date, platform and status separated by " | ".
func renderText(res *service.Result) []byte {
	var sb strings.Builder
	for _, p := range res.Posts {
		fields := []string{p.Title}
		for _, v := range []string{p.PublishDate, p.Platform, p.Status} {
			if v != "" {
				fields = append(fields, v)
			}
		}
		sb.WriteString(strings.Join(fields, " | "))
		if ref, ok := p.Cover(); ok {
			sb.WriteString(" | ")
			sb.WriteString(ref.URL)
		}
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

type svgCellView struct {
	X, Y  int
	Image string
	Title string
}

type svgView struct {
	Width, Height int
	CellSize      int
	CaptionY      int
	Cells         []svgCellView
}

// renderSVG draws a snapshot of at most svgMaxPosts posts laid out in the widget columns.
func renderSVG(res *service.Result) ([]byte, error) {
	view := newGalleryView(res)
	posts := view.Posts
	if len(posts) > svgMaxPosts {
		posts = posts[:svgMaxPosts]
	}

	rows := (len(posts) + view.Columns - 1) / view.Columns
	if rows == 0 {
		rows = 1
	}
	out := svgView{
		Width:    view.Columns*svgCell + (view.Columns-1)*svgGap,
		Height:   rows*svgCell + (rows-1)*svgGap,
		CellSize: svgCell,
		CaptionY: svgCell - 6,
		Cells:    make([]svgCellView, 0, len(posts)),
	}
	for i, p := range posts {
		cell := svgCellView{
			X:     (i % view.Columns) * (svgCell + svgGap),
			Y:     (i / view.Columns) * (svgCell + svgGap),
			Title: p.Title,
		}
		// videos cannot be embedded into an svg image
		if len(p.Images) > 0 {
			cell.Image = p.Images[0].URL
		}
		out.Cells = append(out.Cells, cell)
	}

	var buf bytes.Buffer
	err := svgTemplate.Execute(&buf, out)
	return buf.Bytes(), err
}
