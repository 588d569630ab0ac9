package web

import (
	"bytes"
	"html/template"

	"github.com/starford/notehub/internal/hydration"
	"github.com/starford/notehub/internal/models"
	"github.com/starford/notehub/internal/notesync"
)

type pageData struct {
	Tag        string
	Tags       []string
	Notes      []models.Note
	Page       int
	TotalPages int
	Loaded     bool
	Empty      string
	State      template.JS
}

// newPageData renders the default listing of tag from snap. The snapshot JSON
// escapes <, > and & so it is safe inside a script element.
func newPageData(tag models.TagFilter, snap hydration.Snapshot) (pageData, error) {
	var buf bytes.Buffer
	if err := hydration.Encode(&buf, snap); err != nil {
		return pageData{}, err
	}
	p := pageData{
		Tag:   tag.String(),
		Tags:  append([]string{hydration.AllSlug}, models.Tags...),
		Page:  1,
		State: template.JS(bytes.TrimSpace(buf.Bytes())),
	}

	key := hydration.DefaultKey(tag)
	for _, e := range snap.Entries {
		if e.Key != key || e.Data == nil {
			continue
		}
		p.Loaded = true
		p.Notes = e.Data.Notes
		p.TotalPages = e.Data.TotalPages
		if len(p.Notes) == 0 {
			p.Empty = notesync.EmptyResultMessage
		}
	}
	return p, nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Notes · {{.Tag}}</title>
</head>
<body>
<nav>
<ul>
{{- range .Tags}}
<li><a href="/notes/filter/{{.}}">{{.}}</a></li>
{{- end}}
</ul>
</nav>
<main>
<h1>{{.Tag}}</h1>
{{- if not .Loaded}}
<p class="loading">Loading notes…</p>
{{- else if .Empty}}
<p class="empty">{{.Empty}}</p>
{{- else}}
<ul class="notes">
{{- range .Notes}}
<li data-id="{{.ID}}"><h2>{{.Title}}</h2><p>{{.Content}}</p><span class="tag">{{.Tag}}</span></li>
{{- end}}
</ul>
{{- end}}
{{- if gt .TotalPages 0}}
<p class="pagination">Page {{.Page}} of {{.TotalPages}}</p>
{{- end}}
</main>
<script id="__NOTEHUB_STATE__" type="application/json">{{.State}}</script>
</body>
</html>
`))
