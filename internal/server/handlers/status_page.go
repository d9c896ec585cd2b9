package handlers

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/yuin/goldmark"

	ferrors "git.home.luguber.info/inful/tidepool/internal/foundation/errors"
	"git.home.luguber.info/inful/tidepool/internal/logfields"
	"git.home.luguber.info/inful/tidepool/internal/state"
)

var statusPageTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>The Tide Pool</title>
<style>
body { font-family: sans-serif; max-width: 40rem; margin: 4rem auto; padding: 0 1rem; }
.progress { background: #e0e7ef; border-radius: 4px; overflow: hidden; }
.progress > div { background: #2b6cb0; color: #fff; padding: 0.25rem 0.5rem; white-space: nowrap; }
.warning { border-left: 4px solid #c05621; padding-left: 1rem; }
.decree { border-left: 4px solid #2b6cb0; padding-left: 1rem; }
</style>
</head>
<body>
<h1>The Tide Pool</h1>
{{if .Launched}}<p><strong>Launched.</strong></p>{{end}}
<div class="progress"><div style="width: {{.Percent}}%">{{.Count}} / {{.Target}}</div></div>
{{if .TideWarning}}<div class="warning">{{.TideWarning}}</div>{{end}}
{{if .Decree}}<div class="decree">{{.Decree}}</div>{{end}}
{{if .Locked}}<p>The pool is currently locked.</p>{{end}}
</body>
</html>
`))

type statusPageData struct {
	Count       int64
	Target      int64
	Percent     int64
	Launched    bool
	Locked      bool
	Decree      template.HTML
	TideWarning template.HTML
}

// StatusPageHandlers renders the minimal public status page. Operator
// messages are markdown, rendered to HTML with goldmark.
type StatusPageHandlers struct {
	repo         *state.Repository
	markdown     goldmark.Markdown
	errorAdapter *ferrors.HTTPErrorAdapter
	logger       *slog.Logger
}

// NewStatusPageHandlers creates a new status page handlers instance.
func NewStatusPageHandlers(repo *state.Repository, logger *slog.Logger) *StatusPageHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusPageHandlers{
		repo:         repo,
		markdown:     goldmark.New(),
		errorAdapter: ferrors.NewHTTPErrorAdapter(logger),
		logger:       logger,
	}
}

// HandleStatusPage serves the HTML status page.
func (h *StatusPageHandlers) HandleStatusPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	snap, err := h.repo.Snapshot(r.Context())
	if err != nil {
		storeErr := ferrors.WrapError(err, ferrors.CategoryStore, "state snapshot failed").Build()
		h.errorAdapter.WriteErrorResponse(w, r, storeErr)
		return
	}

	data := statusPageData{
		Count:    snap.Count,
		Target:   snap.Target,
		Launched: snap.Launched,
		Locked:   snap.Locked,
	}
	if snap.Target > 0 {
		data.Percent = snap.Count * 100 / snap.Target
		if data.Percent > 100 {
			data.Percent = 100
		}
	}
	data.Decree = h.renderMarkdown(snap.Decree)
	data.TideWarning = h.renderMarkdown(snap.TideWarning)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPageTemplate.Execute(w, data); err != nil {
		h.logger.Error("status page render failed", logfields.Error(err))
	}
}

func (h *StatusPageHandlers) renderMarkdown(src string) template.HTML {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(src), &buf); err != nil {
		h.logger.Warn("markdown render failed", logfields.Error(err))
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}
