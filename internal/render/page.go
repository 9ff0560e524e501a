package render

import (
	"bytes"
	"html/template"
	"io"

	"plantime/internal/timeline"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { margin: 0; background: {{.Background}}; }
#timeline { overflow-x: auto; }
</style>
</head>
<body data-ready="true">
<div id="timeline">
{{.Chart}}</div>
</body>
</html>
`))

// Page writes an HTML page wrapping the SVG chart. The body carries
// data-ready="true" once the chart is inline, which is what the headless
// capture waits for.
func Page(w io.Writer, l timeline.Layout, title string, s Style) error {
	var svg bytes.Buffer
	if err := SVG(&svg, l, title, s); err != nil {
		return err
	}
	// Drop the XML prolog; it is invalid inside HTML.
	chart := bytes.TrimPrefix(svg.Bytes(), []byte(`<?xml version="1.0" encoding="UTF-8"?>`+"\n"))

	return pageTmpl.Execute(w, struct {
		Title      string
		Background template.CSS
		Chart      template.HTML
	}{
		Title:      title,
		Background: template.CSS(s.Background),
		Chart:      template.HTML(chart),
	})
}
