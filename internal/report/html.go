package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/yuin/goldmark"
)

var md = goldmark.New()

var htmlPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>arXiv digest {{.Date}}</title>
<style>
body { max-width: 60rem; margin: 2rem auto; padding: 0 1rem; font-family: system-ui, sans-serif; line-height: 1.5; }
h2 { border-bottom: 1px solid #ccc; padding-bottom: .3rem; }
h3 { color: #444; }
a { color: #1a5fb4; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// WriteMarkdown renders the report as markdown and writes it to path.
func WriteMarkdown(path string, supers []SuperSection, date time.Time) error {
	content := RenderMarkdown(supers, date)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing markdown report: %w", err)
	}
	return nil
}

// WriteHTML renders the report to HTML via the markdown renderer and writes
// it to path.
func WriteHTML(path string, supers []SuperSection, date time.Time) error {
	body, err := HTMLBody(supers, date)
	if err != nil {
		return err
	}

	var page bytes.Buffer
	data := struct {
		Date string
		Body template.HTML
	}{
		Date: date.Format("2006-01-02"),
		Body: body,
	}
	if err := htmlPage.Execute(&page, data); err != nil {
		return fmt.Errorf("rendering html report: %w", err)
	}

	if err := os.WriteFile(path, page.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing html report: %w", err)
	}
	return nil
}

// HTMLBody converts the markdown report body to HTML. The markdown is
// produced by this package, not user input, so embedding it unescaped is
// safe apart from model-supplied text, which goldmark escapes.
func HTMLBody(supers []SuperSection, date time.Time) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(supers, date)), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}
