package report

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/repolore/repolore/internal/extract"
	"github.com/repolore/repolore/internal/ghfetch"
	"github.com/repolore/repolore/internal/textutil"
)

const digestTemplate = `# {{.Repo}} conversation digest

Fetched {{.FetchedAt}}. {{.Records}} records, {{.Comments}} comments, {{.Discussions}} discussions.
{{- if .Failed}}
{{.Failed}} extraction(s) failed; the affected sections carry an error note.
{{- end}}

## Index

{{range .Results -}}
- {{.Kind}} #{{.Number}}: {{.Title}}{{with .Output}} - {{firstLine .}}{{end}}
{{end}}
{{- range .Results}}
## {{.Kind}} #{{.Number}}: {{.Title}}

{{if .Err -}}
_extraction failed: {{.Err}}_
{{- else -}}
{{.Output}}
{{- end}}
{{end -}}
`

type digestData struct {
	Repo        string
	FetchedAt   string
	Records     int
	Comments    int
	Discussions int
	Failed      int
	Results     []extract.Result
}

// WriteDigest renders a markdown digest of the corpus and its extractions as
// <owner>-<name>-digest.md and returns the path.
func (w *Writer) WriteDigest(corpus *ghfetch.Corpus, results []extract.Result) (string, error) {
	tmpl, err := template.New("digest").Funcs(template.FuncMap{
		"firstLine": textutil.FirstLine,
	}).Parse(digestTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing digest template: %w", err)
	}

	data := digestData{
		Repo:        corpus.Repo.String(),
		FetchedAt:   corpus.FetchedAt.Format("2006-01-02 15:04 MST"),
		Records:     corpus.Len(),
		Comments:    corpus.CommentCount(),
		Discussions: len(corpus.Discussions()),
		Failed:      extract.Summarize(results).Failed,
		Results:     results,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing digest template: %w", err)
	}
	return w.writeFile(fileBase(corpus.Repo)+"-digest.md", buf.Bytes())
}
