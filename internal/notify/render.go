package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/prashanttc/tweetAut/internal/pipeline"
)

var titleCaser = cases.Title(language.English)

// agentLabel turns "morning" or "tech_thread" into "Morning" or "Tech Thread".
func agentLabel(agent string) string {
	agent = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(agent))
	if agent == "" {
		return "Agent"
	}
	return titleCaser.String(agent)
}

func subjectFor(res pipeline.Result) string {
	label := agentLabel(res.Agent)
	if res.Status == pipeline.StatusPublished {
		return fmt.Sprintf("[Tweet Bot] %s posted: %s", label, preview(res.Topic, 60))
	}
	return fmt.Sprintf("[Tweet Bot] %s failed at %s", label, stageLabel(res.Err))
}

func stageLabel(err error) string {
	stage := pipeline.Stage(err)
	if stage == "" {
		return "unknown stage"
	}
	return strings.ReplaceAll(stage, "_", " ")
}

func preview(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}

type noticeData struct {
	Agent    string
	Posted   bool
	Topic    string
	Content  []string
	PostURL  string
	Reason   string
	Duration string
	At       string
}

func render(notice Notice) (string, error) {
	res := notice.Result
	data := noticeData{
		Agent:    agentLabel(res.Agent),
		Posted:   res.Status == pipeline.StatusPublished,
		Topic:    res.Topic,
		PostURL:  res.PostURL,
		Reason:   res.Reason,
		Duration: res.Duration.Round(time.Millisecond).String(),
		At:       time.Now().UTC().Format("January 2, 2006 at 3:04 PM UTC"),
	}
	for _, part := range strings.Split(notice.Content, "\n\n") {
		if part = strings.TrimSpace(part); part != "" {
			data.Content = append(data.Content, part)
		}
	}

	tpl, err := template.New("notice").Parse(noticeTemplate)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

const noticeTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Tweet Bot</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 640px; margin: 0 auto; padding: 24px;">
{{if .Posted}}
<div style="background-color: #1DA1F2; color: white; padding: 14px 20px; border-radius: 6px;">
    <strong>{{.Agent}} agent posted</strong>
</div>
<p>Topic: {{.Topic}}</p>
{{range .Content}}
<div style="background-color: #f8f9fa; border-left: 3px solid #1DA1F2; padding: 12px 16px; margin: 12px 0;">{{.}}</div>
{{end}}
{{if .PostURL}}<p><a href="{{.PostURL}}">View on Twitter</a></p>{{end}}
{{else}}
<div style="background-color: #dc3545; color: white; padding: 14px 20px; border-radius: 6px;">
    <strong>{{.Agent}} agent failed</strong>
</div>
{{if .Topic}}<p>Topic: {{.Topic}}</p>{{end}}
<pre style="background-color: #f8f9fa; padding: 12px; white-space: pre-wrap;">{{.Reason}}</pre>
{{end}}
<p style="color: #6c757d; font-size: 12px; margin-top: 30px;">{{.At}} &middot; took {{.Duration}}</p>
</div>
</body>
</html>`
