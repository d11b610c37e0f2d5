package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Notice is the content of a notification email.
type Notice struct {
	Title   string
	Message string
	Link    string
}

// RenderNotice builds a message for notice, resolving Link against baseURL.
func RenderNotice(to []string, baseURL string, notice Notice) (Message, error) {
	link := notice.Link
	if link != "" && !strings.HasPrefix(link, "http") {
		link = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(link, "/")
	}

	var body bytes.Buffer
	err := templates.ExecuteTemplate(&body, "notification.html", Notice{
		Title:   notice.Title,
		Message: notice.Message,
		Link:    link,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render notification: %w", err)
	}

	text := notice.Message
	if link != "" {
		text += "\n\n" + link
	}
	return Message{
		To:      to,
		Subject: notice.Title,
		HTML:    body.String(),
		Text:    text,
	}, nil
}
