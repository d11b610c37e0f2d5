package email

import "context"

// Message is one outbound email. Text is sent as the plain alternative.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// NoOpProvider drops every message. It stands in when SMTP is disabled.
type NoOpProvider struct{}

func (NoOpProvider) Send(ctx context.Context, msg Message) error {
	return nil
}
