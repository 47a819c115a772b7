package tool

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/gmail/v1"
)

// EmailTool reads from the authenticated Gmail account. A nil service
// means Google credentials were not configured.
type EmailTool struct {
	service *gmail.Service
	userID  string
	maxList int64
}

func NewEmailTool(service *gmail.Service) *EmailTool {
	return &EmailTool{service: service, userID: "me", maxList: 5}
}

func (t *EmailTool) Name() string { return NameEmail }

func (t *EmailTool) Description() string {
	return "Check unread email, search the inbox, and summarize recent messages."
}

func (t *EmailTool) Available() bool { return t != nil && t.service != nil }

func (t *EmailTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	query := strings.ToLower(stringArg(args, ArgQuery))
	if !t.Available() {
		return "Email not connected. Set up Google credentials to read mail.", nil
	}

	switch {
	case containsAny(query, "send", "compose", "reply", "forward"):
		return "Sending email is not supported yet. I can check unread mail and search your inbox.", nil
	case containsAny(query, "unread", "new mail", "new email"):
		return t.listMessages(ctx, "is:unread", "unread")
	case containsAny(query, "search", "find", "from "):
		return t.listMessages(ctx, searchQuery(query), "matching")
	default:
		return t.listMessages(ctx, "in:inbox", "recent")
	}
}

func (t *EmailTool) listMessages(ctx context.Context, gmailQuery, label string) (string, error) {
	list, err := t.service.Users.Messages.List(t.userID).
		Context(ctx).
		Q(gmailQuery).
		MaxResults(t.maxList).
		Do()
	if err != nil {
		return "", fmt.Errorf("gmail list failed: %w", err)
	}
	if len(list.Messages) == 0 {
		return fmt.Sprintf("No %s messages found.", label), nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("You have %d %s message(s):\n", len(list.Messages), label))
	for _, ref := range list.Messages {
		msg, err := t.service.Users.Messages.Get(t.userID, ref.Id).
			Context(ctx).
			Format("metadata").
			MetadataHeaders("From", "Subject").
			Do()
		if err != nil {
			return "", fmt.Errorf("gmail read failed: %w", err)
		}
		b.WriteString(fmt.Sprintf("- %s from %s\n", header(msg, "Subject"), header(msg, "From")))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// searchQuery strips command words so the remainder becomes the Gmail
// search expression.
func searchQuery(query string) string {
	cleaned := query
	for _, word := range []string{"search", "find", "email", "emails", "mail", "for", "my"} {
		cleaned = strings.ReplaceAll(cleaned, word+" ", " ")
		cleaned = strings.ReplaceAll(cleaned, " "+word, " ")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "in:inbox"
	}
	return cleaned
}

func header(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return "(unknown)"
	}
	for _, h := range msg.Payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return "(unknown)"
}
