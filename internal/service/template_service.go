// internal/service/template_service.go
package service

import (
	"html"
	"net/url"
	"strings"
)

// RenderTemplate substitutes {key} placeholders with values from data in a
// single pass, so substituted values are never expanded again.
func RenderTemplate(template string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

const newsletterHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{subject}</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2 style="color: #2c5530;">{subject}</h2>
<div>{body}</div>
<hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">
<p style="font-size: 12px; color: #888;">You are receiving this email because you subscribed to our newsletter.
<a href="{unsubscribe_url}">Unsubscribe</a></p>
</div>
</body>
</html>`

const newsletterText = `{subject}

{body}

--
You are receiving this email because you subscribed to our newsletter.
Unsubscribe: {unsubscribe_url}
`

// UnsubscribeURL builds the per-recipient link served by POST /newsletter/unsubscribe/{token}.
func UnsubscribeURL(base, token string) string {
	return strings.TrimRight(base, "/") + "/newsletter/unsubscribe/" + url.PathEscape(token)
}

// RenderNewsletter returns the HTML and plain text bodies for one recipient.
// Body text is escaped and its line breaks kept.
func RenderNewsletter(subject, body, unsubscribeURL string) (htmlBody, textBody string) {
	escaped := html.EscapeString(body)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")

	htmlBody = RenderTemplate(newsletterHTML, map[string]string{
		"subject":         html.EscapeString(subject),
		"body":            escaped,
		"unsubscribe_url": html.EscapeString(unsubscribeURL),
	})
	textBody = RenderTemplate(newsletterText, map[string]string{
		"subject":         subject,
		"body":            body,
		"unsubscribe_url": unsubscribeURL,
	})
	return htmlBody, textBody
}

func escapeValues(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = html.EscapeString(v)
	}
	return out
}
