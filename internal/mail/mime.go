package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"sort"
	"time"
)

type envelope struct {
	From      string
	FromName  string
	MessageID string
	Date      time.Time
}

// buildMessage renders an RFC 5322 message with a multipart/alternative body,
// wrapped in multipart/mixed when an attachment is present.
func buildMessage(env envelope, msg Message) ([]byte, error) {
	var body bytes.Buffer
	var contentType string

	alt, altType, err := alternativePart(msg)
	if err != nil {
		return nil, err
	}

	if msg.Attachment == nil {
		body.Write(alt)
		contentType = altType
	} else {
		mixed := multipart.NewWriter(&body)
		part, err := mixed.CreatePart(textproto.MIMEHeader{"Content-Type": {altType}})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(alt); err != nil {
			return nil, err
		}
		if err := writeAttachment(mixed, msg.Attachment); err != nil {
			return nil, err
		}
		if err := mixed.Close(); err != nil {
			return nil, err
		}
		contentType = "multipart/mixed; boundary=" + mixed.Boundary()
	}

	var out bytes.Buffer
	from := env.From
	if env.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", env.FromName), env.From)
	}
	writeHeader(&out, "From", from)
	writeHeader(&out, "To", msg.To)
	writeHeader(&out, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&out, "Date", env.Date.Format(time.RFC1123Z))
	writeHeader(&out, "Message-ID", env.MessageID)
	writeHeader(&out, "MIME-Version", "1.0")

	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(&out, k, msg.Headers[k])
	}

	writeHeader(&out, "Content-Type", contentType)
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func alternativePart(msg Message) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if msg.Text != "" {
		if err := writeQuoted(w, "text/plain; charset=utf-8", msg.Text); err != nil {
			return nil, "", err
		}
	}
	if msg.HTML != "" {
		if err := writeQuoted(w, "text/html; charset=utf-8", msg.HTML); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "multipart/alternative; boundary=" + w.Boundary(), nil
}

func writeQuoted(w *multipart.Writer, contentType, content string) error {
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}

func writeAttachment(w *multipart.Writer, a *Attachment) error {
	ct := a.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {ct},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
	})
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(a.Data)
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(part, "%s\r\n", encoded[:76]); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err = fmt.Fprintf(part, "%s\r\n", encoded)
	return err
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	fmt.Fprintf(buf, "%s: %s\r\n", key, value)
}
