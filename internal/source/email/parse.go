package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/oohrelay/internal/model"
)

// tolerable reports errors go-message returns alongside a usable entity.
func tolerable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

// ParseMessage parses a raw RFC 5322 message and flattens its MIME tree
// into parts with transfer-decoded payloads. Nested multiparts are walked
// depth first, so parts appear in the order a mail client would list them.
func ParseMessage(raw []byte) (model.RetrievedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !tolerable(err) {
		return model.RetrievedMessage{}, fmt.Errorf("reading message: %w", err)
	}
	defer mr.Close()

	msg := model.RetrievedMessage{}
	msg.Subject, _ = mr.Header.Subject()
	msg.MessageID, _ = mr.Header.MessageID()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && (part == nil || !tolerable(err)) {
			return msg, fmt.Errorf("reading part: %w", err)
		}

		p, err := readPart(part)
		if err != nil {
			return msg, err
		}
		msg.Parts = append(msg.Parts, p)
	}

	return msg, nil
}

func readPart(part *mail.Part) (model.Part, error) {
	var hdr message.Header
	switch h := part.Header.(type) {
	case *mail.InlineHeader:
		hdr = h.Header
	case *mail.AttachmentHeader:
		hdr = h.Header
	default:
		return model.Part{}, fmt.Errorf("unexpected part header %T", part.Header)
	}

	contentType, _, _ := hdr.ContentType()

	// Filename falls back to the Content-Type name parameter, which some
	// senders use instead of a Content-Disposition attachment.
	ah := mail.AttachmentHeader{Header: hdr}
	filename, _ := ah.Filename()

	body, err := io.ReadAll(part.Body)
	if err != nil {
		return model.Part{}, fmt.Errorf("reading part body: %w", err)
	}

	return model.Part{
		Filename:    filename,
		ContentType: contentType,
		Payload:     body,
	}, nil
}
