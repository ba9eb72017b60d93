package email_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/nhle/oohrelay/internal/source/email"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseMessageNestedAttachment(t *testing.T) {
	xml := `<export><statuses/></export>`
	raw := crlf(`From: OOH Service <reports@ooh.example>
To: outofhours@example.invalid
Subject: Daily report
Message-ID: <abc@ooh.example>
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

Please find attached.
--inner
Content-Type: text/html; charset=utf-8

<p>Please find attached.</p>
--inner--
--outer
Content-Type: application/octet-stream; name="NoohAberdeen151026.xml"
Content-Disposition: attachment; filename="NoohAberdeen151026.xml"
Content-Transfer-Encoding: base64

` + base64.StdEncoding.EncodeToString([]byte(xml)) + `
--outer--
`)

	msg, err := email.ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	if msg.Subject != "Daily report" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.MessageID != "abc@ooh.example" {
		t.Errorf("MessageID = %q", msg.MessageID)
	}
	if msg.From != "reports@ooh.example" {
		t.Errorf("From = %q", msg.From)
	}
	if len(msg.Parts) != 3 {
		t.Fatalf("Parts len = %d, want 3", len(msg.Parts))
	}

	atts := msg.Attachments()
	if len(atts) != 1 {
		t.Fatalf("Attachments len = %d, want 1", len(atts))
	}
	if atts[0].Filename != "NoohAberdeen151026.xml" {
		t.Errorf("Filename = %q", atts[0].Filename)
	}
	if string(atts[0].Payload) != xml {
		t.Errorf("Payload = %q, want decoded xml", atts[0].Payload)
	}
	if msg.Parts[0].ContentType != "text/plain" {
		t.Errorf("first part type = %q, want text/plain", msg.Parts[0].ContentType)
	}
}

func TestParseMessageNameParameterOnly(t *testing.T) {
	raw := crlf(`Subject: report
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: text/xml; name="NoohAberdeen151026.xml"

<export/>
--b--
`)

	msg, err := email.ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	atts := msg.Attachments()
	if len(atts) != 1 || atts[0].Filename != "NoohAberdeen151026.xml" {
		t.Fatalf("Attachments = %+v, want one named part", atts)
	}
}

func TestParseMessagePlain(t *testing.T) {
	raw := crlf("Subject: hello\nContent-Type: text/plain\n\nno attachments here\n")

	msg, err := email.ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(msg.Parts) != 1 || len(msg.Attachments()) != 0 {
		t.Errorf("Parts = %+v, want one inline part", msg.Parts)
	}
}
