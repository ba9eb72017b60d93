package pipeline_test

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nhle/oohrelay/internal/catalog"
	"github.com/nhle/oohrelay/internal/model"
	"github.com/nhle/oohrelay/internal/pipeline"
)

func newTestExtractor() *pipeline.Extractor {
	return pipeline.NewExtractor(catalog.Default(), time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func extractString(t *testing.T, doc string) []model.Call {
	t.Helper()
	calls, err := newTestExtractor().Extract(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return calls
}

const narrativeDoc = `<?xml version="1.0" encoding="UTF-8"?>
<export>
  <statuses>
    <status_group id="6">
      <tickets>
        <ticket>
          <callref>W1</callref>
          <cust_id>jbloggs</cust_id>
          <logdatex>1700000000</logdatex>
          <prob_info><![CDATA[A&amp;B]]></prob_info>
          <updates>
            <update><updatetxt>C</updatetxt></update>
            <update><updatetxt>D</updatetxt></update>
          </updates>
        </ticket>
      </tickets>
    </status_group>
  </statuses>
</export>`

func TestExtractNarrative(t *testing.T) {
	calls := extractString(t, narrativeDoc)
	if len(calls) != 1 {
		t.Fatalf("Extract len = %d, want 1", len(calls))
	}
	want := "A&B:\n\n\nC\nD"
	if calls[0].Narrative != want {
		t.Errorf("Narrative = %q, want %q", calls[0].Narrative, want)
	}
	if calls[0].Requester != "jbloggs" {
		t.Errorf("Requester = %q, want jbloggs", calls[0].Requester)
	}
	if calls[0].LoggedAt != "14.11.23 : 22:13:20" {
		t.Errorf("LoggedAt = %q, want %q", calls[0].LoggedAt, "14.11.23 : 22:13:20")
	}
	if len(calls[0].Absent) != 0 {
		t.Errorf("Absent = %v, want none", calls[0].Absent)
	}
}

func TestExtractMultipleUpdateTexts(t *testing.T) {
	doc := `<export><statuses><status_group id="1"><tickets><ticket>
		<callref>W9</callref><cust_id>u</cust_id><logdatex>0</logdatex>
		<prob_info>Printer &amp;lt;jammed&amp;gt;</prob_info>
		<updates><update><updatetxt>one</updatetxt><updatetxt>two</updatetxt></update></updates>
	</ticket></tickets></status_group></statuses></export>`

	calls := extractString(t, doc)
	want := "Printer <jammed>:\n\n\none\ntwo"
	if calls[0].Narrative != want {
		t.Errorf("Narrative = %q, want %q", calls[0].Narrative, want)
	}
}

func ticketXML(ref string) string {
	return fmt.Sprintf(`<ticket><callref>%s</callref><cust_id>u</cust_id>`+
		`<logdatex>1700000000</logdatex><prob_info>p</prob_info></ticket>`, ref)
}

func groupXML(id string, refs ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<status_group id="%s"><tickets>`, id)
	for _, r := range refs {
		b.WriteString(ticketXML(r))
	}
	b.WriteString(`</tickets></status_group>`)
	return b.String()
}

func docXML(groups ...string) string {
	return "<export><statuses>" + strings.Join(groups, "") + "</statuses></export>"
}

func TestExtractOrdersByStatusThenDocument(t *testing.T) {
	doc := docXML(
		groupXML("16", "closed-1"),
		groupXML("6", "resolved-1", "resolved-2"),
		groupXML("2", "unassigned-1"),
		groupXML("6", "resolved-3"),
		groupXML("9", "esc-1"),
	)

	calls := extractString(t, doc)

	wantRefs := []string{"unassigned-1", "resolved-1", "resolved-2", "resolved-3", "esc-1", "closed-1"}
	wantStatus := []string{"Unassigned", "Resolved", "Resolved", "Resolved", "Escalated(O)", "Closed"}
	if len(calls) != len(wantRefs) {
		t.Fatalf("Extract len = %d, want %d", len(calls), len(wantRefs))
	}
	for i, c := range calls {
		if c.Reference != wantRefs[i] {
			t.Errorf("calls[%d].Reference = %q, want %q", i, c.Reference, wantRefs[i])
		}
		if c.Status != wantStatus[i] {
			t.Errorf("calls[%d].Status = %q, want %q", i, c.Status, wantStatus[i])
		}
	}
}

func TestExtractKeepsCallPresentInTwoGroups(t *testing.T) {
	calls := extractString(t, docXML(groupXML("4", "W1"), groupXML("1", "W1")))
	if len(calls) != 2 {
		t.Fatalf("Extract len = %d, want 2", len(calls))
	}
	if calls[0].Status != "Pending" || calls[1].Status != "On Hold" {
		t.Errorf("statuses = %q, %q; want Pending, On Hold", calls[0].Status, calls[1].Status)
	}
}

func TestExtractIgnoresUnknownStatusGroups(t *testing.T) {
	calls := extractString(t, docXML(groupXML("12", "W1"), groupXML("x", "W2"), groupXML("7", "W3")))
	if len(calls) != 1 || calls[0].Reference != "W3" {
		t.Fatalf("Extract = %+v, want only W3", calls)
	}
}

func TestExtractMapsUnknownUsers(t *testing.T) {
	var tickets strings.Builder
	for _, id := range []string{"XY001", "XY002", "XY003", "XY004", "abc123"} {
		fmt.Fprintf(&tickets, `<ticket><callref>%s</callref><cust_id>%s</cust_id>`+
			`<logdatex>1</logdatex><prob_info>p</prob_info></ticket>`, id, id)
	}
	doc := docXML(`<status_group id="1"><tickets>` + tickets.String() + `</tickets></status_group>`)

	calls := extractString(t, doc)
	want := []string{"Unknown Student", "Unknown Staff", "Unknown Unknown", "XY004", "abc123"}
	for i, c := range calls {
		if c.Requester != want[i] {
			t.Errorf("calls[%d].Requester = %q, want %q", i, c.Requester, want[i])
		}
	}
}

func TestExtractToleratesMissingFields(t *testing.T) {
	doc := docXML(`<status_group id="3"><tickets>
		<ticket><callref>W1</callref></ticket>
		<ticket><callref>W2</callref><cust_id>u</cust_id><logdatex>soon</logdatex><prob_info>p</prob_info></ticket>
		<ticket><cust_id>u</cust_id><logdatex>1</logdatex><prob_info>q</prob_info></ticket>
	</tickets></status_group>`)

	calls := extractString(t, doc)
	if len(calls) != 3 {
		t.Fatalf("Extract len = %d, want 3", len(calls))
	}

	first := calls[0]
	for _, f := range []string{pipeline.FieldCustID, pipeline.FieldLogDateX, pipeline.FieldProbInfo} {
		if !first.IsAbsent(f) {
			t.Errorf("calls[0] should mark %s absent, got %v", f, first.Absent)
		}
	}
	if first.IsAbsent(pipeline.FieldCallRef) {
		t.Error("calls[0] callref should be present")
	}
	if first.Narrative != "" {
		t.Errorf("calls[0].Narrative = %q, want empty", first.Narrative)
	}

	if !calls[1].IsAbsent(pipeline.FieldLogDateX) || calls[1].LoggedAt != "" {
		t.Errorf("calls[1] unreadable logdatex: LoggedAt=%q Absent=%v", calls[1].LoggedAt, calls[1].Absent)
	}
	if calls[1].Narrative != "p:\n\n" {
		t.Errorf("calls[1].Narrative = %q, want %q", calls[1].Narrative, "p:\n\n")
	}

	if !calls[2].IsAbsent(pipeline.FieldCallRef) || calls[2].Reference != "" {
		t.Errorf("calls[2] should have absent callref, got %+v", calls[2])
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	calls := extractString(t, docXML(`<status_group id="6"><tickets/></status_group>`))
	if calls == nil || len(calls) != 0 {
		t.Fatalf("Extract = %#v, want empty non-nil slice", calls)
	}
}

func TestExtractParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `<export><statuses><status_group id="1">`},
		{"not xml", `callref,cust_id`},
		{"no statuses", `<export><tickets/></export>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestExtractor().Extract(strings.NewReader(tt.doc))
			if !pipeline.IsParseError(err) {
				t.Fatalf("Extract error = %v, want ParseError", err)
			}
		})
	}
}

func TestExtractFileReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "NoohAberdeen141123.xml")
	if err := os.WriteFile(path, []byte("<broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := newTestExtractor().ExtractFile(path)
	if !pipeline.IsParseError(err) {
		t.Fatalf("ExtractFile error = %v, want ParseError", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q should mention %s", err, path)
	}
}

func TestExtractLatin1Export(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>" +
		docXML(`<status_group id="1"><tickets><ticket><callref>W1</callref>` +
			"<cust_id>u</cust_id><logdatex>1</logdatex><prob_info>caf\xe9</prob_info>" +
			`</ticket></tickets></status_group>`)

	calls := extractString(t, doc)
	if calls[0].Narrative != "café:\n\n" {
		t.Errorf("Narrative = %q, want %q", calls[0].Narrative, "café:\n\n")
	}
}

func TestResolvedCallEndToEnd(t *testing.T) {
	doc := docXML(`<status_group id="6"><tickets><ticket>` +
		`<callref>W123</callref><cust_id>XY001</cust_id>` +
		`<logdatex>1700000000</logdatex><prob_info>Disk full</prob_info>` +
		`</ticket></tickets></status_group>`)

	calls := extractString(t, doc)
	if len(calls) != 1 {
		t.Fatalf("Extract len = %d, want 1", len(calls))
	}

	r, err := pipeline.NewRenderer(model.DefaultTemplate)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	msg, err := r.Render(calls[0])
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if !strings.Contains(msg.Subject, "14.11.23 : 22:13:20") {
		t.Errorf("Subject = %q, want formatted timestamp", msg.Subject)
	}
	for _, s := range []string{"Unknown Student", "Disk full", "Resolved", "W123"} {
		if !strings.Contains(msg.Body, s) {
			t.Errorf("Body missing %q:\n%s", s, msg.Body)
		}
	}
}
