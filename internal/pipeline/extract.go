package pipeline

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/nhle/oohrelay/internal/catalog"
	"github.com/nhle/oohrelay/internal/model"
)

// LoggedAtLayout formats a call's contact time.
const LoggedAtLayout = "02.01.06 : 15:04:05"

// Source field names, as they appear in the export.
const (
	FieldCallRef  = "callref"
	FieldCustID   = "cust_id"
	FieldLogDateX = "logdatex"
	FieldProbInfo = "prob_info"
)

type exportDocument struct {
	Statuses *exportStatuses `xml:"statuses"`
}

type exportStatuses struct {
	Groups []statusGroup `xml:"status_group"`
}

type statusGroup struct {
	ID      string   `xml:"id,attr"`
	Tickets []ticket `xml:"tickets>ticket"`
}

// ticket fields are pointers so a missing element can be told apart from
// an empty one.
type ticket struct {
	CallRef  *string  `xml:"callref"`
	CustID   *string  `xml:"cust_id"`
	LogDateX *string  `xml:"logdatex"`
	ProbInfo *string  `xml:"prob_info"`
	Updates  []update `xml:"updates>update"`
}

type update struct {
	Texts []string `xml:"updatetxt"`
}

// field returns the element's text, or false when it was absent.
func field(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}

// Extractor turns an export document into calls ordered by status code
// and then by position in the document.
type Extractor struct {
	catalog  *catalog.Catalog
	location *time.Location
	logger   *slog.Logger
}

// NewExtractor creates an Extractor. Contact times are rendered in loc;
// a nil loc means time.Local.
func NewExtractor(
	c *catalog.Catalog, loc *time.Location, logger *slog.Logger,
) *Extractor {
	if loc == nil {
		loc = time.Local
	}
	return &Extractor{catalog: c, location: loc, logger: logger}
}

// ExtractFile opens path and extracts its calls.
func (e *Extractor) ExtractFile(path string) ([]model.Call, error) {
	e.logger.Debug("getting root for xml file", "file", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export %s: %w", path, err)
	}
	defer f.Close()

	calls, err := e.Extract(f)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) && parseErr.Source == "" {
			parseErr.Source = path
		}
		return nil, err
	}
	return calls, nil
}

// Extract parses an export document. A malformed document or one without
// a statuses element is a ParseError; tickets with missing fields are kept
// and the missing names recorded on the call.
func (e *Extractor) Extract(r io.Reader) ([]model.Call, error) {
	e.logger.Debug("parsing xml file")

	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity

	var doc exportDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if doc.Statuses == nil {
		return nil, &ParseError{Err: errors.New("missing statuses element")}
	}

	byCode := make(map[int][]ticket)
	for _, g := range doc.Statuses.Groups {
		code, err := strconv.Atoi(strings.TrimSpace(g.ID))
		if err != nil {
			e.logger.Debug("ignoring status group with bad id", "id", g.ID)
			continue
		}
		if _, ok := e.catalog.Label(code); !ok {
			e.logger.Debug("ignoring unknown status group",
				"code", code, "tickets", len(g.Tickets))
			continue
		}
		byCode[code] = append(byCode[code], g.Tickets...)
	}

	calls := []model.Call{}
	for _, st := range e.catalog.Statuses() {
		e.logger.Debug("checking status code", "code", st.Code)

		tickets := byCode[st.Code]
		for _, t := range tickets {
			calls = append(calls, e.toCall(t, st))
		}

		if len(tickets) > 0 {
			e.logger.Info("found calls in status",
				"count", len(tickets), "code", st.Code, "status", st.Label)
		} else {
			e.logger.Debug("found no calls in status",
				"code", st.Code, "status", st.Label)
		}
	}

	e.logger.Info("parsed calls", "count", len(calls))
	return calls, nil
}

func (e *Extractor) toCall(t ticket, st catalog.Status) model.Call {
	call := model.Call{Status: st.Label, StatusCode: st.Code}

	absent := func(name string) {
		call.Absent = append(call.Absent, name)
	}

	if ref, ok := field(t.CallRef); ok {
		call.Reference = strings.TrimSpace(ref)
	} else {
		absent(FieldCallRef)
	}

	if user, ok := field(t.CustID); ok {
		user = strings.TrimSpace(user)
		resolved, replaced := catalog.ResolveRequester(user)
		if replaced {
			e.logger.Debug("user marked as placeholder",
				"cust_id", user, "name", resolved)
		}
		call.Requester = resolved
	} else {
		absent(FieldCustID)
	}

	if raw, ok := field(t.LogDateX); ok {
		loggedAt, err := e.formatEpoch(raw)
		if err != nil {
			e.logger.Warn("unreadable log time",
				"callref", call.Reference, "logdatex", raw, "error", err)
			absent(FieldLogDateX)
		} else {
			call.LoggedAt = loggedAt
		}
	} else {
		absent(FieldLogDateX)
	}

	var b strings.Builder
	if prob, ok := field(t.ProbInfo); ok {
		b.WriteString(prob)
		b.WriteString(":\n\n")
	} else {
		absent(FieldProbInfo)
	}
	for _, u := range t.Updates {
		for _, text := range u.Texts {
			b.WriteString("\n")
			b.WriteString(text)
		}
	}
	call.Narrative = html.UnescapeString(b.String())

	if len(call.Absent) > 0 {
		e.logger.Warn("ticket has missing fields",
			"callref", call.Reference, "absent", call.Absent)
	}
	return call
}

func (e *Extractor) formatEpoch(raw string) (string, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return "", err
	}
	return time.Unix(secs, 0).In(e.location).Format(LoggedAtLayout), nil
}
