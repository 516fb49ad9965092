package parser

import (
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/Raam977/citius-scraper/internal/model"
)

// creditorPattern matches inline creditor text such as
// "Credor: BANCO EXEMPLO, S.A. NIF/NIPC: 500000000".
var creditorPattern = regexp.MustCompile(`Credor:\s*(.*?)(?:\s*NIF/NIPC:\s*(.*?))?$`)

// field identifies the Record field a label maps to.
type field int

const (
	fieldUnknown field = iota
	fieldCourt
	fieldActType
	fieldReference
	fieldCaseNumber
	fieldKind
	fieldDate
	fieldFilingDate
	fieldInsolvent
	fieldIdentifier
	fieldAdministrator
	fieldAdministratorIdentifier
	fieldCreditor
	fieldCreditorIdentifier
	fieldDescription
)

// labels maps folded, NFC-normalized labels to record fields. The portal
// has used both pre- and post-1990 spelling over the years.
var labels = map[string]field{
	"tribunal":                     fieldCourt,
	"ato":                          fieldActType,
	"acto":                         fieldActType,
	"referência":                   fieldReference,
	"referencia":                   fieldReference,
	"processo":                     fieldCaseNumber,
	"nº processo":                  fieldCaseNumber,
	"espécie":                      fieldKind,
	"especie":                      fieldKind,
	"data":                         fieldDate,
	"data de publicação":           fieldDate,
	"data da propositura da ação":  fieldFilingDate,
	"data da propositura da acção": fieldFilingDate,
	"insolvente":                   fieldInsolvent,
	"interveniente":                fieldInsolvent,
	"nif/nipc":                     fieldIdentifier,
	"nif":                          fieldIdentifier,
	"nipc":                         fieldIdentifier,
	"administrador insolvência":    fieldAdministrator,
	"administrador da insolvência": fieldAdministrator,
	"administrador de insolvência": fieldAdministrator,
	"administrador judicial":       fieldAdministrator,
	"administrador nif/nipc":       fieldAdministratorIdentifier,
	"credor":                       fieldCreditor,
	"credor nif/nipc":              fieldCreditorIdentifier,
	"descrição":                    fieldDescription,
	"descricao":                    fieldDescription,
	"texto":                        fieldDescription,
}

// Pagination describes how a result page links to the next one.
type Pagination struct {
	// HasNext is true when an enabled next-page control is present.
	HasNext bool

	// Next is the postback that loads the next page.
	Next Postback

	// TotalHint is the total number of documents announced by the portal,
	// or 0 when unknown.
	TotalHint int
}

// Done reports whether no further page exists.
func (p Pagination) Done() bool {
	return !p.HasNext
}

// Result is the outcome of parsing one result page.
type Result struct {
	// Records holds the identifiable rows in page order.
	Records []model.Record

	// Pagination is the page's pagination info.
	Pagination Pagination

	// NoResults is true when the portal reported an empty result set.
	NoResults bool

	// Message is the portal's no-results text.
	Message string

	// Skipped holds one ParseError per dropped row.
	Skipped []*ParseError
}

// Parser turns result pages into records.
type Parser struct {
	extractor Extractor
	logger    *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// WithExtractor replaces the markup extractor.
func WithExtractor(e Extractor) Option {
	return func(p *Parser) {
		if e != nil {
			p.extractor = e
		}
	}
}

// New creates a Parser. baseURL resolves relative document links.
func New(baseURL string, opts ...Option) (*Parser, error) {
	extractor, err := NewGoqueryExtractor(baseURL)
	if err != nil {
		return nil, err
	}

	p := &Parser{extractor: extractor}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Parse extracts records and pagination info from one result page.
//
// A page showing the portal's no-results message yields an empty, final
// Result and no error. Rows that have neither a reference nor a case number
// are skipped and reported in Result.Skipped. A page without any results
// container returns a page-scoped *ParseError.
func (p *Parser) Parse(body []byte) (*Result, error) {
	doc, err := p.extractor.Extract(body)
	if err != nil {
		return nil, &ParseError{Row: -1, Reason: "unreadable page", Err: err}
	}

	if msg, ok := doc.NoResults(); ok {
		p.logger.Info("portal reported no results", "message", msg)
		return &Result{Records: make([]model.Record, 0), NoResults: true, Message: msg}, nil
	}

	if !doc.HasResults() {
		return nil, &ParseError{Row: -1, Reason: "no results container", Err: ErrUnrecognizedPage}
	}

	result := &Result{Records: make([]model.Record, 0)}
	if total, ok := doc.TotalHint(); ok {
		result.Pagination.TotalHint = total
		p.logger.Debug("documents found", "total", total)
	}
	if next, ok := doc.NextPage(); ok {
		result.Pagination.HasNext = true
		result.Pagination.Next = next
	}

	for i, row := range doc.Rows() {
		record := p.recordFromRow(row)
		if !record.Identifiable() {
			perr := &ParseError{Row: i, Reason: "row has no reference or case number: " + truncate(row.Text, 80)}
			p.logger.Warn("skipping row", "row", i, "reason", perr.Reason)
			result.Skipped = append(result.Skipped, perr)
			continue
		}
		result.Records = append(result.Records, record)
	}

	return result, nil
}

// ParseCreditors extracts the creditor list from a creditor-detail page.
// The list keeps the portal's order and duplicates. An empty list is a
// valid outcome when the page shows an empty grid or panel.
func (p *Parser) ParseCreditors(body []byte) ([]model.Creditor, error) {
	doc, err := p.extractor.Extract(body)
	if err != nil {
		return nil, &ParseError{Row: -1, Reason: "unreadable creditor page", Err: err}
	}

	creditors := make([]model.Creditor, 0)

	if rows, ok := doc.CreditorGrid(); ok {
		for _, cells := range rows {
			if len(cells) == 0 {
				continue
			}
			name := strings.TrimSpace(strings.TrimPrefix(cells[0], "Credor:"))
			if name == "" {
				continue
			}
			c := model.Creditor{Name: name}
			if len(cells) > 1 {
				c.Identifier = strings.TrimSpace(strings.TrimPrefix(cells[1], "NIF/NIPC:"))
			}
			creditors = append(creditors, c)
		}
		return creditors, nil
	}

	spans, panel := doc.CreditorSpans()
	creditors = append(creditors, inlineCreditors(spans)...)
	if len(creditors) == 0 && !panel {
		return nil, &ParseError{Row: -1, Reason: "no creditor list", Err: ErrUnrecognizedPage}
	}
	return creditors, nil
}

// recordFromRow maps a row's labels to record fields.
func (p *Parser) recordFromRow(row Row) model.Record {
	record := model.Record{
		Creditors: make([]model.Creditor, 0),
		Links:     row.Links,
	}

	// NIF/NIPC labels follow the party they belong to.
	party := fieldInsolvent
	for _, f := range row.Fields {
		target := labels[normalize(f.Label)]
		switch target {
		case fieldIdentifier:
			switch party {
			case fieldAdministrator:
				target = fieldAdministratorIdentifier
			case fieldCreditor:
				target = fieldCreditorIdentifier
			}
		case fieldInsolvent, fieldAdministrator, fieldCreditor:
			party = target
		}
		setField(&record, target, f.Value)
	}

	inline := inlineCreditors(row.Spans)
	if record.SingleCreditorFallback == "" && len(inline) > 0 {
		record.SingleCreditorFallback = inline[0].Name
		record.SingleCreditorFallbackIdentifier = inline[0].Identifier
	}

	if row.Expand != nil {
		record.ExpandTarget = row.Expand.Target
		record.ExpandArgument = row.Expand.Argument
	} else {
		record.Creditors = append(record.Creditors, inline...)
	}

	return record
}

// normalize folds case and composes accents so that "REFERÊNCIA" and a
// decomposed "Referência" both match the same key.
func normalize(label string) string {
	return cases.Fold().String(norm.NFC.String(collapse(label)))
}

// setField stores value in the field unless it is already set.
func setField(r *model.Record, f field, value string) {
	var dst *string
	switch f {
	case fieldCourt:
		dst = &r.Court
	case fieldActType:
		dst = &r.ActType
	case fieldReference:
		dst = &r.Reference
	case fieldCaseNumber:
		dst = &r.CaseNumber
	case fieldKind:
		dst = &r.Kind
	case fieldDate:
		dst = &r.Date
	case fieldFilingDate:
		dst = &r.FilingDate
	case fieldInsolvent:
		dst = &r.InsolventParty
	case fieldIdentifier:
		dst = &r.InsolventIdentifier
	case fieldAdministrator:
		dst = &r.Administrator
	case fieldAdministratorIdentifier:
		dst = &r.AdministratorIdentifier
	case fieldCreditor:
		dst = &r.SingleCreditorFallback
	case fieldCreditorIdentifier:
		dst = &r.SingleCreditorFallbackIdentifier
	case fieldDescription:
		dst = &r.Description
	default:
		return
	}
	if *dst == "" {
		*dst = value
	}
}

// inlineCreditors reads "Credor: NAME NIF/NIPC: ID" texts in order.
func inlineCreditors(texts []string) []model.Creditor {
	creditors := make([]model.Creditor, 0)
	for _, text := range texts {
		m := creditorPattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		creditors = append(creditors, model.Creditor{Name: name, Identifier: strings.TrimSpace(m[2])})
	}
	return creditors
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
