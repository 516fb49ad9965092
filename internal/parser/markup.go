package parser

import (
	"bytes"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element ids and classes used by the portal.
const (
	idNoResults      = "#ctl00_ContentPlaceHolder1_lblNoResults"
	idResultsDiv     = "#ctl00_ContentPlaceHolder1_divResultados"
	idResultsList    = "#ctl00_ContentPlaceHolder1_dlResultados"
	idResultsGrid    = "#ctl00_ContentPlaceHolder1_gvResults"
	idCreditorsGrid  = "#ctl00_ContentPlaceHolder1_gvCredores"
	idCreditorsPanel = "#ctl00_ContentPlaceHolder1_divCredores"
	classResultRow   = "div.resultadocdital"
	selectorNextPage = "a[id$='lnkNext'], a[id$='lnkSeguinte'], a.pagerNext"

	// textSectionMarker heads the plain-text layout, where every notice
	// starts at a "Tribunal:" label.
	textSectionMarker = "Todos os tribunais"
	textSectionStart  = "Tribunal:"
)

// idLabels maps fragments of label control ids to the field they hold,
// e.g. <span id="ctl00_ContentPlaceHolder1_dlResultados_ctl00_lblProcesso">.
var idLabels = []struct {
	fragment string
	label    string
}{
	{"lblProcesso", "Processo"},
	{"lblTribunal", "Tribunal"},
	{"lblData", "Data"},
	{"lblInterveniente", "Interveniente"},
	{"lblNIF", "NIF/NIPC"},
	{"lblDescricao", "Descrição"},
	{"lblTexto", "Descrição"},
}

var (
	postbackPattern  = regexp.MustCompile(`__doPostBack\(\s*'([^']*)'\s*,\s*'([^']*)'\s*\)`)
	totalHintPattern = regexp.MustCompile(`(\d+)\s+documentos?\s+encontrados?`)

	// labelledPattern matches spans such as "Credor: ..." that carry their
	// own label and therefore end the value of a preceding label.
	labelledPattern = regexp.MustCompile(`^\p{L}[\p{L} /]*:`)

	// sectionLabelPattern finds the known labels of a plain-text notice.
	sectionLabelPattern = compileSectionLabels()
)

// compileSectionLabels builds a case-insensitive alternation of every known
// label, longest first so that "Data da propositura da ação" wins over
// "Data".
func compileSectionLabels() *regexp.Regexp {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, regexp.QuoteMeta(name))
	}
	slices.SortFunc(names, func(a, b string) int {
		if n := len(b) - len(a); n != 0 {
			return n
		}
		return strings.Compare(a, b)
	})
	return regexp.MustCompile(`(?i)(?:^|[\s\p{Zs}])(` + strings.Join(names, "|") + `)[\s\p{Zs}]*:`)
}

// Field is one label/value pair of a result row, e.g. "Tribunal" and
// "Lisboa - Juízo de Comércio". Labels keep the portal's spelling without
// the trailing colon.
type Field struct {
	Label string
	Value string
}

// Postback identifies a server-side control triggered through
// __doPostBack(target, argument).
type Postback struct {
	Target   string
	Argument string
}

// Row is one result row as found in the markup.
type Row struct {
	// Fields holds the label/value pairs in document order.
	Fields []Field

	// Spans holds the whitespace-collapsed text of every span in the row.
	Spans []string

	// Links holds absolute URLs of the row's document links.
	Links []string

	// Expand is the row's creditor-list control, if it has one.
	Expand *Postback

	// Text is the whitespace-collapsed text of the whole row.
	Text string
}

// Document is a page reduced to the pieces the parser needs.
type Document interface {
	// NoResults returns the portal's "no results" message, if shown.
	NoResults() (string, bool)

	// HasResults reports whether a results container, or a plain-text
	// section holding at least one notice, is present.
	HasResults() bool

	// Rows returns the result rows in document order.
	Rows() []Row

	// NextPage returns the enabled next-page control, if any.
	NextPage() (Postback, bool)

	// TotalHint returns the "N documentos encontrados" count, if shown.
	TotalHint() (int, bool)

	// CreditorGrid returns the cell texts of each creditor grid row,
	// excluding the header. ok is false when the page has no grid.
	CreditorGrid() (rows [][]string, ok bool)

	// CreditorSpans returns span texts from the creditor panel, or from the
	// whole page when there is no panel. panel reports which one it was.
	CreditorSpans() (spans []string, panel bool)
}

// Extractor turns a page body into a Document.
type Extractor interface {
	Extract(body []byte) (Document, error)
}

// GoqueryExtractor is the default Extractor.
type GoqueryExtractor struct {
	// baseURL resolves relative document links.
	baseURL *url.URL
}

// NewGoqueryExtractor creates an extractor resolving links against baseURL.
func NewGoqueryExtractor(baseURL string) (*GoqueryExtractor, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &GoqueryExtractor{baseURL: u}, nil
}

// Extract parses body.
func (e *GoqueryExtractor) Extract(body []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &goqueryDocument{doc: doc, baseURL: e.baseURL}, nil
}

type goqueryDocument struct {
	doc     *goquery.Document
	baseURL *url.URL
}

func (d *goqueryDocument) NoResults() (string, bool) {
	msg := collapse(d.doc.Find(idNoResults).First().Text())
	return msg, msg != ""
}

func (d *goqueryDocument) HasResults() bool {
	if d.doc.Find(idResultsDiv+", "+idResultsList+", "+idResultsGrid).Length() > 0 {
		return true
	}
	return d.textSection() != nil
}

// Rows tries the layouts in turn: the grid, rows marked with the result
// class, any other child of a results container, and finally the plain-text
// sections.
func (d *goqueryDocument) Rows() []Row {
	rows := make([]Row, 0)

	if grid := d.doc.Find(idResultsGrid).First(); grid.Length() > 0 {
		return d.gridRows(grid)
	}

	containers := d.doc.Find(idResultsDiv + ", " + idResultsList)
	containers.Find(classResultRow).Each(func(_ int, s *goquery.Selection) {
		rows = append(rows, d.divRow(s))
	})
	if len(rows) > 0 {
		return rows
	}

	// Without the result class, keep the children that carry any label.
	containers.ChildrenFiltered("div, span").Not(idResultsDiv+", "+idResultsList).Each(func(_ int, s *goquery.Selection) {
		if row := d.divRow(s); len(row.Fields) > 0 {
			rows = append(rows, row)
		}
	})
	if len(rows) > 0 {
		return rows
	}

	if section := d.textSection(); section != nil {
		return textRows(section)
	}
	return rows
}

// divRow reads a row whose fields are either controls named after the
// field (lblProcesso, lblTribunal, ...) or laid out as
// <strong>Label:</strong> value<br/>. Id-labelled fields come first.
func (d *goqueryDocument) divRow(s *goquery.Selection) Row {
	row := Row{Text: collapse(s.Text())}

	for _, l := range idLabels {
		el := s.Find("span[id*='" + l.fragment + "'], div[id*='" + l.fragment + "']").First()
		if el.Length() == 0 {
			continue
		}
		if value := stripLabel(collapse(el.Text())); value != "" {
			row.Fields = append(row.Fields, Field{Label: l.label, Value: value})
		}
	}

	s.Find("strong").Each(func(_ int, label *goquery.Selection) {
		name := strings.TrimSuffix(strings.TrimSpace(label.Text()), ":")
		if name == "" {
			return
		}
		row.Fields = append(row.Fields, Field{Label: name, Value: valueAfter(label.Nodes[0])})
	})

	s.Find("span").Each(func(_ int, span *goquery.Selection) {
		if text := collapse(span.Text()); text != "" {
			row.Spans = append(row.Spans, text)
		}
	})

	d.readLinks(s, &row)
	return row
}

// gridRows reads the tabular layout, pairing header cells with data cells.
func (d *goqueryDocument) gridRows(grid *goquery.Selection) []Row {
	rows := make([]Row, 0)
	var headers []string

	grid.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if th := tr.Find("th"); th.Length() > 0 || (i == 0 && headers == nil) {
			cells := th
			if cells.Length() == 0 {
				cells = tr.Find("td")
			}
			headers = headers[:0]
			cells.Each(func(_ int, c *goquery.Selection) {
				headers = append(headers, strings.TrimSuffix(strings.TrimSpace(c.Text()), ":"))
			})
			return
		}

		cells := tr.ChildrenFiltered("td")
		if cells.Length() == 0 {
			return
		}
		row := Row{Text: collapse(tr.Text())}
		cells.Each(func(j int, c *goquery.Selection) {
			if j < len(headers) && headers[j] != "" {
				row.Fields = append(row.Fields, Field{Label: headers[j], Value: strings.TrimSpace(c.Text())})
			}
		})
		tr.Find("span").Each(func(_ int, span *goquery.Selection) {
			if text := collapse(span.Text()); text != "" {
				row.Spans = append(row.Spans, text)
			}
		})
		d.readLinks(tr, &row)
		rows = append(rows, row)
	})

	return rows
}

// textSection returns the block holding the plain-text layout: the
// nearest div around the section marker that contains a notice.
func (d *goqueryDocument) textSection() *html.Node {
	var marker *html.Node
	var find func(n *html.Node)
	find = func(n *html.Node) {
		for c := n.FirstChild; c != nil && marker == nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode && strings.Contains(c.Data, textSectionMarker):
				marker = c
			case c.Type == html.ElementNode && skipText(c.Data):
			default:
				find(c)
			}
		}
	}
	for _, n := range d.doc.Nodes {
		find(n)
	}
	if marker == nil {
		return nil
	}

	for n := marker.Parent; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.Data == "div" && strings.Contains(nodeText(n), textSectionStart) {
			return n
		}
	}
	return nil
}

// textRows splits a plain-text block into one row per "Tribunal:" label.
// Creditor labels, with the NIF/NIPC that follows them, become
// "Credor: NAME NIF/NIPC: ID" spans like the ones of the div layout.
func textRows(section *html.Node) []Row {
	var sb strings.Builder
	blockText(section, &sb)
	text := sb.String()

	rows := make([]Row, 0)
	starts := make([]int, 0)
	for _, loc := range sectionLabelPattern.FindAllStringSubmatchIndex(text, -1) {
		if text[loc[2]:loc[3]] == strings.TrimSuffix(textSectionStart, ":") {
			starts = append(starts, loc[2])
		}
	}
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		rows = append(rows, textRow(text[start:end]))
	}
	return rows
}

func textRow(section string) Row {
	row := Row{Text: collapse(section)}

	matches := sectionLabelPattern.FindAllStringSubmatchIndex(section, -1)
	creditor := -1
	for i, loc := range matches {
		end := len(section)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		label := section[loc[2]:loc[3]]
		value := collapse(section[loc[1]:end])

		switch labels[normalize(label)] {
		case fieldCreditor:
			row.Spans = append(row.Spans, "Credor: "+value)
			creditor = len(row.Spans) - 1
			continue
		case fieldIdentifier:
			if creditor >= 0 {
				row.Spans[creditor] += " NIF/NIPC: " + value
				creditor = -1
				continue
			}
		}
		creditor = -1
		if value != "" {
			row.Fields = append(row.Fields, Field{Label: label, Value: value})
		}
	}
	return row
}

// readLinks collects document links and the creditor-list control.
func (d *goqueryDocument) readLinks(s *goquery.Selection, row *Row) {
	s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if pb, ok := parsePostback(href); ok {
			id := strings.ToLower(a.AttrOr("id", "") + " " + pb.Target)
			if row.Expand == nil && strings.Contains(id, "credores") {
				row.Expand = &pb
			}
			return
		}
		if resolved := d.resolveURL(href); resolved != "" {
			row.Links = append(row.Links, resolved)
		}
	})
}

func (d *goqueryDocument) NextPage() (Postback, bool) {
	var next Postback
	found := false
	d.doc.Find(selectorNextPage).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if _, disabled := a.Attr("disabled"); disabled || a.HasClass("aspNetDisabled") {
			return true
		}
		if pb, ok := parsePostback(a.AttrOr("href", "")); ok {
			next, found = pb, true
			return false
		}
		return true
	})
	return next, found
}

func (d *goqueryDocument) TotalHint() (int, bool) {
	m := totalHintPattern.FindStringSubmatch(collapse(d.doc.Text()))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (d *goqueryDocument) CreditorGrid() ([][]string, bool) {
	grid := d.doc.Find(idCreditorsGrid).First()
	if grid.Length() == 0 {
		return nil, false
	}
	rows := make([][]string, 0)
	grid.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() == 0 {
			return
		}
		texts := make([]string, 0, cells.Length())
		cells.Each(func(_ int, c *goquery.Selection) {
			texts = append(texts, strings.TrimSpace(c.Text()))
		})
		rows = append(rows, texts)
	})
	return rows, true
}

func (d *goqueryDocument) CreditorSpans() ([]string, bool) {
	scope := d.doc.Find(idCreditorsPanel).First()
	panel := scope.Length() > 0
	if !panel {
		scope = d.doc.Selection
	}
	spans := make([]string, 0)
	scope.Find("span").Each(func(_ int, span *goquery.Selection) {
		if text := collapse(span.Text()); text != "" {
			spans = append(spans, text)
		}
	})
	return spans, panel
}

// resolveURL resolves a relative link against the base URL. Script, mail
// and fragment links are dropped.
func (d *goqueryDocument) resolveURL(href string) string {
	if href == "" || href == "#" ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if d.baseURL == nil {
		return u.String()
	}
	return d.baseURL.ResolveReference(u).String()
}

// valueAfter collects the text following a label node up to the next line
// break or label.
func valueAfter(label *html.Node) string {
	var sb strings.Builder
	for n := label.NextSibling; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && (n.Data == "br" || n.Data == "strong") {
			break
		}
		if n.Type == html.ElementNode && n.Data == "span" && labelledPattern.MatchString(collapse(nodeText(n))) {
			break
		}
		sb.WriteString(nodeText(n))
	}
	return strings.TrimSpace(sb.String())
}

// stripLabel drops a known "Label:" prefix that some controls repeat in
// their text.
func stripLabel(text string) string {
	i := strings.Index(text, ":")
	if i <= 0 || !labelledPattern.MatchString(text) {
		return text
	}
	if _, ok := labels[normalize(text[:i])]; !ok {
		return text
	}
	return strings.TrimSpace(text[i+1:])
}

// blockElements end a line of text.
var blockElements = map[string]bool{
	"br": true, "div": true, "p": true, "li": true, "tr": true,
	"table": true, "h1": true, "h2": true, "h3": true, "h4": true,
}

// blockText writes the text of n with a newline around block elements.
func blockText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
	case html.ElementNode:
		if skipText(n.Data) {
			return
		}
		if blockElements[n.Data] {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			blockText(c, sb)
		}
		if blockElements[n.Data] {
			sb.WriteByte('\n')
		}
	}
}

// skipText reports elements whose text is never page content.
func skipText(tag string) bool {
	switch tag {
	case "script", "style", "select", "option", "textarea":
		return true
	}
	return false
}

func nodeText(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return ""
		}
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			sb.WriteString(nodeText(c))
		}
		return sb.String()
	default:
		return ""
	}
}

func parsePostback(href string) (Postback, bool) {
	m := postbackPattern.FindStringSubmatch(href)
	if m == nil {
		return Postback{}, false
	}
	return Postback{Target: m[1], Argument: m[2]}, true
}

// collapse trims s and folds internal whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
