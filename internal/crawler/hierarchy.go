package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ErrMalformedHierarchyResponse is returned when an AJAX hierarchy response
// does not contain an HTML fragment passed to a content-replacement call.
var ErrMalformedHierarchyResponse = errors.New("malformed hierarchy response")

// YearEdge links a make to one of its model years.
type YearEdge struct {
	Year   int
	YearID int
}

// ModelEdge links a model year to the application page of one model.
type ModelEdge struct {
	Model         string
	ApplicationID int
}

// fragmentPattern finds the first string literal passed to a DOM
// content-replacement call: .html("..."), .replaceWith('...'), or
// .innerHTML = `...`.
var fragmentPattern = regexp.MustCompile(
	`(?:\.html\(|\.replaceWith\(|\.innerHTML\s*=)\s*` +
		`(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'|` + "`([^`]*)`" + `)`,
)

// idParams are the query parameters that carry a node identifier, in
// order of preference.
var idParams = []string{"year_id", "application_id", "id"}

// ParseMakeResponse parses the years endpoint response for one make.
// Anchors whose label is not a year or that carry no identifier are skipped.
func ParseMakeResponse(body []byte) ([]YearEdge, error) {
	links, err := parseFragmentLinks(body)
	if err != nil {
		return nil, err
	}

	edges := make([]YearEdge, 0, len(links))
	for _, l := range links {
		year, err := strconv.Atoi(l.label)
		if err != nil || year < 1900 || year > 2100 {
			continue
		}
		edges = append(edges, YearEdge{Year: year, YearID: l.id})
	}
	return edges, nil
}

// ParseModelResponse parses the models endpoint response for one year.
func ParseModelResponse(body []byte) ([]ModelEdge, error) {
	links, err := parseFragmentLinks(body)
	if err != nil {
		return nil, err
	}

	edges := make([]ModelEdge, 0, len(links))
	for _, l := range links {
		edges = append(edges, ModelEdge{Model: l.label, ApplicationID: l.id})
	}
	return edges, nil
}

type fragmentLink struct {
	label string
	id    int
}

func parseFragmentLinks(body []byte) ([]fragmentLink, error) {
	fragment, err := extractFragment(string(body))
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHierarchyResponse, err)
	}

	var links []fragmentLink
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			label := cleanText(nodeText(n))
			if id, ok := anchorID(n); ok && label != "" {
				links = append(links, fragmentLink{label: label, id: id})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

func extractFragment(script string) (string, error) {
	m := fragmentPattern.FindStringSubmatchIndex(script)
	if m == nil {
		return "", ErrMalformedHierarchyResponse
	}
	switch {
	case m[2] >= 0:
		return unescapeJS(script[m[2]:m[3]]), nil
	case m[4] >= 0:
		return unescapeJS(script[m[4]:m[5]]), nil
	default:
		return script[m[6]:m[7]], nil
	}
}

// anchorID reads the node identifier from data-id, then from the known
// query parameters of href, then from a trailing numeric path segment.
func anchorID(n *html.Node) (int, bool) {
	if v := getAttr(n, "data-id"); v != "" {
		if id, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return id, true
		}
	}

	href := getAttr(n, "href")
	if href == "" {
		return 0, false
	}
	u, err := url.Parse(href)
	if err != nil {
		return 0, false
	}

	q := u.Query()
	for _, p := range idParams {
		if v := q.Get(p); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				return id, true
			}
		}
	}

	segments := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	if last := segments[len(segments)-1]; last != "" {
		if id, err := strconv.Atoi(last); err == nil {
			return id, true
		}
	}
	return 0, false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// unescapeJS decodes the escape sequences of a JavaScript string literal.
// Unknown escapes keep the escaped character.
func unescapeJS(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b', 'f', 'v':
			sb.WriteByte(' ')
		case '\n':
			// line continuation
		case 'u':
			if r, n := parseHexRune(s[i+1:], 4); n > 0 {
				sb.WriteRune(r)
				i += n
				continue
			}
			sb.WriteByte('u')
		case 'x':
			if r, n := parseHexRune(s[i+1:], 2); n > 0 {
				sb.WriteRune(r)
				i += n
				continue
			}
			sb.WriteByte('x')
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func parseHexRune(s string, width int) (rune, int) {
	if len(s) < width {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[:width], 16, 32)
	if err != nil {
		return 0, 0
	}
	r := rune(v)
	if !utf8.ValidRune(r) {
		return utf8.RuneError, width
	}
	return r, width
}
