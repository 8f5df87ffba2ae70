// Package page locates the subscription confirmation link inside the
// provisioning page returned by the self-provisioning gateway.
package page

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
)

// BasicSubscribeLinkText is the anchor label of the basic visual voicemail
// subscription link as it appears verbatim in well-formed carrier pages.
const BasicSubscribeLinkText = "Subscribe to Basic Visual Voice Mail"

// FindLinkByText parses doc as HTML and returns the href of the first anchor
// whose rendered text exactly equals label. Matching is case-sensitive with
// no trimming. When no anchor matches, the returned error carries the
// concatenation of every examined anchor text for diagnostics.
func FindLinkByText(doc, label string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		// html.Parse recovers from almost anything; a hard error means the
		// page is unusable.
		return "", errors.WrapKind(err, errors.KindLinkNotFound, "unparseable provisioning page")
	}

	var fulltext strings.Builder
	href := findAnchor(root, label, &fulltext)
	if href == "" {
		slog.Error("subscribe_link_not_found", "anchor_texts", fulltext.String())
		return "", errors.Newf(errors.KindLinkNotFound, "subscribe link not found: %s", fulltext.String())
	}
	return href, nil
}

func findAnchor(n *html.Node, label string, fulltext *strings.Builder) string {
	if n.Type == html.ElementNode && n.Data == "a" {
		if target := anchorHref(n); target != "" {
			text := renderedText(n)
			if text == label {
				return target
			}
			fulltext.WriteString(text)
			// Anchors do not nest; no need to descend further.
			return ""
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := findAnchor(c, label, fulltext); href != "" {
			return href
		}
	}
	return ""
}

func anchorHref(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			return attr.Val
		}
	}
	return ""
}

// renderedText concatenates all text nodes beneath n, mirroring how the
// anchor label renders on screen.
func renderedText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
