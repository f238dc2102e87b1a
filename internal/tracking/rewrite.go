package tracking

import (
	"fmt"
	"net/url"
	"strings"
)

// Instrumenter rewrites outgoing campaign HTML: every http(s) link becomes a
// tracked redirect carrying its position index, and an open pixel is injected
// before </body>.
type Instrumenter struct {
	baseURL string
}

// NewInstrumenter creates an instrumenter. baseURL is the public origin the
// tracking endpoints are served from, without a trailing slash.
func NewInstrumenter(baseURL string) *Instrumenter {
	return &Instrumenter{baseURL: strings.TrimRight(baseURL, "/")}
}

// Instrument returns the HTML with tracked links and the open pixel for one
// (message, recipient) pair.
func (in *Instrumenter) Instrument(html, messageID, email string) string {
	html = in.rewriteLinks(html, messageID, email)

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" />`,
		in.OpenPixelURL(messageID, email))
	if strings.Contains(html, "</body>") {
		return strings.Replace(html, "</body>", pixel+"</body>", 1)
	}
	return html + pixel
}

// OpenPixelURL returns the tracking pixel URL for one (message, recipient) pair.
func (in *Instrumenter) OpenPixelURL(messageID, email string) string {
	return fmt.Sprintf("%s/track/open/%s/%s",
		in.baseURL, url.PathEscape(messageID), url.PathEscape(email))
}

// ClickURL returns the tracked redirect URL for one link position.
func (in *Instrumenter) ClickURL(messageID string, linkIndex int, email, destination string) string {
	return fmt.Sprintf("%s/track/click/%s/%d/%s?url=%s",
		in.baseURL, url.PathEscape(messageID), linkIndex, url.PathEscape(email),
		url.QueryEscape(destination))
}

// rewriteLinks replaces href="http..." attributes with tracked redirects,
// numbering links in document order. Links already pointing at /track/ are
// left alone.
func (in *Instrumenter) rewriteLinks(html, messageID, email string) string {
	var b strings.Builder
	linkIndex := 0
	pos := 0
	for {
		start := strings.Index(html[pos:], `href="http`)
		if start == -1 {
			b.WriteString(html[pos:])
			break
		}
		start += pos + len(`href="`)

		end := strings.Index(html[start:], `"`)
		if end == -1 {
			b.WriteString(html[pos:])
			break
		}

		original := html[start : start+end]
		b.WriteString(html[pos:start])
		if strings.Contains(original, "/track/") {
			b.WriteString(original)
		} else {
			b.WriteString(in.ClickURL(messageID, linkIndex, email, original))
			linkIndex++
		}
		pos = start + end
	}
	return b.String()
}
