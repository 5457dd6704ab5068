package portal

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ErrFormNotFound indicates a page without the expected form.
var ErrFormNotFound = errors.New("form not found in page")

// formPage is what a portal form page contributes to a submission.
type formPage struct {
	csrfToken string
	action    string
	hidden    url.Values
}

// parseFormPage extracts the csrf-token meta tag and the hidden inputs of the
// first form on the page.
func parseFormPage(body []byte) (formPage, error) {
	page := formPage{hidden: url.Values{}}
	z := html.NewTokenizer(bytes.NewReader(body))

	var (
		inForm    bool
		formsSeen int
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				if formsSeen == 0 {
					return page, ErrFormNotFound
				}
				if page.csrfToken == "" {
					page.csrfToken = page.hidden.Get("authenticity_token")
				}
				return page, nil
			}
			return page, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "meta":
				if attr(tok, "name") == "csrf-token" {
					page.csrfToken = attr(tok, "content")
				}
			case "form":
				formsSeen++
				inForm = formsSeen == 1
				if inForm {
					page.action = attr(tok, "action")
				}
			case "input":
				if inForm && strings.EqualFold(attr(tok, "type"), "hidden") {
					if name := attr(tok, "name"); name != "" {
						page.hidden.Set(name, attr(tok, "value"))
					}
				}
			}

		case html.EndTagToken:
			if z.Token().Data == "form" {
				inForm = false
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
