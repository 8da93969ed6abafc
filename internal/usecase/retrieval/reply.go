package retrieval

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/kailas-cloud/menudex/internal/domain/search/result"
)

// DefaultCurrency prefixes prices in rendered replies.
const DefaultCurrency = "₹"

const (
	replyNoMatches = "Sorry, I couldn't find anything matching that on our menu."
	replyClosing   = "Tell me which one you'd like to add!"
)

// FormatReply renders results as the chat reply: a heading, items grouped by
// category in first-seen order, then a closing prompt.
func FormatReply(normalizedQuery string, results []result.Scored, currency string) string {
	if len(results) == 0 {
		return replyNoMatches
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	heading := ""
	for i := range results {
		if c := results[i].Metadata().Category; c != "" {
			heading = c
			break
		}
	}
	if heading == "" {
		heading = titleCase(normalizedQuery)
	}

	var b strings.Builder
	if heading != "" {
		b.WriteString("Here are some " + heading + " options from our menu:")
	} else {
		b.WriteString("Here are some items from our menu:")
	}

	var order []string
	groups := make(map[string][]string)
	for i := range results {
		md := results[i].Metadata()
		if md.Name == "" {
			continue
		}
		line := "• " + md.Name
		if md.Price != 0 {
			line += " — " + currency + strconv.FormatFloat(md.Price, 'f', -1, 64)
		}
		if _, ok := groups[md.Category]; !ok {
			order = append(order, md.Category)
		}
		groups[md.Category] = append(groups[md.Category], line)
	}

	for _, cat := range order {
		b.WriteString("\n")
		if cat != "" {
			b.WriteString("\n**" + cat + "**")
		}
		for _, line := range groups[cat] {
			b.WriteString("\n" + line)
		}
	}

	b.WriteString("\n\n" + replyClosing)
	return b.String()
}

// titleCase upper-cases every letter that follows a non-letter and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
