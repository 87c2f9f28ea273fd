package format

import (
	"math/rand"
	"strings"

	"dealcast/internal/models"
)

// Title shortening steps for length-constrained channels.
const (
	titleDecrement = 10 // runes removed per shortening step
	minTitleRunes  = 12 // below this, give up and use the minimal template
)

var microblogHooks = []string{
	"Deal alert 🚨",
	"Price drop 📉",
	"Spotted today 👀",
	"Worth a look ⌚",
}

type microblog struct {
	limit int
	r     *rand.Rand
}

func newMicroblog(opts Options) *microblog {
	return &microblog{limit: limitOr(opts, MicroblogLimit), r: opts.Rand}
}

func (f *microblog) Limit() int { return f.limit }

// Format renders the rich template and progressively shortens the title in
// fixed decrements until the text fits; if no shortening reaches the limit
// it falls back to a minimal template guaranteed to fit.
func (f *microblog) Format(d models.Deal) (Payload, error) {
	tags := TagsFor(d.Brand, d.Model, d.Title, 3)
	hook := hookFor(f.r, d.ID, microblogHooks)

	// Always try the full rich render once; titles already shorter than the
	// shortening floor must not skip straight to the minimal fallback.
	title := strings.TrimSpace(d.Title)
	for n := max(RuneLen(title), minTitleRunes); n >= minTitleRunes; n -= titleDecrement {
		text := f.rich(hook, TruncRunes(title, n), d, tags)
		if RuneLen(text) <= f.limit {
			return Payload{Text: text, MediaURL: d.ImageURL, Tags: tags}, nil
		}
	}

	text := f.minimal(d)
	if RuneLen(text) > f.limit {
		text = TruncRunes(text, f.limit)
	}
	return Payload{Text: text, MediaURL: d.ImageURL, Tags: tags}, nil
}

func (f *microblog) rich(hook, title string, d models.Deal, tags []string) string {
	var b strings.Builder
	if hook != "" {
		b.WriteString(hook)
		b.WriteString("\n")
	}
	b.WriteString(title)
	if d.OriginalPrice != nil && *d.OriginalPrice > d.Price {
		b.WriteString("\nWas ")
		b.WriteString(Money(*d.OriginalPrice))
		b.WriteString(", now ")
		b.WriteString(Money(d.Price))
		if tag := discountTag(d); tag != "" {
			b.WriteString(" ")
			b.WriteString(tag)
		}
	} else {
		b.WriteString("\n")
		b.WriteString(Money(d.Price))
	}
	if d.URL != "" {
		b.WriteString("\n")
		b.WriteString(d.URL)
	}
	b.WriteString("\n")
	b.WriteString(joinTags(tags))
	return b.String()
}

// minimal is the guaranteed-to-fit fallback: brand + price + one tag.
func (f *microblog) minimal(d models.Deal) string {
	name := strings.TrimSpace(d.Brand)
	if name == "" {
		name = TruncRunes(strings.TrimSpace(d.Title), minTitleRunes)
	}
	return name + " " + Money(d.Price) + " " + identityTag
}
