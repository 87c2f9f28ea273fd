package format

import (
	"math/rand"
	"strings"

	"dealcast/internal/models"
)

var mediaGraphHooks = []string{
	"Today's find:",
	"On our radar:",
	"Fresh listing:",
}

// mediaGraph renders captions for the media-graph channel. Posts there are
// image-first, so a deal without media is rejected with ErrNoMedia.
type mediaGraph struct {
	limit int
	r     *rand.Rand
}

func newMediaGraph(opts Options) *mediaGraph {
	return &mediaGraph{limit: limitOr(opts, MediaGraphLimit), r: opts.Rand}
}

func (f *mediaGraph) Limit() int { return f.limit }

func (f *mediaGraph) Format(d models.Deal) (Payload, error) {
	if strings.TrimSpace(d.ImageURL) == "" {
		return Payload{}, ErrNoMedia
	}

	tags := TagsFor(d.Brand, d.Model, d.Title, 5)
	hook := hookFor(f.r, d.ID, mediaGraphHooks)

	var b strings.Builder
	if hook != "" {
		b.WriteString(hook)
		b.WriteString(" ")
	}
	b.WriteString(strings.TrimSpace(d.Title))
	b.WriteString("\n\n")
	if d.OriginalPrice != nil && *d.OriginalPrice > d.Price {
		b.WriteString(Money(*d.OriginalPrice))
		b.WriteString(" → ")
		b.WriteString(Money(d.Price))
		if tag := discountTag(d); tag != "" {
			b.WriteString(" ")
			b.WriteString(tag)
		}
	} else {
		b.WriteString(Money(d.Price))
	}
	if d.Source != "" {
		b.WriteString("\nvia ")
		b.WriteString(d.Source)
	}
	b.WriteString("\nLink in bio.")
	b.WriteString("\n\n")
	b.WriteString(joinTags(tags))

	text := b.String()
	if RuneLen(text) > f.limit {
		// Captions are generous; whole-text truncation only guards degenerate titles.
		text = TruncRunes(text, f.limit)
	}
	return Payload{Text: text, MediaURL: d.ImageURL, Tags: tags}, nil
}
