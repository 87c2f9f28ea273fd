package format

import (
	"html"
	"math/rand"
	"strings"

	"dealcast/internal/models"
)

// chatBot renders Telegram HTML messages.
type chatBot struct {
	limit int
	r     *rand.Rand
}

func newChatBot(opts Options) *chatBot {
	return &chatBot{limit: limitOr(opts, ChatBotLimit), r: opts.Rand}
}

func (f *chatBot) Limit() int { return f.limit }

// Format shortens the title in fixed decrements until the message fits,
// like the microblog renderer. Whole-message truncation is never applied
// here: cutting rendered HTML mid-tag or mid-entity produces markup the
// transport rejects.
func (f *chatBot) Format(d models.Deal) (Payload, error) {
	tags := TagsFor(d.Brand, d.Model, d.Title, 3)

	title := strings.TrimSpace(d.Title)
	for n := max(RuneLen(title), minTitleRunes); n >= minTitleRunes; n -= titleDecrement {
		text := f.render(TruncRunes(title, n), d, tags)
		if RuneLen(text) <= f.limit {
			return Payload{Text: text, MediaURL: d.ImageURL, Tags: tags}, nil
		}
	}

	// Minimal fallback is markup-free so it stays safe to cut plain.
	plain := strings.NewReplacer("<", " ", ">", " ", "&", " ").Replace(title)
	text := TruncRunes(plain, minTitleRunes) + "\n" + Money(d.Price)
	if RuneLen(text) > f.limit {
		text = TruncRunes(text, f.limit)
	}
	return Payload{Text: text, MediaURL: d.ImageURL, Tags: tags}, nil
}

func (f *chatBot) render(title string, d models.Deal, tags []string) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</b>\n\n")

	if d.OriginalPrice != nil && *d.OriginalPrice > d.Price {
		b.WriteString("Was: <s>")
		b.WriteString(Money(*d.OriginalPrice))
		b.WriteString("</s>\nNow: <b>")
		b.WriteString(Money(d.Price))
		b.WriteString("</b>")
		if tag := discountTag(d); tag != "" {
			b.WriteString(" ")
			b.WriteString(tag)
		}
	} else {
		b.WriteString("Price: <b>")
		b.WriteString(Money(d.Price))
		b.WriteString("</b>")
	}
	if d.Source != "" {
		b.WriteString("\nSource: ")
		b.WriteString(html.EscapeString(d.Source))
	}
	if d.URL != "" {
		b.WriteString("\n\n<a href=\"")
		b.WriteString(d.URL)
		b.WriteString("\">View listing</a>")
	}
	b.WriteString("\n\n")
	b.WriteString(joinTags(tags))
	return b.String()
}
