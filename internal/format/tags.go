package format

import "strings"

// keywordTags maps brand/model keywords to hashtags. Matching is done on the
// lowercased concatenation of brand, model and title; first match per tag
// wins and order is stable so repeated calls render identical tag sets.
var keywordTags = []struct {
	keyword string
	tag     string
}{
	{"rolex", "#rolex"},
	{"submariner", "#submariner"},
	{"daytona", "#daytona"},
	{"omega", "#omega"},
	{"speedmaster", "#speedmaster"},
	{"seamaster", "#seamaster"},
	{"tudor", "#tudor"},
	{"seiko", "#seiko"},
	{"grand seiko", "#grandseiko"},
	{"cartier", "#cartier"},
	{"breitling", "#breitling"},
	{"tag heuer", "#tagheuer"},
	{"patek", "#patekphilippe"},
	{"audemars", "#audemarspiguet"},
	{"iwc", "#iwc"},
	{"longines", "#longines"},
	{"zenith", "#zenith"},
	{"panerai", "#panerai"},
	{"chrono", "#chronograph"},
	{"gmt", "#gmt"},
	{"vintage", "#vintage"},
}

// fallbackTag is used when no keyword matches.
const fallbackTag = "#watchdeals"

// identityTags is the channel-identity tag appended to every post.
const identityTag = "#dealcast"

// TagsFor returns the deterministic tag set for a deal, capped at max
// entries including the identity tag (which is always last).
func TagsFor(brand, model, title string, max int) []string {
	if max <= 0 {
		max = 3
	}
	hay := strings.ToLower(brand + " " + model + " " + title)

	tags := make([]string, 0, max)
	seen := map[string]struct{}{}
	for _, kt := range keywordTags {
		if len(tags) >= max-1 {
			break
		}
		if !strings.Contains(hay, kt.keyword) {
			continue
		}
		if _, dup := seen[kt.tag]; dup {
			continue
		}
		seen[kt.tag] = struct{}{}
		tags = append(tags, kt.tag)
	}
	if len(tags) == 0 {
		tags = append(tags, fallbackTag)
	}
	return append(tags, identityTag)
}

func joinTags(tags []string) string { return strings.Join(tags, " ") }
