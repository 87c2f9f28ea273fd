package format

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealcast/internal/models"
)

func ptr(v float64) *float64 { return &v }

func submariner() models.Deal {
	return models.Deal{
		ID:            "rlx-116610ln",
		Title:         "Rolex Submariner Date 116610LN",
		Brand:         "Rolex",
		Model:         "Submariner",
		Price:         8500,
		OriginalPrice: ptr(12000),
		Score:         78,
		Source:        "chrono24",
		URL:           "https://deals.example.com/rlx-116610ln",
		Category:      "dive",
		ImageURL:      "https://img.example.com/rlx.jpg",
	}
}

func TestMicroblogRolexScenario(t *testing.T) {
	t.Parallel()
	f, err := For(models.ChannelMicroblog, Options{})
	require.NoError(t, err)

	p, err := f.Format(submariner())
	require.NoError(t, err)

	// (12000-8500)/12000 = 29.17% -> rounds to 29.
	assert.Contains(t, p.Text, "29% OFF")
	assert.Contains(t, p.Text, "$8,500")
	assert.Contains(t, p.Text, "$12,000")
	assert.LessOrEqual(t, RuneLen(p.Text), MicroblogLimit)
}

func TestDiscountRoundsToNearest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		price   float64
		orig    float64
		wantPct int
		wantTag bool
	}{
		{name: "rounds down", price: 8500, orig: 12000, wantPct: 29, wantTag: true},
		{name: "rounds up", price: 7000, orig: 24000, wantPct: 71, wantTag: true}, // 70.83%
		{name: "exact", price: 5000, orig: 10000, wantPct: 50, wantTag: true},
		{name: "no discount", price: 10000, orig: 10000, wantTag: false},
		{name: "price above original", price: 11000, orig: 10000, wantTag: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := models.Deal{Price: tt.price, OriginalPrice: ptr(tt.orig)}
			pct, ok := d.DiscountPercent()
			assert.Equal(t, tt.wantTag, ok)
			if tt.wantTag {
				assert.Equal(t, tt.wantPct, pct)
			}
		})
	}
}

func TestLengthInvariantAcrossAllHookVariants(t *testing.T) {
	t.Parallel()

	long := submariner()
	long.Title = strings.Repeat("Rolex Submariner Date 116610LN Ceramic Bezel Full Set ", 8)

	deals := []models.Deal{submariner(), long, {
		ID: "bare", Title: "Ω", Price: 120, ImageURL: "https://img.example.com/o.jpg",
	}}

	for _, ch := range models.Channels() {
		for seed := int64(0); seed < 50; seed++ {
			f, err := For(ch, Options{Rand: rand.New(rand.NewSource(seed))})
			require.NoError(t, err)
			for _, d := range deals {
				p, err := f.Format(d)
				if err != nil {
					continue // mediagraph rejects deals without media
				}
				assert.LessOrEqualf(t, RuneLen(p.Text), f.Limit(),
					"channel %s seed %d deal %s", ch, seed, d.ID)
			}
		}
	}
}

func TestMicroblogShortTitleGetsRichRendering(t *testing.T) {
	t.Parallel()
	f, err := For(models.ChannelMicroblog, Options{})
	require.NoError(t, err)

	d := submariner()
	d.Title = "Seiko SKX" // shorter than the title-shortening floor
	p, err := f.Format(d)
	require.NoError(t, err)

	assert.Contains(t, p.Text, "Seiko SKX")
	assert.Contains(t, p.Text, d.URL)
	assert.Contains(t, p.Text, "$8,500")
	assert.Contains(t, p.Text, "29% OFF")
	assert.LessOrEqual(t, RuneLen(p.Text), MicroblogLimit)
}

func TestMicroblogFallsBackToMinimalTemplate(t *testing.T) {
	t.Parallel()
	f, err := For(models.ChannelMicroblog, Options{CharLimit: 40})
	require.NoError(t, err)

	d := submariner()
	d.Title = strings.Repeat("Submariner ", 30)
	p, err := f.Format(d)
	require.NoError(t, err)

	assert.LessOrEqual(t, RuneLen(p.Text), 40)
	assert.Contains(t, p.Text, "Rolex")
	assert.Contains(t, p.Text, "$8,500")
}

func TestFormatterDeterministicWithoutRand(t *testing.T) {
	t.Parallel()
	// Fresh formatter instances per call, the way repeated dry runs build
	// them: the same deal must render identically every time.
	for _, ch := range models.Channels() {
		f1, err := For(ch, Options{})
		require.NoError(t, err)
		f2, err := For(ch, Options{})
		require.NoError(t, err)

		a, errA := f1.Format(submariner())
		b, errB := f2.Format(submariner())
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a, b, "channel %s not deterministic", ch)
	}
}

func TestPinnedSeedPinsHookSelection(t *testing.T) {
	t.Parallel()
	mk := func() Formatter {
		f, err := For(models.ChannelMicroblog, Options{Rand: rand.New(rand.NewSource(7))})
		require.NoError(t, err)
		return f
	}
	a, err := mk().Format(submariner())
	require.NoError(t, err)
	b, err := mk().Format(submariner())
	require.NoError(t, err)
	assert.Equal(t, a.Text, b.Text)
}

func TestTagsFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		brand string
		title string
		want  []string
	}{
		{name: "keyword matches", brand: "Rolex", title: "Submariner Date", want: []string{"#rolex", "#submariner", "#dealcast"}},
		{name: "fallback when no keyword", brand: "Casio", title: "F-91W", want: []string{"#watchdeals", "#dealcast"}},
		{name: "identity tag always last", brand: "Omega", title: "Speedmaster", want: []string{"#omega", "#speedmaster", "#dealcast"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := TagsFor(tt.brand, "", tt.title, 3)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMediaGraphRequiresMedia(t *testing.T) {
	t.Parallel()
	f, err := For(models.ChannelMediaGraph, Options{})
	require.NoError(t, err)

	d := submariner()
	d.ImageURL = ""
	_, err = f.Format(d)
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestChatBotEscapesHTML(t *testing.T) {
	t.Parallel()
	f, err := For(models.ChannelChatBot, Options{})
	require.NoError(t, err)

	d := submariner()
	d.Title = "Rolex <Submariner> & Co"
	p, err := f.Format(d)
	require.NoError(t, err)
	assert.Contains(t, p.Text, "&lt;Submariner&gt;")
	assert.NotContains(t, p.Text, "<Submariner>")
}

func TestMoney(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{8500, "$8,500"},
		{12000, "$12,000"},
		{999, "$999"},
		{1234567, "$1,234,567"},
		{49.5, "$49.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Money(tt.in))
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc", TruncRunes("abc", 5))
	assert.Equal(t, "abc", TruncRunes("abc", 3))
	assert.Equal(t, "a…", TruncRunes("abcdef", 2))
	assert.Equal(t, "…", TruncRunes("abcdef", 1))
	assert.Equal(t, "", TruncRunes("abc", 0))
	assert.Equal(t, "⌚…", TruncRunes("⌚⌚⌚⌚", 2))
	for _, n := range []int{1, 2, 3, 4, 5} {
		assert.LessOrEqual(t, RuneLen(TruncRunes("abcdef", n)), n)
	}
}
