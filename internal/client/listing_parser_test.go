package client

import (
	"net/url"
	"os"
	"testing"

	"instruments/scraper/internal/config"
	"instruments/scraper/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSelectors() config.SelectorsConfig {
	return config.SelectorsConfig{
		Container: "ul.products > li.product",
		Title:     "div.woocommerce-title-container h3",
		Image:     "img",
		Link:      "a",
	}
}

func product(href, src, title string) string {
	return `<li class="product"><a href="` + href + `"><img src="` + src + `">` +
		`<div class="woocommerce-title-container"><h3>` + title + `</h3></div></a></li>`
}

func TestParseListing(t *testing.T) {
	parser := NewListingParser(defaultSelectors())

	t.Run("keeps only well-formed containers", func(t *testing.T) {
		body, err := os.ReadFile("testdata/subcategory_page.html")
		require.NoError(t, err)

		page := &Page{URL: "https://shop.example.com/product-category/scissors/curved/", Body: string(body)}
		records, err := ParseListing(parser, page, domain.NewItem)
		require.NoError(t, err)

		require.Len(t, records, 2)
		assert.Equal(t, "Mayo Scissors", records[0].Entity.Name)
		assert.Equal(t, "https://shop.example.com/img/mayo.jpg", records[0].Entity.ImageURL)
		assert.Equal(t, "https://shop.example.com/product/mayo-scissors/", records[0].URL)

		assert.Equal(t, "Metzenbaum Scissors", records[1].Entity.Name)
		assert.Equal(t, "https://shop.example.com/product/metzenbaum-scissors/", records[1].URL)
	})

	t.Run("well-formed count is independent of malformed count", func(t *testing.T) {
		for _, tc := range []struct{ good, bad int }{{0, 0}, {3, 0}, {0, 4}, {5, 2}} {
			html := `<ul class="products">`
			for i := 0; i < tc.good; i++ {
				html += product("https://shop.example.com/p/", "https://shop.example.com/i.jpg", "Forceps")
			}
			for i := 0; i < tc.bad; i++ {
				html += `<li class="product"><a href="https://shop.example.com/p/"><h3>Missing image</h3></a></li>`
			}
			html += `</ul>`

			records, err := ParseListing(parser, &Page{URL: "https://shop.example.com/", Body: html}, domain.NewCategory)
			require.NoError(t, err)
			assert.Len(t, records, tc.good, "good=%d bad=%d", tc.good, tc.bad)
		}
	})

	t.Run("page without listing yields empty result", func(t *testing.T) {
		records, err := ParseListing(parser, &Page{URL: "https://shop.example.com/", Body: "<html><body><p>Nothing here</p></body></html>"}, domain.NewSubcategory)
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("preserves page order", func(t *testing.T) {
		html := `<ul class="products">` +
			product("/c", "c.jpg", "Clamps") +
			product("/a", "a.jpg", "Retractors") +
			product("/b", "b.jpg", "Needle Holders") +
			`</ul>`

		records, err := ParseListing(parser, &Page{URL: "https://shop.example.com/catalog/", Body: html}, domain.NewCategory)
		require.NoError(t, err)

		names := make([]string, 0, len(records))
		for _, r := range records {
			names = append(names, r.Entity.Name)
		}
		assert.Equal(t, []string{"Clamps", "Retractors", "Needle Holders"}, names)
		assert.Equal(t, "https://shop.example.com/c", records[0].URL)
		assert.Equal(t, "c.jpg", records[0].Entity.ImageURL)
	})

	t.Run("decodes entities in titles", func(t *testing.T) {
		html := `<ul class="products">` + product("https://shop.example.com/x", "x.jpg", "Scissors &amp; Shears") + `</ul>`

		records, err := ParseListing(parser, &Page{URL: "https://shop.example.com/", Body: html}, domain.NewCategory)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Scissors & Shears", records[0].Entity.Name)
	})

	t.Run("empty href is skipped", func(t *testing.T) {
		html := `<ul class="products">` +
			product("", "self.jpg", "Self") +
			product("   ", "blank.jpg", "Blank") +
			product("/forceps/", "f.jpg", "Forceps") +
			`</ul>`

		records, err := ParseListing(parser, &Page{URL: "https://shop.example.com/catalog/", Body: html}, domain.NewCategory)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Forceps", records[0].Entity.Name)
		assert.Equal(t, "https://shop.example.com/forceps/", records[0].URL)
	})

	t.Run("invalid page URL is an error", func(t *testing.T) {
		html := `<ul class="products">` + product("/forceps/", "f.jpg", "Forceps") + `</ul>`

		_, err := ParseListing(parser, &Page{URL: "http://shop example.com/%zz", Body: html}, domain.NewCategory)
		assert.ErrorContains(t, err, "invalid page URL")
	})

	t.Run("custom selectors", func(t *testing.T) {
		custom := NewListingParser(config.SelectorsConfig{
			Container: "div.grid > article",
			Title:     "h2",
			Image:     "img.thumb",
			Link:      "a.more",
		})
		html := `<div class="grid">
			<article><h2>Probes</h2><img class="thumb" src="p.jpg"><a class="more" href="/probes">more</a></article>
			<article><h2>Hooks</h2><img src="h.jpg"><a class="more" href="/hooks">more</a></article>
		</div>`

		records, err := ParseListing(custom, &Page{URL: "https://shop.example.com/", Body: html}, domain.NewSubcategory)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Probes", records[0].Entity.Name)
		assert.Equal(t, "https://shop.example.com/probes", records[0].URL)
	})
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base string
		href string
		want string
	}{
		{"https://shop.example.com/a/b/", "https://other.example.com/x", "https://other.example.com/x"},
		{"https://shop.example.com/a/b/", "/x/", "https://shop.example.com/x/"},
		{"https://shop.example.com/a/b/", "c/", "https://shop.example.com/a/b/c/"},
		{"https://shop.example.com/a/b/", "  /trimmed ", "https://shop.example.com/trimmed"},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			base, err := url.Parse(tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resolveURL(base, tt.href))
		})
	}

	assert.Equal(t, "/raw", resolveURL(nil, "/raw"))
}
