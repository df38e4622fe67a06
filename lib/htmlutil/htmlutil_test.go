package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func TestTextLines(t *testing.T) {
	doc := parse(t, `<html><head><title>Roster</title><style>.x{}</style></head><body>
		<h2>December   2025</h2>
		<div>C1234/16Dec <span>Rank: CA</span></div>
		<script>var ignored = 1;</script>
		<div style="display: none">hidden text</div>
		<ul><li>GB3130</li><li>CVG 16Dec 10:05 LT</li></ul>
		plain tail
	</body></html>`)

	expected := []string{
		"December 2025",
		"C1234/16Dec Rank: CA",
		"GB3130",
		"CVG 16Dec 10:05 LT",
		"plain tail",
	}
	diff := cmp.Diff(expected, TextLines(doc))
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestCSSPath(t *testing.T) {
	doc := parse(t, `<html><body>
		<div><span>a</span><button class="next">›</button></div>
		<div id="toolbar"><button>prev</button><button>next</button></div>
	</body></html>`)

	testCases := []struct {
		find   string
		expect string
	}{
		{find: "button.next", expect: "html > body > div:nth-child(1) > button:nth-child(2)"},
		{find: "#toolbar button:last-child", expect: "#toolbar > button:nth-child(2)"},
	}

	for _, test := range testCases {
		path := CSSPath(doc.Find(test.find))
		require.Equal(t, test.expect, path)
		require.Equal(t, 1, doc.Find(path).Length())
	}
}

func TestClean(t *testing.T) {
	require.Equal(t, "Hilton Stockton", Clean("  Hilton \n\tStockton ​"))
	require.Equal(t, "CVG 16Dec 10:05 LT", Clean("CVG\u00a016Dec\u202f10:05\u00a0LT"))
}
