package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	require.Equal(t, "Alpine Scramble", CleanText("  Alpine\n\tScramble "))
	require.Equal(t, "a b", CleanText("a \x00 b"))
}

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<ul>
			<li><a href="/members/jo-smith/">Jo  Smith</a></li>
			<li><a href="https://example.org/a/b">Trip <b>Report</b></a></li>
			<li><a>no href</a></li>
		</ul>
	`))
	require.NoError(t, err)

	anchors := GetAnchors(doc.Find("a"))
	require.Len(t, anchors, 3)
	require.Equal(t, Anchor{Name: "Jo Smith", Href: "/members/jo-smith/"}, anchors[0])
	require.Equal(t, Anchor{Name: "Trip Report", Href: "https://example.org/a/b"}, anchors[1])
	require.Equal(t, "", anchors[2].Href)
}
