package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><title>t</title></head><body>
<div class="base-slidein__modal--open">
  <section id="one"><button class="x">First</button></section>
  <section id="two">
    <p>  spaced
       text  </p>
    <button class="x">Second</button>
  </section>
</div>
</body></html>`

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := ParseString(markup, "https://example.test/talent/profile/1")
	require.NoError(t, err)
	return doc
}

func TestFirstAndQuery(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, page)

	el, ok := doc.First("button.x")
	require.True(t, ok)
	assert.Equal(t, "First", el.Text())
	assert.Equal(t, "button", el.Tag())

	all, err := doc.Query("button.x")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Second", all[1].Text())

	_, ok = doc.First("button.missing")
	assert.False(t, ok)

	_, ok = doc.First("button[")
	assert.False(t, ok, "invalid selectors are treated as absent")

	_, err = doc.Query("button[")
	assert.Error(t, err)
}

func TestScopedLookupAndClosest(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, page)

	two, ok := doc.First("#two")
	require.True(t, ok)

	btn, ok := two.First("button.x")
	require.True(t, ok)
	assert.Equal(t, "Second", btn.Text())

	section, ok := btn.Closest("section")
	require.True(t, ok)
	id, _ := section.Attr("id")
	assert.Equal(t, "two", id)

	_, ok = btn.Closest("article")
	assert.False(t, ok)
}

func TestPathAddressesSameNode(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, page)

	all, err := doc.Query("button.x")
	require.NoError(t, err)

	for _, el := range all {
		path := el.Path()
		again, ok := doc.First(path)
		require.True(t, ok, path)
		assert.Same(t, el.Node(), again.Node(), path)
	}
}

func TestSlideInOpen(t *testing.T) {
	t.Parallel()
	assert.True(t, mustParse(t, page).SlideInOpen())
	assert.False(t, mustParse(t, `<html><body><div></div></body></html>`).SlideInOpen())
	assert.True(t, mustParse(t, `<html><body><div data-test-base-slidein></div></body></html>`).SlideInOpen())
}

func TestNormalizeSpace(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a b\nc", NormalizeSpace("  a \t b \n\n   \r\n c  "))
	assert.Equal(t, "", NormalizeSpace(" \n "))
}

func TestElementText(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, page)
	p, ok := doc.First("#two p")
	require.True(t, ok)
	assert.Equal(t, "spaced\ntext", p.Text())
}
