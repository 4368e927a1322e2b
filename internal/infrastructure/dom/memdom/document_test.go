package memdom

import (
	"context"
	"testing"

	"carvana-workflows/internal/application/port/output"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formHTML = `<!DOCTYPE html>
<html>
<head><title> Trade-in </title></head>
<body>
	<form id="tradeForm">
		<input id="vin" type="text" name="vin" value="1FT" />
		<select id="state"><option>AZ</option><option>TX</option></select>
		<button id="submit" type="submit">Submit</button>
	</form>
	<p id="note" hidden><b>Hidden</b> note</p>
</body>
</html>`

func TestParse_Defaults(t *testing.T) {
	doc := MustParse(formHTML)

	assert.Equal(t, "Trade-in", doc.Title())
	assert.Equal(t, output.ReadyComplete, doc.ReadyState())
	assert.Equal(t, "about:blank", doc.Location().Href)
	assert.Equal(t, "html", doc.Root().TagName())
	assert.Nil(t, doc.Root().Parent())
}

func TestLocation(t *testing.T) {
	doc := MustParse(formHTML, WithURL("https://www.carvana.com/sell/offer?x=1#step2"))
	loc := doc.Location()

	assert.Equal(t, "www.carvana.com", loc.Host)
	assert.Equal(t, "/sell/offer", loc.Path)
	assert.Equal(t, "#step2", loc.Hash)
}

func TestQueries_ReturnStableWrappers(t *testing.T) {
	doc := MustParse(formHTML)

	byID := doc.ElementByID("vin")
	els, err := doc.QueryAll(nil, "form input")
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Same(t, byID, els[0])

	tags := doc.ElementsByTag(doc.Find("#state"), "OPTION")
	assert.Len(t, tags, 2)

	ok, err := doc.Matches(byID, "input[name=vin]")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = doc.QueryAll(nil, "input[[")
	assert.Error(t, err)
	assert.Nil(t, doc.ElementByID("absent"))
}

func TestElement_TextAndLayout(t *testing.T) {
	doc := MustParse(formHTML)

	note := doc.Find("#note")
	assert.Equal(t, "Hidden note", note.TextContent())
	assert.True(t, doc.Find("#note b").Layout().Hidden)
	assert.False(t, doc.Find("#vin").Layout().HasGeometry)

	parent := doc.Find("#vin").Parent()
	require.NotNil(t, parent)
	id, _ := parent.Attribute("id")
	assert.Equal(t, "tradeForm", id)
}

func TestInput_RecordsEvents(t *testing.T) {
	doc := MustParse(formHTML)
	ctx := context.Background()
	vin := doc.Find("#vin")

	changes := 0
	cancel := doc.Subscribe(func() { changes++ })
	defer cancel()

	require.NoError(t, doc.Focus(ctx, vin))
	require.NoError(t, doc.Clear(ctx, vin))
	require.NoError(t, doc.InsertText(ctx, vin, "1FTEW"))
	require.NoError(t, doc.PressKey(ctx, vin, "Enter"))

	assert.Equal(t, "1FTEW", vin.Value())
	assert.Equal(t, 2, changes)

	events := doc.Events()
	require.Len(t, events, 4)
	assert.Equal(t, EventFocus, events[0].Type)
	assert.Equal(t, EventClear, events[1].Type)
	assert.Equal(t, Event{Type: EventInput, Target: vin, Data: "1FTEW"}, events[2])
	assert.Equal(t, "Enter", events[3].Data)
}

func TestClick_RunsHandlers(t *testing.T) {
	doc := MustParse(formHTML)
	submit := doc.Find("#submit")

	clicked := 0
	doc.OnClick(submit, func() { clicked++ })
	require.NoError(t, doc.Click(context.Background(), submit))
	assert.Equal(t, 1, clicked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, doc.Click(ctx, submit), context.Canceled)

	other := MustParse(formHTML).Find("#submit")
	assert.Error(t, doc.Click(context.Background(), other))
}

func TestMutations_Notify(t *testing.T) {
	doc := MustParse(formHTML)

	changes := 0
	cancel := doc.Subscribe(func() { changes++ })

	added := doc.MustAppendHTML(nil, `<div id="toast">Saved</div><span>x</span>`)
	require.Len(t, added, 2)
	assert.Same(t, added[0], doc.Find("#toast"))

	doc.SetText(added[0], "Offer ready")
	assert.Equal(t, "Offer ready", doc.Find("#toast").TextContent())

	doc.Remove(added[1])
	require.NoError(t, doc.SetAttribute(added[0], "data-state", "done"))
	require.NoError(t, doc.RemoveAttribute(added[0], "data-state"))
	assert.Equal(t, 5, changes)

	cancel()
	doc.Remove(added[0])
	assert.Equal(t, 5, changes)
	assert.Nil(t, doc.Find("#toast"))
}

func TestReadyAndNavigate(t *testing.T) {
	doc := MustParse(formHTML, WithReadyState(output.ReadyLoading))

	ready := 0
	cancelReady := doc.OnReady(func() { ready++ })
	defer cancelReady()

	doc.SetReadyState(output.ReadyLoading)
	doc.SetReadyState(output.ReadyInteractive)
	assert.Equal(t, 1, ready)

	var seen []string
	cancelNav := doc.OnNavigate(func(loc output.Location) { seen = append(seen, loc.Path) })
	doc.Navigate("https://www.carvana.com/cars/truck")
	cancelNav()
	doc.Navigate("https://www.carvana.com/cars/suv")

	assert.Equal(t, []string{"/cars/truck"}, seen)
	assert.Equal(t, "/cars/suv", doc.Location().Path)
}

func TestHTML_IncludesMutations(t *testing.T) {
	doc := MustParse(formHTML)
	require.NoError(t, doc.SetAttribute(doc.Find("#submit"), "data-autoflow-highlight", "1"))

	out, err := doc.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, `<button id="submit" type="submit" data-autoflow-highlight="1">`)

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "Trade-in", again.Title())
}
