package lccn

import (
	"context"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/lccn-finder/internal/browser"
	"github.com/lehigh-university-libraries/lccn-finder/internal/catalog"
)

// fakeElement answers selectors from a fixed map of children.
type fakeElement struct {
	text     string
	attrs    map[string]string
	children map[string][]*fakeElement
	err      error
}

func (e *fakeElement) Text() (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}

func (e *fakeElement) Attribute(name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) LocateAll(selector string) ([]browser.Element, error) {
	return toElements(e.children[selector]), nil
}

func (e *fakeElement) LocateOne(selector string) (browser.Element, bool, error) {
	found := e.children[selector]
	if len(found) == 0 {
		return nil, false, nil
	}
	return found[0], true, nil
}

func toElements(in []*fakeElement) []browser.Element {
	out := make([]browser.Element, 0, len(in))
	for _, e := range in {
		out = append(out, e)
	}
	return out
}

// fakeState maps page level selectors to elements.
type fakeState map[string][]*fakeElement

// fakePage walks through its states, one per look at the results block. The
// last state repeats.
type fakePage struct {
	states       []fakeState
	observations int
}

func (p *fakePage) current() fakeState {
	if len(p.states) == 0 {
		return fakeState{}
	}
	i := p.observations - 1
	if i < 0 {
		i = 0
	}
	if i >= len(p.states) {
		i = len(p.states) - 1
	}
	return p.states[i]
}

type fakeBrowser struct {
	selectors   catalog.Selectors
	pages       map[string]*fakePage
	url         string
	navigations []string
	navigateErr error
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		selectors: catalog.DefaultSelectors(),
		pages:     make(map[string]*fakePage),
	}
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.navigateErr != nil {
		return b.navigateErr
	}
	b.navigations = append(b.navigations, url)
	b.url = url
	return nil
}

func (b *fakeBrowser) page() *fakePage {
	p, ok := b.pages[b.url]
	if !ok {
		p = &fakePage{}
		b.pages[b.url] = p
	}
	return p
}

func (b *fakeBrowser) LocateAll(selector string) ([]browser.Element, error) {
	return toElements(b.page().current()[selector]), nil
}

func (b *fakeBrowser) LocateOne(selector string) (browser.Element, bool, error) {
	p := b.page()
	if selector == b.selectors.Results {
		p.observations++
	}
	found := p.current()[selector]
	if len(found) == 0 {
		return nil, false, nil
	}
	return found[0], true, nil
}

func (b *fakeBrowser) navigationsTo(url string) int {
	n := 0
	for _, u := range b.navigations {
		if u == url {
			n++
		}
	}
	return n
}

func (b *fakeBrowser) searches() []string {
	var out []string
	for _, u := range b.navigations {
		if strings.HasPrefix(u, catalog.DefaultSearchURL) {
			out = append(out, u)
		}
	}
	return out
}

// Page states.

func loadingState() fakeState {
	return fakeState{}
}

func siteErrorState() fakeState {
	sel := catalog.DefaultSelectors()
	return fakeState{sel.SiteError: {{text: "Something went wrong"}}}
}

func noResultsState() fakeState {
	sel := catalog.DefaultSelectors()
	return fakeState{sel.NoResults: {{text: "No results"}}}
}

func readyState(items ...*fakeElement) fakeState {
	sel := catalog.DefaultSelectors()
	list := &fakeElement{children: map[string][]*fakeElement{sel.ResultItem: items}}
	container := &fakeElement{children: map[string][]*fakeElement{sel.ResultList: {list}}}
	return fakeState{sel.Results: {container}}
}

// result builds a search result. Empty fields are left out of the element.
func result(title, contributor, year, lccn string) *fakeElement {
	sel := catalog.DefaultSelectors()
	item := &fakeElement{children: map[string][]*fakeElement{}}
	if title != "" {
		link := &fakeElement{text: title + " /", attrs: map[string]string{}}
		if lccn != "" {
			link.attrs["href"] = fmt.Sprintf("https://www.loc.gov/item/%s/", lccn)
		}
		item.children[sel.TitleLink] = []*fakeElement{link}
	}
	if contributor != "" {
		item.children[sel.Contributor] = []*fakeElement{{text: "Contributor: " + contributor}}
	}
	if year != "" {
		item.children[sel.Date] = []*fakeElement{{text: year}}
	}
	return item
}

// detailState is an LCCN permalink page listing isbns. No isbns means no
// ISBN section at all.
func detailState(isbns ...string) fakeState {
	sel := catalog.DefaultSelectors()
	if len(isbns) == 0 {
		return fakeState{}
	}
	spans := make([]*fakeElement, 0, len(isbns))
	for _, isbn := range isbns {
		spans = append(spans, &fakeElement{text: isbn})
	}
	return fakeState{
		sel.ISBNHeading: {{text: "ISBN"}},
		sel.ISBNValues:  spans,
	}
}

func (b *fakeBrowser) addPage(url string, states ...fakeState) {
	b.pages[url] = &fakePage{states: states}
}
