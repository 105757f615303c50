package main

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

type fakeNode struct {
	id       string
	text     string
	children []*fakeNode
	recycled int
}

func (n *fakeNode) ViewID() string  { return n.id }
func (n *fakeNode) Text() string    { return n.text }
func (n *fakeNode) ChildCount() int { return len(n.children) }
func (n *fakeNode) Child(i int) AccessibilityNode {
	if n.children[i] == nil {
		return nil
	}
	return n.children[i]
}
func (n *fakeNode) Recycle() { n.recycled++ }

func newTestMonitor(t *testing.T, lines string) (*BrowserMonitor, *recordBackend, *OverlayManager) {
	t.Helper()

	cfg := BlocklistConfig{CacheSize: 64}
	if lines != "" {
		cfg.Files = []string{writeList(t, lines)}
	}
	sb := NewSiteBlocker(cfg)

	rb := &recordBackend{}
	om := newTestOverlay(rb)
	t.Cleanup(om.Stop)

	bm := NewBrowserMonitor(BrowserConfig{MaxTreeDepth: 8}, sb, om)
	bm.limiter = rate.NewLimiter(rate.Inf, 1) // tests fire events back to back
	return bm, rb, om
}

func chromeTree(url string) *fakeNode {
	return &fakeNode{
		id: "root",
		children: []*fakeNode{
			{id: "toolbar", children: []*fakeNode{
				{id: "com.android.chrome:id/url_bar", text: url},
			}},
			{id: "content", text: "page body"},
		},
	}
}

func TestExtractURLFromAddressBar(t *testing.T) {
	bm, _, _ := newTestMonitor(t, "")

	root := chromeTree("https://example.com/watch")
	url := bm.extractURL(root, knownBrowsers["com.android.chrome"])
	if url != "https://example.com/watch" {
		t.Fatalf("extracted %q", url)
	}

	// Every visited child must be recycled exactly once; the root is borrowed.
	if root.recycled != 0 {
		t.Fatal("monitor must not recycle the event root")
	}
	if got := root.children[0].recycled; got != 1 {
		t.Fatalf("toolbar recycled %d times, want 1", got)
	}
}

func TestExtractURLRegexFallback(t *testing.T) {
	bm, _, _ := newTestMonitor(t, "")

	root := &fakeNode{
		id: "root",
		children: []*fakeNode{
			{id: "label", text: "Now visiting badsite.com/page"},
		},
	}
	url := bm.extractURL(root, "com.android.chrome:id/url_bar")
	if hostOf(url) != "badsite.com" {
		t.Fatalf("fallback extracted %q", url)
	}
}

func TestExtractURLDepthBound(t *testing.T) {
	bm, _, _ := newTestMonitor(t, "")
	bm.maxDepth = 2

	// Address bar buried at depth 4: unreachable with maxDepth 2.
	deep := chromeTree("https://example.com/")
	root := &fakeNode{id: "w1", children: []*fakeNode{{id: "w2", children: []*fakeNode{deep}}}}

	if url := bm.extractURL(root, knownBrowsers["com.android.chrome"]); url != "" {
		t.Fatalf("depth bound ignored, extracted %q", url)
	}
}

func TestBlockedURLShowsOverlayAndCleanHides(t *testing.T) {
	bm, _, om := newTestMonitor(t, "badsite.com adult 3\n")

	bm.HandleEvent(WindowEvent{
		PackageName: "com.android.chrome",
		Root:        chromeTree("https://badsite.com/home"),
	})
	if !om.Visible(OverlayBlockedSite) {
		t.Fatal("blocked URL must raise the blocked-site overlay")
	}

	bm.HandleEvent(WindowEvent{
		PackageName: "com.android.chrome",
		Root:        chromeTree("https://harmless.org/"),
	})
	if om.Visible(OverlayBlockedSite) {
		t.Fatal("navigating away must drop the blocked-site overlay")
	}
}

func TestLeavingBrowserHidesOverlay(t *testing.T) {
	bm, _, om := newTestMonitor(t, "badsite.com adult 3\n")

	bm.HandleEvent(WindowEvent{
		PackageName: "com.android.chrome",
		Root:        chromeTree("https://badsite.com/"),
	})
	if !om.Visible(OverlayBlockedSite) {
		t.Fatal("precondition: overlay should be up")
	}

	bm.HandleEvent(WindowEvent{PackageName: "com.example.mail"})
	if om.Visible(OverlayBlockedSite) {
		t.Fatal("leaving the browser must drop the blocked-site overlay")
	}
}

func TestTimedOutBlockedSiteIsReCovered(t *testing.T) {
	bm, _, om := newTestMonitor(t, "badsite.com adult 3\n")

	bm.HandleEvent(WindowEvent{
		PackageName: "com.android.chrome",
		Root:        chromeTree("https://badsite.com/"),
	})
	if !om.Visible(OverlayBlockedSite) {
		t.Fatal("precondition: overlay should be up")
	}

	// Take the auto-close path the hard timeout takes, just faster.
	om.do(func() { om.armAutoClose(OverlayBlockedSite, time.Millisecond) })

	deadline := time.Now().Add(autoCloseGracePeriod + 2*time.Second)
	for bm.showing.Load() {
		if time.Now().After(deadline) {
			t.Fatal("timeout resolution never reached the monitor")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Same URL, page still open: it must be covered again, not deduplicated.
	bm.HandleEvent(WindowEvent{
		PackageName: "com.android.chrome",
		Root:        chromeTree("https://badsite.com/"),
	})
	if !om.Visible(OverlayBlockedSite) {
		t.Fatal("still-open blocked site must be re-covered after the overlay timed out")
	}
	if checked, _ := bm.Stats(); checked != 2 {
		t.Fatalf("re-cover must re-check the URL, got %d checks", checked)
	}
}

func TestUnchangedURLCheckedOnce(t *testing.T) {
	bm, _, _ := newTestMonitor(t, "")

	ev := WindowEvent{PackageName: "com.android.chrome", Root: chromeTree("https://example.com/")}
	bm.HandleEvent(ev)
	bm.HandleEvent(WindowEvent{PackageName: "com.android.chrome", Root: chromeTree("https://example.com/")})

	if checked, _ := bm.Stats(); checked != 1 {
		t.Fatalf("same URL should be checked once, got %d", checked)
	}
}
