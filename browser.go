/*
File: browser.go
Version: 1.4.0
Description: Browser URL monitor. Watches accessibility window events from
             recognized browsers, extracts the address-bar URL with a
             depth-bounded tree walk, and drives the blocked-site overlay
             from the site blocker's verdicts.
*/

package main

import (
	"regexp"
	"strings"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// AccessibilityNode is the platform view-tree boundary. Nodes are borrowed:
// every node obtained from Child must be recycled exactly once.
type AccessibilityNode interface {
	ViewID() string
	Text() string
	ChildCount() int
	Child(i int) AccessibilityNode // may return nil
	Recycle()
}

// WindowEvent is one content-changed notification from the platform. Root may
// be nil when the window has no inspectable tree. The event source owns Root;
// the monitor must not recycle it.
type WindowEvent struct {
	PackageName string
	Root        AccessibilityNode
}

// Address-bar view IDs for recognized browsers. Packages configured via
// browser.extra_browsers fall back to the generic "url_bar" suffix match.
var knownBrowsers = map[string]string{
	"com.android.chrome":            "com.android.chrome:id/url_bar",
	"org.mozilla.firefox":           "org.mozilla.firefox:id/mozac_browser_toolbar_url_view",
	"com.brave.browser":             "com.brave.browser:id/url_bar",
	"com.microsoft.emmx":            "com.microsoft.emmx:id/url_bar",
	"com.opera.browser":             "com.opera.browser:id/url_field",
	"com.sec.android.app.sbrowser":  "com.sec.android.app.sbrowser:id/location_bar_edit_text",
	"com.duckduckgo.mobile.android": "com.duckduckgo.mobile.android:id/omnibarTextInput",
}

// urlPattern is the fallback for browsers whose address bar has no stable view
// ID. Matches a bare or schemed hostname with at least one dot.
var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.)?[a-z0-9][a-z0-9-]*(?:\.[a-z0-9-]+)+(?:/\S*)?`)

// BrowserMonitor inspects window events and blocks listed sites. Events arrive
// on the platform's accessibility stream; all mutable state except the showing
// flag is touched only there.
type BrowserMonitor struct {
	blocker  *SiteBlocker
	overlay  *OverlayManager
	limiter  *rate.Limiter
	browsers map[string]string
	maxDepth int

	lastURL     string
	lastPkg     string
	lastBlocked bool
	checked     uint64
	blocked     uint64
	showing     atomic.Bool
}

func NewBrowserMonitor(cfg BrowserConfig, blocker *SiteBlocker, overlay *OverlayManager) *BrowserMonitor {
	browsers := make(map[string]string, len(knownBrowsers)+len(cfg.ExtraBrowsers))
	for pkg, id := range knownBrowsers {
		browsers[pkg] = id
	}
	for _, pkg := range cfg.ExtraBrowsers {
		if _, ok := browsers[pkg]; !ok {
			browsers[pkg] = pkg + ":id/url_bar"
		}
	}

	return &BrowserMonitor{
		blocker:  blocker,
		overlay:  overlay,
		limiter:  rate.NewLimiter(rate.Limit(1), 1), // at most one URL check per second
		browsers: browsers,
		maxDepth: cfg.MaxTreeDepth,
	}
}

// HandleEvent processes one window event. Non-browser windows clear any
// blocked-site overlay; browser windows are URL-checked at most once per
// second.
func (bm *BrowserMonitor) HandleEvent(ev WindowEvent) {
	barID, isBrowser := bm.browsers[ev.PackageName]
	if !isBrowser {
		if ev.PackageName != "" && ev.PackageName != bm.lastPkg {
			bm.lastPkg = ev.PackageName
			bm.lastURL = ""
			bm.lastBlocked = false
			if bm.showing.Load() {
				bm.overlay.HideBlockedSite()
				bm.showing.Store(false)
			}
		}
		return
	}
	bm.lastPkg = ev.PackageName

	if ev.Root == nil || !bm.limiter.Allow() {
		return
	}

	url := bm.extractURL(ev.Root, barID)
	if url == "" {
		return
	}
	// Unchanged URLs are skipped, unless the last check blocked this site and
	// the overlay has since auto-closed: the page is still open and must be
	// covered again.
	if url == bm.lastURL && !(bm.lastBlocked && !bm.showing.Load()) {
		return
	}
	bm.lastURL = url
	bm.checked++

	verdict := bm.blocker.CheckURL(url)
	bm.lastBlocked = verdict.Blocked
	if verdict.Blocked {
		bm.blocked++
		LogInfo("[BROWSER] Blocked %s in %s (%s, severity %d)", hostOf(url), ev.PackageName, verdict.Category, verdict.Severity)
		if !bm.showing.Load() {
			bm.showing.Store(true)
			bm.overlay.ShowBlockedSite(verdict, "This site is on your block list.", func(action WarningAction) {
				bm.showing.Store(false)
				if action.Kind == WarningClosedApp || action.Kind == WarningTimedOut {
					LogInfo("[BROWSER] Blocked-site overlay resolved: %v after %dms", action.Kind, action.ElapsedMs)
				}
			})
		}
		return
	}

	if bm.showing.Load() {
		bm.overlay.HideBlockedSite()
		bm.showing.Store(false)
	}
}

// extractURL walks the tree looking for the address-bar node, falling back to
// the first URL-shaped text anywhere in the tree. The walk is depth-bounded
// and every visited child is recycled.
func (bm *BrowserMonitor) extractURL(root AccessibilityNode, barID string) string {
	var fallback string

	var walk func(node AccessibilityNode, depth int) string
	walk = func(node AccessibilityNode, depth int) string {
		if id := node.ViewID(); id == barID || strings.HasSuffix(id, ":id/url_bar") {
			if text := strings.TrimSpace(node.Text()); text != "" {
				return text
			}
		}
		if fallback == "" {
			if m := urlPattern.FindString(node.Text()); m != "" {
				fallback = m
			}
		}

		if depth >= bm.maxDepth {
			return ""
		}
		for i := 0; i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			found := walk(child, depth+1)
			child.Recycle()
			if found != "" {
				return found
			}
		}
		return ""
	}

	if url := walk(root, 0); url != "" {
		return url
	}
	return fallback
}

// Stats returns checked and blocked URL counts.
func (bm *BrowserMonitor) Stats() (checked, blocked uint64) {
	return bm.checked, bm.blocked
}
