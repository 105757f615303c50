package main

import (
	"testing"
)

func TestTrieExactMatch(t *testing.T) {
	tr := NewDomainTrie()
	tr.Insert("example.com", blockEntry{Category: "test", Severity: 2})

	if _, found := tr.Search("example.com"); !found {
		t.Fatal("exact entry should match itself")
	}
	if _, found := tr.Search("sub.example.com"); found {
		t.Fatal("exact entry must not match subdomains")
	}
	if _, found := tr.Search("notexample.com"); found {
		t.Fatal("exact entry must not match sibling labels")
	}
}

func TestTrieWildcardMatch(t *testing.T) {
	tr := NewDomainTrie()
	tr.Insert("*.example.com", blockEntry{Category: "wild", Severity: 2})

	if _, found := tr.Search("sub.example.com"); !found {
		t.Fatal("wildcard should match one level down")
	}
	if _, found := tr.Search("a.b.example.com"); !found {
		t.Fatal("wildcard should match deep subdomains")
	}
	if _, found := tr.Search("example.com"); found {
		t.Fatal("*. wildcard must not match the bare domain")
	}
}

func TestTrieLeadingDotMatchesSelfAndSubdomains(t *testing.T) {
	tr := NewDomainTrie()
	tr.Insert(".example.com", blockEntry{Category: "both", Severity: 2})

	if _, found := tr.Search("example.com"); !found {
		t.Fatal("leading-dot entry should match the bare domain")
	}
	if _, found := tr.Search("deep.sub.example.com"); !found {
		t.Fatal("leading-dot entry should match subdomains")
	}
}

func TestTrieExactWinsOverWildcard(t *testing.T) {
	tr := NewDomainTrie()
	tr.Insert("*.example.com", blockEntry{Category: "wild", Severity: 1})
	tr.Insert("special.example.com", blockEntry{Category: "exact", Severity: 3})

	entry, found := tr.Search("special.example.com")
	if !found || entry.Category != "exact" {
		t.Fatalf("exact entry should win, got %+v found=%v", entry, found)
	}
}

func TestTrieDeepestWildcardWins(t *testing.T) {
	tr := NewDomainTrie()
	tr.Insert("*.com", blockEntry{Category: "shallow", Severity: 1})
	tr.Insert("*.example.com", blockEntry{Category: "deep", Severity: 2})

	entry, found := tr.Search("a.example.com")
	if !found || entry.Category != "deep" {
		t.Fatalf("deepest wildcard should win, got %+v found=%v", entry, found)
	}

	entry, found = tr.Search("other.com")
	if !found || entry.Category != "shallow" {
		t.Fatalf("shallow wildcard should still cover siblings, got %+v found=%v", entry, found)
	}
}

func TestTrieMiss(t *testing.T) {
	tr := NewDomainTrie()
	tr.Insert("example.com", blockEntry{Category: "test", Severity: 2})

	if _, found := tr.Search("unrelated.org"); found {
		t.Fatal("unlisted domain must not match")
	}
}
