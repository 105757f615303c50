/*
File: trie.go
Version: 1.1.0
Description: Domain suffix trie for the site blocklist. Supports exact entries
             and wildcard entries ("*.example.com" / ".example.com").
*/

package main

import (
	"strings"
)

type blockEntry struct {
	Category string
	Severity int
	Source   string
}

type trieNode struct {
	children    map[string]*trieNode
	value       blockEntry
	wildcard    blockEntry
	hasValue    bool
	hasWildcard bool
}

// DomainTrie stores blocklist entries keyed by reversed domain labels.
type DomainTrie struct {
	root *trieNode
	size int
}

func NewDomainTrie() *DomainTrie {
	return &DomainTrie{root: &trieNode{}}
}

func (t *DomainTrie) Len() int { return t.size }

// Insert adds an entry. A leading "*." or "." marks a wildcard; ".example.com"
// additionally matches "example.com" itself.
func (t *DomainTrie) Insert(domain string, entry blockEntry) {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	isWildcard := false
	alsoExact := false

	if strings.HasPrefix(domain, "*.") {
		isWildcard = true
		domain = domain[2:]
	} else if strings.HasPrefix(domain, ".") {
		// ".example.com" blocks the domain itself and every subdomain.
		isWildcard = true
		alsoExact = true
		domain = strings.TrimPrefix(domain, ".")
	}
	if domain == "" {
		return
	}

	parts := strings.Split(domain, ".")
	node := t.root
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if part == "" {
			continue
		}
		if node.children == nil {
			node.children = make(map[string]*trieNode)
		}
		child, ok := node.children[part]
		if !ok {
			child = &trieNode{}
			node.children[part] = child
		}
		node = child
	}

	if isWildcard {
		node.wildcard = entry
		node.hasWildcard = true
		if alsoExact {
			node.value = entry
			node.hasValue = true
		}
	} else {
		node.value = entry
		node.hasValue = true
	}
	t.size++
}

// Search finds the best match for a host. Exact match wins over the deepest
// wildcard along the path. Walks label-by-label from the TLD without
// allocating a split slice.
func (t *DomainTrie) Search(host string) (blockEntry, bool) {
	node := t.root
	var lastWildcard blockEntry
	foundWildcard := false
	fullMatch := false

	end := len(host)
	for end > 0 {
		start := strings.LastIndexByte(host[:end], '.')
		part := host[start+1 : end]

		if node.hasWildcard {
			lastWildcard = node.wildcard
			foundWildcard = true
		}

		if node.children == nil {
			break
		}
		next, ok := node.children[part]
		if !ok {
			break
		}
		node = next

		if start == -1 {
			fullMatch = true
			break
		}
		end = start
	}

	if fullMatch {
		if node.hasValue {
			return node.value, true
		}
	} else if node.hasWildcard {
		// A wildcard at the node we stopped on covers the remaining deeper
		// labels. On a full match there are none, so it does not apply.
		return node.wildcard, true
	}
	if foundWildcard {
		return lastWildcard, true
	}
	return blockEntry{}, false
}
