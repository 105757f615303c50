/*
File: blocklist.go
Version: 2.0.0
Description: Site blocker. Checks extracted URLs against a domain trie, CIDR
             ranges for IP-literal hosts, and an optional DNS family-filter
             probe. Verdicts are cached and concurrent checks for the same
             host are coalesced.
*/

package main

import (
	"bufio"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/miekg/dns"
	"github.com/yl2chen/cidranger"
	"golang.org/x/net/publicsuffix"
)

// SiteBlocker answers CheckURL for the browser monitor. Safe for concurrent
// use; lists are immutable after Load.
type SiteBlocker struct {
	trie   *DomainTrie
	ranger cidranger.Ranger
	cache  *VerdictCache
	flight *ShardedGroup

	dnsResolver string
	dnsClient   *dns.Client
}

func NewSiteBlocker(cfg BlocklistConfig) *SiteBlocker {
	sb := &SiteBlocker{
		trie:   NewDomainTrie(),
		ranger: cidranger.NewPCTrieRanger(),
		cache:  NewVerdictCache(cfg.CacheSize),
		flight: NewShardedGroup(),
	}

	if cfg.DNSFilter.Resolver != "" {
		sb.dnsResolver = cfg.DNSFilter.Resolver
		sb.dnsClient = &dns.Client{Timeout: cfg.DNSFilter.parsedTimeout}
	}

	for _, path := range cfg.Files {
		if err := sb.loadFile(path); err != nil {
			LogWarn("[BLOCKLIST] Failed to load %s: %v", path, err)
		}
	}
	for _, cidr := range cfg.CIDRs {
		sb.addCIDR(cidr, "config")
	}

	LogInfo("[BLOCKLIST] Loaded %d domain entries (dns_filter=%v)", sb.trie.Len(), sb.dnsClient != nil)
	return sb
}

// loadFile reads a list in "domain [category [severity]]" line format. CIDR
// lines (containing '/') go to the ranger. '#' starts a comment.
func (sb *SiteBlocker) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		entry := blockEntry{Category: "blocked", Severity: 2, Source: path}
		if len(fields) > 1 {
			entry.Category = fields[1]
		}
		if len(fields) > 2 {
			if sev, err := strconv.Atoi(fields[2]); err == nil && sev >= 1 && sev <= 3 {
				entry.Severity = sev
			}
		}

		if strings.ContainsRune(fields[0], '/') {
			sb.addCIDR(fields[0], path)
		} else {
			sb.trie.Insert(fields[0], entry)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	LogInfo("[BLOCKLIST] %s: %d entries", path, count)
	return nil
}

func (sb *SiteBlocker) addCIDR(cidr, source string) {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		LogWarn("[BLOCKLIST] Invalid CIDR '%s' in %s: %v", cidr, source, err)
		return
	}
	if err := sb.ranger.Insert(cidranger.NewBasicRangerEntry(*network)); err != nil {
		LogWarn("[BLOCKLIST] Ranger insert %s failed: %v", cidr, err)
	}
}

// CheckURL parses the URL and returns the block verdict for its host.
// Unparseable URLs are never blocked.
func (sb *SiteBlocker) CheckURL(rawURL string) BlockVerdict {
	host := hostOf(rawURL)
	if host == "" {
		return BlockVerdict{}
	}

	if v, ok := sb.cache.Get(host); ok {
		return v
	}

	v, _, _ := sb.flight.Do(host, func() (interface{}, error) {
		if v, ok := sb.cache.Get(host); ok {
			return v, nil
		}
		verdict := sb.checkHost(host)
		sb.cache.Add(host, verdict)
		return verdict, nil
	})
	return v.(BlockVerdict)
}

func (sb *SiteBlocker) checkHost(host string) BlockVerdict {
	// IP-literal hosts go through the CIDR ranger.
	if ip := net.ParseIP(host); ip != nil {
		if contains, err := sb.ranger.Contains(ip); err == nil && contains {
			return BlockVerdict{Blocked: true, Category: "blocked-range", Severity: 2, Source: "cidr"}
		}
		return BlockVerdict{}
	}

	if entry, found := sb.trie.Search(host); found {
		if IsDebugEnabled() {
			LogDebug("[BLOCKLIST] Trie hit %s -> %s/%d", host, entry.Category, entry.Severity)
		}
		return BlockVerdict{Blocked: true, Category: entry.Category, Severity: entry.Severity, Source: entry.Source}
	}

	// Also try the registrable domain, so deep subdomains of a listed site
	// match without a wildcard entry.
	if reg, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil && reg != host {
		if entry, found := sb.trie.Search(reg); found {
			return BlockVerdict{Blocked: true, Category: entry.Category, Severity: entry.Severity, Source: entry.Source}
		}
	}

	if sb.dnsClient != nil {
		return sb.dnsProbe(host)
	}
	return BlockVerdict{}
}

// dnsProbe resolves the host through the configured family-filter resolver.
// Sinkhole answers (NXDOMAIN, 0.0.0.0, 127.0.0.1, ::) mean the filter blocks
// it. Probe failures are never treated as blocked.
func (sb *SiteBlocker) dnsProbe(host string) BlockVerdict {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)

	resp, _, err := sb.dnsClient.Exchange(m, sb.dnsResolver)
	if err != nil {
		if IsDebugEnabled() {
			LogDebug("[BLOCKLIST] DNS probe for %s failed: %v", host, err)
		}
		return BlockVerdict{}
	}

	if resp.Rcode == dns.RcodeNameError {
		return BlockVerdict{Blocked: true, Category: "dns-filter", Severity: 2, Source: sb.dnsResolver}
	}

	for _, rr := range resp.Answer {
		switch a := rr.(type) {
		case *dns.A:
			if a.A.IsUnspecified() || a.A.IsLoopback() {
				return BlockVerdict{Blocked: true, Category: "dns-filter", Severity: 2, Source: sb.dnsResolver}
			}
		case *dns.AAAA:
			if a.AAAA.IsUnspecified() || a.AAAA.IsLoopback() {
				return BlockVerdict{Blocked: true, Category: "dns-filter", Severity: 2, Source: sb.dnsResolver}
			}
		}
	}
	return BlockVerdict{}
}

// Flush drops all cached verdicts. Used by the emergency reset path.
func (sb *SiteBlocker) Flush() {
	sb.cache.Flush()
}

// hostOf extracts a lowercase hostname from a raw URL, tolerating bare hosts
// without a scheme.
func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
}
