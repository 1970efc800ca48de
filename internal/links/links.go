package links

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	urlPattern = regexp.MustCompile(`https?://[a-zA-Z0-9$\-_@.&+!*(),%/?=:#~;]+`)
	ipv4Host   = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// suspiciousTLDs lists throwaway or abuse-heavy top level domains that
// rarely appear in legitimate mail.
var suspiciousTLDs = []string{
	".tk", ".ml", ".ga", ".cf", ".gq",
	".xyz", ".online", ".site", ".top", ".bid",
}

// Finding captures the verdict for a single discovered URL.
type Finding struct {
	URL        string   `json:"url"`
	Host       string   `json:"host"`
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons,omitempty"`
}

// FindURLs returns every http/https URL embedded in the supplied text, in
// order of appearance and with trailing punctuation trimmed.
func FindURLs(text string) []string {
	raw := urlPattern.FindAllString(text, -1)
	var out []string
	for _, candidate := range raw {
		candidate = strings.TrimRight(candidate, ".,;:!?)")
		if candidate != "" {
			out = append(out, candidate)
		}
	}
	return out
}

// Inspect evaluates a single URL against suspicious-link heuristics:
// throwaway TLDs, IP-literal hosts and uncommon ports. A URL that cannot
// be parsed at all is treated as suspicious.
func Inspect(raw string) Finding {
	finding := Finding{URL: raw}

	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Hostname() == "" {
		finding.Suspicious = true
		finding.Reasons = append(finding.Reasons, "unparseable URL")
		return finding
	}

	host := strings.ToLower(parsed.Hostname())
	finding.Host = host

	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			finding.Suspicious = true
			finding.Reasons = append(finding.Reasons, fmt.Sprintf("suspicious TLD %s", tld))
			break
		}
	}

	if ipv4Host.MatchString(host) {
		finding.Suspicious = true
		finding.Reasons = append(finding.Reasons, "IP-literal host")
	}

	if port := parsed.Port(); port != "" {
		if n, convErr := strconv.Atoi(port); convErr == nil && n != 80 && n != 443 {
			finding.Suspicious = true
			finding.Reasons = append(finding.Reasons, fmt.Sprintf("uncommon port %d", n))
		}
	}

	return finding
}

// InspectAll finds and inspects every URL in the text.
func InspectAll(text string) []Finding {
	urls := FindURLs(text)
	if len(urls) == 0 {
		return nil
	}
	findings := make([]Finding, 0, len(urls))
	for _, u := range urls {
		findings = append(findings, Inspect(u))
	}
	return findings
}

// SuspiciousURLs filters findings down to the URLs judged suspicious.
func SuspiciousURLs(findings []Finding) []string {
	var out []string
	for _, f := range findings {
		if f.Suspicious {
			out = append(out, f.URL)
		}
	}
	return out
}

// Issues flattens the reasons of suspicious findings into human-readable
// technical issue strings.
func Issues(findings []Finding) []string {
	var out []string
	for _, f := range findings {
		if !f.Suspicious {
			continue
		}
		for _, reason := range f.Reasons {
			out = append(out, fmt.Sprintf("%s: %s", reason, f.URL))
		}
	}
	return out
}
