package urlnorm

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// listingDomains are platforms that host profiles rather than business sites.
// A host matches a domain exactly or as a subdomain.
var listingDomains = []string{
	"linkedin.com",
	"facebook.com",
	"fb.com",
	"twitter.com",
	"instagram.com",
	"youtube.com",
	"tiktok.com",
	"pinterest.com",
	"snapchat.com",
	"telegram.me",
	"whatsapp.com",
	"yelp.com",
	"foursquare.com",
	"tripadvisor.com",
	"maps.google.com",
}

// listingPaths match on host plus path for shorteners and map links.
var listingPaths = []string{
	"goo.gl/maps",
	"google.com/maps",
	"maps.app.goo.gl",
}

// IsListingProfile reports whether a normalized address belongs to a social
// or listing platform.
func IsListingProfile(addr string) bool {
	host := Host(addr)
	if host == "" {
		return false
	}
	for _, domain := range listingDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	s := stripPrefixFold(strings.ToLower(strings.TrimSpace(addr)), "https://")
	s = stripPrefixFold(s, "http://")
	s = stripPrefixFold(s, "www.")
	for _, p := range listingPaths {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// RegistrableDomain returns the eTLD+1 of an address, or its host when the
// public suffix list cannot resolve one.
func RegistrableDomain(addr string) string {
	host := Host(addr)
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
