package urlcheck

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/rules"
	"go.uber.org/zap"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

var (
	suspiciousPaths = []*regexp.Regexp{
		regexp.MustCompile(`/[a-f0-9]{32}`),
		regexp.MustCompile(`/verify/[a-z0-9]+/account`),
		regexp.MustCompile(`/security/[a-z0-9]+/update`),
		regexp.MustCompile(`/\.\./\.\.`),
	}
)

const maxQueryPairs = 2

// Validator classifies URLs found in emails
type Validator struct {
	rules  *rules.Rules
	logger *zap.Logger
}

// New creates a new URL validator
func New(r *rules.Rules, logger *zap.Logger) *Validator {
	return &Validator{
		rules:  r,
		logger: logger,
	}
}

// IsSuspicious reports whether a URL shows any phishing trait. URLs that
// cannot be parsed are treated as suspicious.
func (v *Validator) IsSuspicious(rawURL string) bool {
	decoded := decode(rawURL)
	lowered := strings.ToLower(decoded)

	u, err := url.Parse(lowered)
	if err != nil {
		v.logger.Debug("Unparseable URL treated as suspicious",
			zap.String("url", rawURL),
			zap.Error(err))
		return true
	}

	host := u.Hostname()

	switch {
	case v.rules.IsShortener(host):
		return true
	case v.rules.HasSuspiciousTLD(host):
		return true
	case isIP(host):
		return true
	case v.hasHomograph(host):
		return true
	case v.hasSubdomainSpoofing(host):
		return true
	case hasSuspiciousPath(u):
		return true
	case v.hasMultipleRedirects(lowered):
		return true
	}
	return false
}

// DomainInfo returns descriptive facts about the URL host, or nil when the
// URL cannot be parsed
func (v *Validator) DomainInfo(rawURL string) *core.DomainInfo {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	host := strings.ToLower(u.Hostname())
	info := &core.DomainInfo{
		URL:               rawURL,
		Domain:            strings.ToLower(u.Host),
		RegistrableDomain: registrableDomain(host),
		UnicodeDomain:     host,
		IsHTTPS:           u.Scheme == "https",
		HasPort:           u.Port() != "",
		HasQuery:          u.RawQuery != "",
		IsShortened:       v.rules.IsShortener(host),
		IsIP:              isIP(host),
	}

	for _, segment := range strings.Split(u.Path, "/") {
		if segment != "" {
			info.PathDepth++
		}
	}

	for _, label := range strings.Split(host, ".") {
		if strings.HasPrefix(label, "xn--") {
			info.IsPunycode = true
			break
		}
	}
	if unicode, err := idna.ToUnicode(host); err == nil {
		info.UnicodeDomain = unicode
	}

	return info
}

// decode percent-decodes a URL, leaving it unchanged on invalid escapes
func decode(rawURL string) string {
	decoded, err := url.PathUnescape(rawURL)
	if err != nil {
		return rawURL
	}
	return decoded
}

func isIP(host string) bool {
	return host != "" && net.ParseIP(host) != nil
}

// registrableDomain returns the eTLD+1 of host, falling back to the last
// two labels for hosts the public suffix list cannot place
func registrableDomain(host string) string {
	if host == "" {
		return ""
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

func registrableLabel(host string) string {
	d := registrableDomain(host)
	if i := strings.Index(d, "."); i >= 0 {
		return d[:i]
	}
	return ""
}

func (v *Validator) hasHomograph(host string) bool {
	label := registrableLabel(host)
	if label == "" {
		return false
	}

	for _, domains := range v.rules.LegitimateDomains {
		for _, legit := range domains {
			legitLabel := registrableLabel(legit)
			if legitLabel == "" || label == legitLabel {
				continue
			}
			for _, sub := range v.rules.HomographSubstitutions {
				if strings.ReplaceAll(label, sub.From, sub.To) == legitLabel {
					return true
				}
			}
			if fuzzy.LevenshteinDistance(label, legitLabel) == 1 {
				return true
			}
		}
	}
	return false
}

func (v *Validator) hasSubdomainSpoofing(host string) bool {
	registrable := registrableDomain(host)
	if registrable == "" || registrable == host {
		return false
	}
	subdomains := strings.TrimSuffix(host, "."+registrable)

	for brand := range v.rules.LegitimateDomains {
		if strings.Contains(subdomains, brand) && !v.rules.IsLegitimateFor(brand, registrable) {
			return true
		}
	}
	return false
}

func hasSuspiciousPath(u *url.URL) bool {
	for _, re := range suspiciousPaths {
		if re.MatchString(u.Path) {
			return true
		}
	}
	return queryPairs(u.RawQuery) > maxQueryPairs
}

// queryPairs counts the key=value segments of a raw query that have a
// non-empty key
func queryPairs(rawQuery string) int {
	n := 0
	for _, segment := range strings.Split(rawQuery, "&") {
		if key, _, ok := strings.Cut(segment, "="); ok && key != "" {
			n++
		}
	}
	return n
}

func (v *Validator) hasMultipleRedirects(lowered string) bool {
	count := 0
	for _, param := range v.rules.RedirectParams {
		if strings.Contains(lowered, param) {
			count++
		}
	}
	return count >= 2
}
