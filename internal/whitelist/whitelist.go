package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether a sender belongs to a trusted domain
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new trusted-domain checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	// Normalize domains (lowercase)
	normalizedDomains := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			normalizedDomains = append(normalizedDomains, domain)
		}
	}

	if len(normalizedDomains) > 0 && logger != nil {
		logger.Debug("Initialized trusted domain checker", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains: normalizedDomains,
		logger:  logger,
	}
}

// Domains returns the normalized trusted domains
func (c *Checker) Domains() []string {
	return c.domains
}

// IsTrusted reports whether the raw sender carries exactly one '@' and
// contains "@<domain>" for some trusted domain
func (c *Checker) IsTrusted(sender string) bool {
	if len(c.domains) == 0 {
		return false
	}

	lowered := strings.ToLower(sender)
	if strings.Count(lowered, "@") != 1 {
		return false
	}

	for _, trusted := range c.domains {
		if strings.Contains(lowered, "@"+trusted) {
			if c.logger != nil {
				c.logger.Debug("Sender domain is trusted",
					zap.String("domain", trusted),
					zap.String("sender", sender))
			}
			return true
		}
	}

	return false
}
