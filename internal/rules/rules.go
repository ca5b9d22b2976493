package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// BrandSpoof pairs a brand name with the regex that detects look-alikes of it
type BrandSpoof struct {
	Brand   string `yaml:"brand"`
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern
func (b BrandSpoof) Regexp() *regexp.Regexp {
	return b.re
}

// Substitution is a homograph character substitution
type Substitution struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Rules holds the static detection tables. A Rules value must not be modified
// after Load or Default returns it.
type Rules struct {
	TrustedDomains         []string            `yaml:"trusted_domains"`
	SuspiciousTLDs         []string            `yaml:"suspicious_tlds"`
	URLShorteners          []string            `yaml:"url_shorteners"`
	BrandSpoofs            []BrandSpoof        `yaml:"brand_spoofs"`
	LegitimateDomains      map[string][]string `yaml:"legitimate_domains"`
	HomographSubstitutions []Substitution      `yaml:"homograph_substitutions"`
	UrgencyPatterns        []string            `yaml:"urgency_patterns"`
	SubjectUrgencyPatterns []string            `yaml:"subject_urgency_patterns"`
	FinancialKeywords      []string            `yaml:"financial_keywords"`
	CredentialKeywords     []string            `yaml:"credential_keywords"`
	SuspiciousPhrases      []string            `yaml:"suspicious_phrases"`
	DangerousExtensions    []string            `yaml:"dangerous_extensions"`
	RedirectParams         []string            `yaml:"redirect_params"`
	SenderRiskKeywords     []string            `yaml:"sender_risk_keywords"`

	urgency        []*regexp.Regexp
	subjectUrgency []*regexp.Regexp
}

// Default returns the embedded rule tables
func Default() *Rules {
	r, err := parse(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rules are invalid: %v", err))
	}
	return r
}

// Load reads rule tables from a YAML file. An empty path returns the defaults.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	r, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %s: %w", path, err)
	}
	return r, nil
}

func parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate normalizes the tables and compiles every regex they contain
func (r *Rules) Validate() error {
	r.TrustedDomains = lowerAll(r.TrustedDomains)
	r.SuspiciousTLDs = lowerAll(r.SuspiciousTLDs)
	r.URLShorteners = lowerAll(r.URLShorteners)
	r.DangerousExtensions = lowerAll(r.DangerousExtensions)
	r.RedirectParams = lowerAll(r.RedirectParams)

	for i := range r.BrandSpoofs {
		b := &r.BrandSpoofs[i]
		if b.Brand == "" {
			return fmt.Errorf("brand spoof %d has no brand", i)
		}
		re, err := regexp.Compile(b.Pattern)
		if err != nil {
			return fmt.Errorf("invalid spoof pattern for %s: %w", b.Brand, err)
		}
		b.re = re
	}

	legit := make(map[string][]string, len(r.LegitimateDomains))
	for brand, domains := range r.LegitimateDomains {
		legit[strings.ToLower(brand)] = lowerAll(domains)
	}
	r.LegitimateDomains = legit

	var err error
	if r.urgency, err = compileAll(r.UrgencyPatterns); err != nil {
		return fmt.Errorf("invalid urgency pattern: %w", err)
	}
	if r.subjectUrgency, err = compileAll(r.SubjectUrgencyPatterns); err != nil {
		return fmt.Errorf("invalid subject urgency pattern: %w", err)
	}
	return nil
}

// WithOverrides returns a copy of r with any non-empty list replacing the
// corresponding table
func (r *Rules) WithOverrides(trusted, tlds, shorteners []string) *Rules {
	c := *r
	if len(trusted) > 0 {
		c.TrustedDomains = lowerAll(trusted)
	}
	if len(tlds) > 0 {
		c.SuspiciousTLDs = lowerAll(tlds)
	}
	if len(shorteners) > 0 {
		c.URLShorteners = lowerAll(shorteners)
	}
	return &c
}

// UrgencyRegexps returns the compiled body and subject urgency patterns
func (r *Rules) UrgencyRegexps() []*regexp.Regexp {
	return r.urgency
}

// SubjectUrgencyRegexps returns the compiled subject-only urgency patterns
func (r *Rules) SubjectUrgencyRegexps() []*regexp.Regexp {
	return r.subjectUrgency
}

// IsLegitimateFor reports whether host is, or is a subdomain of, one of the
// brand's legitimate domains
func (r *Rules) IsLegitimateFor(brand, host string) bool {
	for _, d := range r.LegitimateDomains[strings.ToLower(brand)] {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsShortener reports whether a known shortener domain appears in host as a
// run of whole labels, in any position
func (r *Rules) IsShortener(host string) bool {
	padded := "." + strings.ToLower(host) + "."
	for _, s := range r.URLShorteners {
		if strings.Contains(padded, "."+s+".") {
			return true
		}
	}
	return false
}

// HasSuspiciousTLD reports whether host ends with one of the suspicious TLDs
func (r *Rules) HasSuspiciousTLD(host string) bool {
	host = strings.ToLower(host)
	for _, tld := range r.SuspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}
	return false
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
