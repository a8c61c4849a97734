package model

import (
	"regexp"
	"strings"
)

// NameMappingRule rewrites raw bank descriptions to a clean target name and
// optionally recategorizes matching entries. The first matching pattern
// wins; matching is case-insensitive substring, or regex when the pattern
// contains regex metacharacters and compiles.
type NameMappingRule struct {
	Target   string   `yaml:"target" json:"target"`
	Category string   `yaml:"category,omitempty" json:"category,omitempty"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// NameMappingConfig is the full rule set as loaded from the rules file.
type NameMappingConfig struct {
	Rules          []NameMappingRule `yaml:"rules" json:"rules"`
	WarnOnUnmapped bool              `yaml:"warn_on_unmapped" json:"warn_on_unmapped"`
	FallbackToRaw  bool              `yaml:"fallback_to_raw" json:"fallback_to_raw"`
}

var regexMeta = regexp.MustCompile(`[\^\$\*\+\?\[\]\(\)\|\\]`)

// Matches reports whether the rule matches the given raw description.
func (r NameMappingRule) Matches(rawDescription string) bool {
	lower := strings.ToLower(rawDescription)
	for _, pattern := range r.Patterns {
		if pattern == "" {
			continue
		}
		if regexMeta.MatchString(pattern) {
			if re, err := regexp.Compile("(?i)" + pattern); err == nil {
				if re.MatchString(rawDescription) {
					return true
				}
				continue
			}
			// Fall through to substring when the pattern doesn't compile.
		}
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// FirstMatch returns the first rule whose patterns match the raw
// description, honoring rule order.
func (c *NameMappingConfig) FirstMatch(rawDescription string) (NameMappingRule, bool) {
	for _, rule := range c.Rules {
		if rule.Matches(rawDescription) {
			return rule, true
		}
	}
	return NameMappingRule{}, false
}
