// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"fmt"

	"github.com/woozymasta/pathrules"
)

// pathMatcher holds compiled selection rules for pack and extract.
// A nil matcher selects every path.
type pathMatcher struct {
	matcher *pathrules.Matcher
}

// newPathMatcher compiles path rules; it returns nil when no usable rule is given.
func newPathMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*pathMatcher, error) {
	rules = normalizeRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidRules, err)
	}

	return &pathMatcher{matcher: matcher}, nil
}

// normalizeRules normalizes rule patterns and drops empty patterns.
func normalizeRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether path is selected by rules.
func (m *pathMatcher) Match(path string, isDir bool) bool {
	if m == nil || m.matcher == nil {
		return true
	}

	candidate := NormalizePath(path)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, isDir)
}

// IncludeRules builds include rules from raw patterns.
func IncludeRules(patterns ...string) []pathrules.Rule {
	return rulesLike(pathrules.Rule{Action: pathrules.ActionInclude}, patterns)
}

// ExcludeRules builds exclude rules from raw patterns.
func ExcludeRules(patterns ...string) []pathrules.Rule {
	return rulesLike(pathrules.Rule{Action: pathrules.ActionExclude}, patterns)
}

// rulesLike builds one rule per pattern, copying the action from base.
func rulesLike(base pathrules.Rule, patterns []string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		rule := base
		rule.Pattern = pattern
		rules = append(rules, rule)
	}

	return rules
}

// defaultMatcherOptions fills an unset default action: exclude when rules
// contain an include rule (allow-list), include otherwise (deny-list).
func defaultMatcherOptions(rules []pathrules.Rule, opts pathrules.MatcherOptions) pathrules.MatcherOptions {
	if opts.DefaultAction != pathrules.ActionUnknown {
		return opts
	}

	opts.DefaultAction = pathrules.ActionInclude
	for _, rule := range rules {
		if rule.Action == pathrules.ActionInclude {
			opts.DefaultAction = pathrules.ActionExclude
			break
		}
	}

	return opts
}
