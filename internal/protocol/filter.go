// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package protocol

import (
	"regexp"
	"strings"
)

// universalIgnoreSuffixes are never synced regardless of any configured
// filter, matching the original watcher's hardcoded rule for macOS litter.
var universalIgnoreSuffixes = []string{".DS_Store"}

// NormalizeRelPath converts a relative path to forward-slash form by
// replacing every backslash with "/". It does not strip a base directory;
// watcher.RelPath does that for absolute paths.
func NormalizeRelPath(rel string) string {
	return strings.ReplaceAll(rel, "\\", "/")
}

// ShouldIgnoreRel reports whether rel is universally ignored (e.g. .DS_Store)
// independent of any user-configured filter. Ignored paths never reach filter
// evaluation and so never produce a server_log warning.
func ShouldIgnoreRel(rel string) bool {
	base := rel
	if idx := strings.LastIndexByte(rel, '/'); idx >= 0 {
		base = rel[idx+1:]
	}
	for _, suffix := range universalIgnoreSuffixes {
		if base == suffix || strings.HasSuffix(rel, suffix) {
			return true
		}
	}
	return false
}

// ShouldFilterRel reports whether rel matches re. A nil regex matches
// nothing. Backslashes are normalized to forward slashes before matching so
// the same regex behaves the same on every platform.
func ShouldFilterRel(re *regexp.Regexp, rel string) bool {
	if re == nil {
		return false
	}
	return re.MatchString(NormalizeRelPath(rel))
}

// CompileFilters joins a list of regex fragments into a single alternation
// regex, mirroring rebuild_effective_regex: an empty list compiles to nil
// (no filtering), and any fragment that fails to compile is skipped rather
// than aborting the whole set.
func CompileFilters(patterns []string) (*regexp.Regexp, []string) {
	var parts []string
	var invalid []string
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			invalid = append(invalid, p)
			continue
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return nil, invalid
	}
	combined := "(" + strings.Join(parts, ")|(") + ")"
	re, err := regexp.Compile(combined)
	if err != nil {
		return nil, invalid
	}
	return re, invalid
}

// MergeClientPatterns appends a client-supplied regex fragment (from
// ClientConfig.PathRegex) to the server-side pattern list and returns the
// merged list, ready for CompileFilters. An empty clientPattern leaves the
// server-side set untouched.
func MergeClientPatterns(serverPatterns []string, clientPattern string) []string {
	clientPattern = strings.TrimSpace(clientPattern)
	if clientPattern == "" {
		return serverPatterns
	}
	merged := make([]string, 0, len(serverPatterns)+1)
	merged = append(merged, serverPatterns...)
	merged = append(merged, clientPattern)
	return merged
}
