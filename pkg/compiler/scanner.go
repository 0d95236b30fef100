package compiler

import "regexp"

// Import specifier extraction. The reference engine does not parse the full
// language; it recognizes the specifier positions that matter for module
// resolution: import/export declarations, dynamic import() and require().
var importPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*import\s+[^'"]*?from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?m)^\s*export\s+[^'"]*?from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"]+)['"]\s*\)`),
}

// ScanImports extracts module specifiers from source text, deduplicated,
// grouped by construct: declarations first, then dynamic forms.
func ScanImports(text string) []string {
	var specifiers []string
	seen := make(map[string]bool)
	for _, pattern := range importPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			specifier := match[1]
			if !seen[specifier] {
				seen[specifier] = true
				specifiers = append(specifiers, specifier)
			}
		}
	}
	return specifiers
}
