package lua

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// Issue severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Issue is one finding of Scan.
type Issue struct {
	Severity       string `json:"severity"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	File           string `json:"file"`
	Line           int    `json:"line"`
	Recommendation string `json:"recommendation,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s:%d: [%s] %s", i.File, i.Line, i.Severity, i.Description)
}

type rule struct {
	category       string
	severity       string
	pattern        *regexp.Regexp
	description    string
	recommendation string
}

var rules = []rule{
	{
		category:       "sandboxed-library",
		severity:       SeverityHigh,
		pattern:        regexp.MustCompile(`\b(os|io|debug)\s*\.\s*[a-z_]+`),
		description:    "uses a library that is not available to plugins",
		recommendation: "Use lumi.save_data and lumi.load_data for file access.",
	},
	{
		category:       "sandboxed-library",
		severity:       SeverityHigh,
		pattern:        regexp.MustCompile(`\b(dofile|loadfile|loadstring|load)\s*\(`),
		description:    "loads code dynamically, which plugins cannot do",
		recommendation: "Split the code into modules inside the package and require them.",
	},
	{
		category:       "sandboxed-library",
		severity:       SeverityMedium,
		pattern:        regexp.MustCompile(`\bpackage\s*\.\s*(loadlib|cpath)\b`),
		description:    "native modules are not available to plugins",
	},
	{
		category:       "hardcoded-secret",
		severity:       SeverityHigh,
		pattern:        regexp.MustCompile(`(?i)(api[_-]?key|apikey|token|auth[_-]?token)\s*=\s*["']([a-zA-Z0-9]{20,})["']`),
		description:    "potential hardcoded token",
		recommendation: "Move secrets into the plugin settings.",
	},
	{
		category:       "hardcoded-secret",
		severity:       SeverityHigh,
		pattern:        regexp.MustCompile(`(?i)(password|passwd|pwd)\s*=\s*["']([^"']{8,})["']`),
		description:    "potential hardcoded password",
		recommendation: "Move secrets into the plugin settings.",
	},
	{
		category:    "path-traversal",
		severity:    SeverityMedium,
		pattern:     regexp.MustCompile(`["'][^"']*\.\./`),
		description: "string literal climbs out of the package directory",
	},
}

// comment matches a Lua line comment.
var comment = regexp.MustCompile(`^\s*--`)

// Scan checks every .lua file under dir for calls the sandbox rejects at
// run time and for hardcoded secrets. Findings are sorted by file and line.
func Scan(dir string) ([]Issue, error) {
	var issues []Issue

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".lua" {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		issues = append(issues, scanFile(rel, content)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].File != issues[j].File {
			return issues[i].File < issues[j].File
		}
		return issues[i].Line < issues[j].Line
	})
	return issues, nil
}

func scanFile(name string, content []byte) []Issue {
	var issues []Issue

	sc := bufio.NewScanner(bytes.NewReader(content))
	for line := 1; sc.Scan(); line++ {
		text := sc.Bytes()
		if comment.Match(text) {
			continue
		}
		for _, r := range rules {
			if !r.pattern.Match(text) {
				continue
			}
			issues = append(issues, Issue{
				Severity:       r.severity,
				Category:       r.category,
				Description:    r.description,
				File:           name,
				Line:           line,
				Recommendation: r.recommendation,
			})
		}
	}

	return issues
}
