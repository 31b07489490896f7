package agent

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/internal/util"
)

// GeneratedFile is a file body produced by a model call.
type GeneratedFile struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
	Content  string `json:"content"`
	Lines    int    `json:"lines"`
	Applied  bool   `json:"applied,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newGeneratedFile(p, content string) GeneratedFile {
	return GeneratedFile{
		Path:     p,
		Language: util.DetectLanguage(p),
		Content:  content,
		Lines:    countLines(content),
	}
}

// Severity grades review and security findings.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight is the score impact of one finding.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 10
	case SeverityHigh:
		return 7
	case SeverityMedium:
		return 4
	default:
		return 1
	}
}

func parseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func countLines(s string) int {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var kindKeywords = []struct {
	kind  core.TaskKind
	words []string
}{
	{core.TaskKindTesting, []string{"test", "coverage", "spec"}},
	{core.TaskKindDocumentation, []string{"document", "readme", "docs", "guide"}},
	{core.TaskKindPackaging, []string{"package", "docker", "release", "deploy", "build"}},
	{core.TaskKindSecurity, []string{"secur", "vulnerab", "secret", "audit"}},
	{core.TaskKindReview, []string{"review", "refactor", "inspect"}},
	{core.TaskKindResearch, []string{"research", "investigate", "compare", "evaluate"}},
	{core.TaskKindPlanning, []string{"plan", "design", "architect"}},
}

// inferTaskKind guesses a task kind from free text; code generation is the
// default.
func inferTaskKind(text string) core.TaskKind {
	lower := strings.ToLower(text)
	for _, kk := range kindKeywords {
		for _, w := range kk.words {
			if strings.Contains(lower, w) {
				return kk.kind
			}
		}
	}
	return core.TaskKindCodeGeneration
}

var clauseSplit = regexp.MustCompile(`(?i)[.;\n]+|,?\s+then\s+|,?\s+and then\s+`)

// splitClauses breaks a description into trimmed, non-empty clauses.
func splitClauses(text string) []string {
	var out []string
	for _, c := range clauseSplit.Split(text, -1) {
		c = strings.TrimSpace(strings.Trim(c, "-*• "))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// firstLine returns the first non-empty line of s, truncated to n runes.
func firstLine(s string, n int) string {
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return core.Summarize(l, n)
		}
	}
	return ""
}

// dominantLanguage returns the most common programming language among
// context files, or fallback when none is recognized.
func dominantLanguage(tc core.TaskContext, fallback string) string {
	counts := map[string]int{}
	for _, f := range tc.Files {
		lang := f.Language
		if lang == "" {
			lang = util.DetectLanguage(f.Path)
		}
		if _, ok := extensions[lang]; ok {
			counts[lang]++
		}
	}
	best, n := fallback, 0
	langs := make([]string, 0, len(counts))
	for l := range counts {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	for _, l := range langs {
		if counts[l] > n {
			best, n = l, counts[l]
		}
	}
	return best
}

var extensions = map[string]string{
	"go":         ".go",
	"python":     ".py",
	"javascript": ".js",
	"typescript": ".ts",
	"rust":       ".rs",
	"java":       ".java",
	"ruby":       ".rb",
}

// defaultSourcePath names the single file produced when no targets are known.
func defaultSourcePath(lang string) string {
	ext, ok := extensions[lang]
	if !ok {
		ext = ".txt"
	}
	return "main" + ext
}

// testPathFor derives the conventional test file path for a source file.
func testPathFor(p string) string {
	dir, file := path.Split(p)
	ext := path.Ext(file)
	base := strings.TrimSuffix(file, ext)
	switch ext {
	case ".go":
		return dir + base + "_test.go"
	case ".py":
		return dir + "test_" + base + ".py"
	case ".js", ".ts", ".jsx", ".tsx":
		return dir + base + ".test" + ext
	case ".rb":
		return dir + base + "_spec.rb"
	default:
		return dir + base + "_test" + ext
	}
}

func isTestPath(p string) bool {
	base := path.Base(p)
	return strings.HasSuffix(base, "_test.go") ||
		strings.HasPrefix(base, "test_") ||
		strings.Contains(base, ".test.") ||
		strings.HasSuffix(base, "_spec.rb")
}

func contentOf(tc core.TaskContext, p string) string {
	if f, ok := tc.File(p); ok {
		return f.Content
	}
	return ""
}
