package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,14}$`)

	// Heuristic tripwire for logging only; Clean is the actual defense.
	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*script`),
		regexp.MustCompile(`(?i)<\s*iframe`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)\bon\w+\s*=`),
		regexp.MustCompile(`(?i)union\s+select`),
		regexp.MustCompile(`(?i)drop\s+table`),
		regexp.MustCompile(`(?i)\bexec\s*\(`),
		regexp.MustCompile(`(?i)\beval\s*\(`),
	}

	unescaper = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
	escaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
)

// Clean strips HTML markup entirely, escapes the characters < > " ' &
// to their entity forms and trims surrounding whitespace. Entities are
// normalized first so the function is idempotent.
func Clean(raw string) string {
	s := unescaper.Replace(raw)
	s = tagPattern.ReplaceAllString(s, "")
	s = escaper.Replace(s)
	return strings.TrimSpace(s)
}

// CleanValue sanitizes string values; anything else cleans to empty.
func CleanValue(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Clean(s)
}

// ValidEmail reports whether s has a local@domain.tld shape within the
// 254 character ceiling.
func ValidEmail(s string) bool {
	if len(s) > 254 {
		return false
	}
	return emailPattern.MatchString(s)
}

// ValidPhone reports whether s is an E.164-like number once spaces,
// hyphens and parentheses are removed.
func ValidPhone(s string) bool {
	stripped := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(s)
	return phonePattern.MatchString(stripped)
}

// Rules configures CheckField. Pattern and Custom operate on the
// sanitized value.
type Rules struct {
	Required  bool
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
	Custom    func(string) bool
}

// Result carries the outcome of CheckField; valid only if no rule failed.
type Result struct {
	OK     bool
	Errors []string
}

// CheckField sanitizes value and evaluates it against rules, appending
// a distinct error for every rule that fails.
func CheckField(value string, rules Rules) Result {
	cleaned := Clean(value)
	var errs []string

	if rules.Required && cleaned == "" {
		errs = append(errs, "value is required")
	}
	if rules.MinLength > 0 && len(cleaned) < rules.MinLength {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", rules.MinLength))
	}
	if rules.MaxLength > 0 && len(cleaned) > rules.MaxLength {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", rules.MaxLength))
	}
	if rules.Pattern != nil && cleaned != "" && !rules.Pattern.MatchString(cleaned) {
		errs = append(errs, "value has an invalid format")
	}
	if rules.Custom != nil && !rules.Custom(cleaned) {
		errs = append(errs, "value failed validation")
	}

	return Result{OK: len(errs) == 0, Errors: errs}
}

// LooksInjected reports whether raw matches any known injection
// pattern. Matches are logged, never relied on as a security boundary.
func LooksInjected(raw string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(raw) {
			return true
		}
	}
	return false
}
