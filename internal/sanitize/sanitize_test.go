package sanitize

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "Hello, my child is 5 years old.", "Hello, my child is 5 years old."},
		{"tags stripped", "<b>Hello</b> world", "Hello world"},
		{"script stripped and content escaped", "<script>alert('x')</script>", "alert(&#39;x&#39;)"},
		{"special characters escaped", `Tom & "Jerry"`, "Tom &amp; &quot;Jerry&quot;"},
		{"whitespace trimmed", "  padded  ", "padded"},
		{"empty stays empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"Hello, my child is 5 years old.",
		"<script>alert(1)</script>",
		`Tom & "Jerry"`,
		"a < b && b > c",
		"&amp;&lt;&gt;",
	}
	for _, input := range inputs {
		once := Clean(input)
		assert.Equal(t, once, Clean(once), "Clean(Clean(x)) must equal Clean(x) for %q", input)
	}
}

func TestClean_NoActiveMarkupSurvives(t *testing.T) {
	hostile := []string{
		"<script>alert(1)</script>",
		"<img src=x onerror=alert(1)>",
		"<iframe src='javascript:alert(1)'></iframe>",
		"<<script>script>nested<</script>/script>",
	}
	for _, input := range hostile {
		cleaned := Clean(input)
		assert.NotContains(t, cleaned, "<")
		assert.NotContains(t, cleaned, ">")
	}
}

func TestClean_EverySpecialCharacterEscaped(t *testing.T) {
	inputs := []string{
		`Tom & "Jerry" <3> it's`,
		"<a href='x'>&copy;</a>",
		"plain text",
		"&&&&",
	}
	entityStripper := strings.NewReplacer(
		"&amp;", "", "&lt;", "", "&gt;", "", "&quot;", "", "&#39;", "")

	for _, input := range inputs {
		residue := entityStripper.Replace(Clean(input))
		for _, ch := range []string{"<", ">", `"`, "'", "&"} {
			assert.NotContains(t, residue, ch, "input %q leaves %q outside an entity", input, ch)
		}
	}
}

func TestCleanValue(t *testing.T) {
	assert.Equal(t, "hello", CleanValue("  hello  "))
	assert.Equal(t, "", CleanValue(42), "non-string values clean to empty")
	assert.Equal(t, "", CleanValue(nil))
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"parent@school.test", true},
		{"first.last+tag@example.co.uk", true},
		{"no-at-sign", false},
		{"spaces in@mail.test", false},
		{"", false},
		{"a@" + strings.Repeat("x", 260) + ".com", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidEmail(tt.email), "email %q", tt.email)
	}
}

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		valid bool
	}{
		{"+33612345678", true},
		{"+1 650-555-0100", true},
		{"(212) 555-0147", true},
		{"not a phone", false},
		{"06 12 34 56 78", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidPhone(tt.phone), "phone %q", tt.phone)
	}
}

func TestCheckField(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		rules     Rules
		wantOK    bool
		wantCount int
	}{
		{"required missing", "", Rules{Required: true}, false, 1},
		{"required present", "x", Rules{Required: true}, true, 0},
		{"too short", "a", Rules{MinLength: 2}, false, 1},
		{"too long", "abcdef", Rules{MaxLength: 3}, false, 1},
		{"pattern mismatch", "abc", Rules{Pattern: regexp.MustCompile(`^\d+$`)}, false, 1},
		{"custom failure", "abc", Rules{Custom: func(string) bool { return false }}, false, 1},
		{
			"multiple failures accumulate", "",
			Rules{Required: true, MinLength: 5},
			false, 2,
		},
		{
			"length measured after cleaning", "<b>ab</b>",
			Rules{MinLength: 3},
			false, 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckField(tt.value, tt.rules)
			assert.Equal(t, tt.wantOK, result.OK)
			assert.Len(t, result.Errors, tt.wantCount)
		})
	}
}

func TestLooksInjected(t *testing.T) {
	tests := []struct {
		input    string
		injected bool
	}{
		{"<script>alert(1)</script>", true},
		{"< SCRIPT >alert(1)", true},
		{"<iframe src='x'>", true},
		{"javascript:alert(1)", true},
		{"<img onerror=steal()>", true},
		{"' OR 1=1; DROP TABLE users;", true},
		{"1 UNION SELECT secret FROM admins", true},
		{"exec(payload)", true},
		{"eval(code)", true},
		{"Hello, my child is 5 years old.", false},
		{"We would like a tour in September.", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.injected, LooksInjected(tt.input), "input %q", tt.input)
	}
}
