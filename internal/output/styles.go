package output

import "github.com/charmbracelet/lipgloss"

// Color palette — named constants for the ANSI 256 colors used in the
// CLI. These are the single source of truth; never use inline
// lipgloss.Color literals.
var (
	// ColorCyan is used for identifiable nouns: module paths, function
	// names, tag paths.
	ColorCyan = lipgloss.Color("14")

	// ColorYellow is a highlight color; none of the styles below uses it
	// (failure kinds render in colorBoldRed).
	ColorYellow = lipgloss.Color("220")

	// colorBoldRed is used for failed evaluations (matches ERROR level).
	colorBoldRed = lipgloss.Color("204")

	// colorGreenCheck is used for the completion checkmark (✔).
	colorGreenCheck = lipgloss.Color("10")
)

// Semantic styles — map domain concepts to visual presentation.
var (
	// styleNoun styles identifiable nouns (module paths, tag paths).
	styleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// styleDim styles structural chrome (scope prefixes, separators).
	styleDim = lipgloss.NewStyle().Faint(true)

	// styleFailure styles failure-kind tags.
	styleFailure = lipgloss.NewStyle().Foreground(colorBoldRed)

	// styleDone styles the completion checkmark.
	styleDone = lipgloss.NewStyle().Foreground(colorGreenCheck)
)

// Noun renders an identifiable noun.
func Noun(s string) string { return styleNoun.Render(s) }

// FailureTag renders a failure-kind tag path.
func FailureTag(s string) string { return styleFailure.Render("#" + s) }

// Done renders the completion checkmark plus a message.
func Done(msg string) string { return styleDone.Render("✔") + " " + msg }
