package errors

import (
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// Suggest returns fixes for the SlotterError in err's chain, keyed by its
// code. Unknown codes get none.
func Suggest(err error) []ErrorSuggestion {
	switch Code(err) {
	case ErrCodeComponentNotFound:
		return []ErrorSuggestion{{
			Title:   "Check the component name",
			Command: "slotter components",
		}}
	case ErrCodePatternGroups, ErrCodeInvalidPattern:
		return []ErrorSuggestion{{
			Title:       "Capture the value name in the pattern",
			Description: "The whole placeholder and the name each need a group, or name the group 'name'",
			Example:     `value_pattern: "(\{(\w+)\})"`,
		}}
	case ErrCodeInvalidTag:
		return []ErrorSuggestion{{
			Title:       "Use a non-void element name",
			Description: "Wrapper and value tags must be able to hold content",
			Example:     "as: section",
		}}
	case ErrCodeDocumentInvalid:
		return []ErrorSuggestion{{
			Title:       "Check the document fields",
			Description: "Set exactly one of template or template_file; component values need a 'component' name and optional 'props'",
		}}
	case ErrCodeFileNotFound:
		return []ErrorSuggestion{{
			Title:   "Check the document path",
			Example: "slotter render pages/index.yml",
		}}
	case ErrCodeConfigInvalid:
		return []ErrorSuggestion{{
			Title:       "Verify your configuration",
			Description: "Check .slotter.yml or the file named by SLOTTER_CONFIG_FILE",
		}}
	case ErrCodeMountNotFound:
		return []ErrorSuggestion{{
			Title:   "List the mounted keys",
			Command: "slotter inspect",
		}}
	}
	return nil
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
	}

	return output.String()
}

// EnhancedError wraps an error with suggestions
type EnhancedError struct {
	OriginalError error
	Title         string
	Suggestions   []ErrorSuggestion
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	return FormatSuggestions(e.Title, e.Suggestions)
}

// Unwrap returns the original error
func (e *EnhancedError) Unwrap() error {
	return e.OriginalError
}

// Enhance attaches the suggestions for err. Errors without suggestions are
// returned unchanged.
func Enhance(err error) error {
	if err == nil {
		return nil
	}
	suggestions := Suggest(err)
	if len(suggestions) == 0 {
		return err
	}
	return &EnhancedError{OriginalError: err, Title: err.Error(), Suggestions: suggestions}
}
