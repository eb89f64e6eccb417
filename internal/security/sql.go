// Package security provides helpers for building queries from user input
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// LikeEscape is the escape character used in LIKE patterns. A backslash
// would need doubling on MySQL, so a neutral character is used instead.
const LikeEscape = "!"

// ValidIdentifierRegex matches plain lowercase column names
var ValidIdentifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidateIdentifier checks if a string is a valid SQL identifier
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("identifier too long (max 63 characters)")
	}
	if !ValidIdentifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// EscapeLikePattern escapes special characters in LIKE patterns
func EscapeLikePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, LikeEscape, LikeEscape+LikeEscape)
	pattern = strings.ReplaceAll(pattern, `%`, LikeEscape+`%`)
	pattern = strings.ReplaceAll(pattern, `_`, LikeEscape+`_`)
	return pattern
}

// ContainsAny builds a case-insensitive condition matching rows where any
// of columns contains any of terms. Columns that are not plain identifiers
// are skipped. An empty condition means nothing could be built.
func ContainsAny(columns []string, terms []string) (string, []interface{}) {
	var conditions []string
	var params []interface{}
	for _, col := range columns {
		if err := ValidateIdentifier(col); err != nil {
			continue
		}
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			conditions = append(conditions, fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '%s'", col, LikeEscape))
			params = append(params, "%"+EscapeLikePattern(term)+"%")
		}
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return "(" + strings.Join(conditions, " OR ") + ")", params
}
