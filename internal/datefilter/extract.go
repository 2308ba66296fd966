// Package datefilter extracts the date embedded in report filenames and decides
// whether it falls inside the operator's range.
package datefilter

import (
	"strings"
	"time"

	apperrors "pbimirror/internal/errors"
)

const (
	// Separator splits a report filename into segments.
	Separator = "_"
	// DateSegment is the zero-based index of the segment carrying the date.
	DateSegment = 4
	// TokenLength is the number of characters of the date segment that are parsed.
	TokenLength = 6
	// TokenLayout is yyMMdd.
	TokenLayout = "060102"
)

// ExtractDate returns the calendar date encoded in filename, e.g.
// "SBL_P5_X_Y_240306_Ver.1.0.2.xlsx" yields 2024-03-06 (UTC midnight).
//
// A filename with fewer than five segments fails with ErrMalformedFilename; a
// token that is not a valid yyMMdd date fails with ErrInvalidDateToken.
func ExtractDate(filename string) (time.Time, error) {
	segments := strings.Split(filename, Separator)
	if len(segments) <= DateSegment {
		return time.Time{}, apperrors.NewMalformedFilenameError(filename).
			WithContext("segments", len(segments))
	}

	token := firstRunes(segments[DateSegment], TokenLength)
	date, err := time.Parse(TokenLayout, token)
	if err != nil {
		return time.Time{}, apperrors.NewInvalidDateTokenError(filename, token, err)
	}
	return date, nil
}

// firstRunes returns at most n leading characters of s.
func firstRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
