package app

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"todo-cli/model"
)

var (
	// compactOffsetRe matches +3d, 2w, 1m, 1y.
	compactOffsetRe = regexp.MustCompile(`^\+?(\d+)([dwmy])$`)
	dateShapeRe     = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`)
)

var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDue turns user input into a due date. It accepts YYYY-MM-DD, an
// offset from today such as +3d or 2w, or English phrases like "tomorrow"
// and "next friday". "none" and the empty string clear the date.
func ParseDue(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none":
		return "", nil
	}
	if model.ValidDate(s) {
		return s, nil
	}
	if dateShapeRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q is not a calendar date", ErrInvalidDue, s)
	}

	if m := compactOffsetRe.FindStringSubmatch(strings.ToLower(s)); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidDue, s)
		}
		var t time.Time
		switch m[2] {
		case "d":
			t = now.AddDate(0, 0, n)
		case "w":
			t = now.AddDate(0, 0, 7*n)
		case "m":
			t = now.AddDate(0, n, 0)
		case "y":
			t = now.AddDate(n, 0, 0)
		}
		return t.Format(model.DateLayout), nil
	}

	r, err := dateParser.Parse(s, now)
	if err != nil || r == nil {
		return "", fmt.Errorf("%w: %q (expected YYYY-MM-DD, +3d or a phrase like \"tomorrow\")", ErrInvalidDue, s)
	}
	return r.Time.Format(model.DateLayout), nil
}

// ParsePriority accepts low, med (or medium) and high. "none" and the empty
// string mean unset.
func ParsePriority(s string) (model.Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return model.PriorityUnset, nil
	case "low":
		return model.PriorityLow, nil
	case "med", "medium":
		return model.PriorityMed, nil
	case "high":
		return model.PriorityHigh, nil
	default:
		return "", fmt.Errorf("%w: %q (use low, med or high)", ErrInvalidPriority, s)
	}
}
