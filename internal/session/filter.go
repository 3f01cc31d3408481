package session

import (
	"errors"
	"fmt"
	"strings"
)

// Topic filter wildcards.
const (
	// MultiLevelWildcard matches the parent level and every level below it.
	// It must be the last character of a filter and occupy a whole level.
	MultiLevelWildcard = "#"

	// SingleLevelWildcard matches exactly one level and must occupy a whole level.
	SingleLevelWildcard = "+"

	// maxFilterLength is the largest UTF-8 string MQTT can encode.
	maxFilterLength = 65535
)

// ErrInvalidFilter is returned for topic filters that break the wildcard rules.
var ErrInvalidFilter = errors.New("session: invalid topic filter")

// ValidateFilter checks a subscription topic filter.
//
//	"#"             valid, every topic
//	"sensors/+/temp" valid
//	"sensors/#"     valid
//	"sensors/#/x"   invalid, # not last
//	"sensors+"      invalid, + not a whole level
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFilter)
	}
	if len(filter) > maxFilterLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidFilter, maxFilterLength)
	}
	if strings.ContainsRune(filter, 0) {
		return fmt.Errorf("%w: contains NUL", ErrInvalidFilter)
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, MultiLevelWildcard) {
			if level != MultiLevelWildcard || i != len(levels)-1 {
				return fmt.Errorf("%w: %q must be the whole last level", ErrInvalidFilter, MultiLevelWildcard)
			}
		}
		if strings.Contains(level, SingleLevelWildcard) && level != SingleLevelWildcard {
			return fmt.Errorf("%w: %q must be a whole level", ErrInvalidFilter, SingleLevelWildcard)
		}
	}
	return nil
}
