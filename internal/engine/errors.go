package engine

import (
	"fmt"
	"time"
)

// ConfigError reports an invalid engine configuration. Fatal: the
// engine refuses to start and no bar is ever processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("engine config: %s %s", e.Field, e.Reason)
}

// OutOfOrderError reports a bar whose timestamp is not strictly after
// the previously ingested bar. The offending bar is rejected and engine
// state is left untouched; the caller decides whether to retry.
type OutOfOrderError struct {
	Symbol string
	Got    time.Time
	Last   time.Time
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("out-of-order bar for %s: got ts=%s, last ts=%s",
		e.Symbol, e.Got.UTC().Format(time.RFC3339), e.Last.UTC().Format(time.RFC3339))
}
