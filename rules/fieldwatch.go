//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// NoPrintInInternal keeps terminal output in cmd/. Internal packages log
// through their module logger so output reaches the configured sinks.
func NoPrintInInternal(m dsl.Matcher) {
	m.Match(
		`fmt.Println($*_)`,
		`fmt.Printf($*_)`,
		`fmt.Print($*_)`,
		`log.Println($*_)`,
		`log.Printf($*_)`,
		`log.Print($*_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report(`use the package logger (GetLogger()) instead of $$ in internal packages`)
}

// ErrorAsStringField detects errors logged as plain string fields, which
// bypasses the error field's privacy scrubbing.
func ErrorAsStringField(m dsl.Matcher) {
	m.Match(`logger.String($key, $err.Error())`).
		Where(m["err"].Type.Implements("error")).
		Report(`use logger.Error($err) instead of logger.String($key, $err.Error())`).
		Suggest(`logger.Error($err)`)
}

// EvaluatorWallClock keeps breach evaluation a pure function of the reading.
// Alert timestamps come from the reading, not from the evaluator.
func EvaluatorWallClock(m dsl.Matcher) {
	m.Match(`time.Now()`).
		Where(m.File().PkgPath.Matches(`/internal/evaluator$`)).
		Report(`evaluator must not read the wall clock; use the reading timestamp`)
}

// FormattedSQL detects SQL built with fmt.Sprintf and handed to gorm.
func FormattedSQL(m dsl.Matcher) {
	m.Import("gorm.io/gorm")

	m.Match(
		`$db.Raw(fmt.Sprintf($*_), $*_)`,
		`$db.Exec(fmt.Sprintf($*_), $*_)`,
		`$db.Where(fmt.Sprintf($*_), $*_)`,
	).
		Where(m["db"].Type.Is("*gorm.DB")).
		Report(`pass values as query arguments instead of formatting them into SQL`)
}

// UnscrubbedSentryCapture keeps error reports going through the errors
// package, which applies the privacy scrubber before sending.
func UnscrubbedSentryCapture(m dsl.Matcher) {
	m.Import("github.com/getsentry/sentry-go")

	m.Match(`sentry.CaptureException($*_)`, `sentry.CaptureMessage($*_)`).
		Where(!m.File().PkgPath.Matches(`/internal/errors$`)).
		Report(`report through internal/errors so the privacy scrubber runs`)
}
