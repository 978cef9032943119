package probe

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// CodeUnknown labels errors that match no known code or keyword. Unknown
// errors are treated as non-fatal.
const CodeUnknown = "UNKNOWN"

var embeddedCode = regexp.MustCompile(`\b(401|403|404|429|500)\b`)

// fatalKeywords strongly indicate permanent unreachability; a probe failing
// with one of these is never retried.
var fatalKeywords = []string{"permanently", "deleted", "terminated"}

// ProbeError wraps probe failures with the normalized taxonomy the
// classifier and the retry policy consume.
type ProbeError struct {
	Stage      string
	Code       string
	Message    string
	Underlying error
	Fatal      bool
}

func (e *ProbeError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("probe %s [%s]: %s: %v", e.Stage, e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("probe %s [%s]: %s", e.Stage, e.Code, e.Message)
}

func (e *ProbeError) Unwrap() error {
	return e.Underlying
}

// Classify normalizes an arbitrary error from the remote connection into a
// ProbeError. 404-class codes and permanence keywords are fatal; other known
// codes (401/403/429/500) are non-fatal and eligible for retry; everything
// else is labeled UNKNOWN and treated as non-fatal.
func Classify(stage string, err error) *ProbeError {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe
	}

	message := err.Error()
	lower := strings.ToLower(message)

	code := embeddedCode.FindString(message)
	if code == "" {
		code = CodeUnknown
	}

	fatal := code == "404"
	for _, kw := range fatalKeywords {
		if strings.Contains(lower, kw) {
			fatal = true
			break
		}
	}

	return &ProbeError{
		Stage:      stage,
		Code:       code,
		Message:    message,
		Underlying: err,
		Fatal:      fatal,
	}
}

// IsFatal reports whether the error indicates permanent unreachability and
// must not be retried.
func IsFatal(err error) bool {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Fatal
	}
	return false
}
