package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration covers missing credentials or an unusable category file.
	// Always fatal before any image is touched.
	ErrConfiguration = errors.New("configuration error")
	// ErrDiscovery covers a missing or unreadable input folder. Fatal.
	ErrDiscovery = errors.New("discovery error")
	// ErrClassification covers per-image analysis failures (network, parsing).
	// The batch skips the image and continues.
	ErrClassification = errors.New("classification error")
	// ErrFormat covers a ledger file that exists but is malformed. Fatal for
	// that ledger; distinct from a ledger that does not exist yet.
	ErrFormat = errors.New("format error")
	// ErrIO covers locked or unwritable files (ledger open in a spreadsheet,
	// rename refused). Retried a bounded number of times, then surfaced.
	ErrIO = errors.New("io error")
	// ErrNotFound covers registry lookups and review operations on unknown ids.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether err should halt the whole run rather than be absorbed
// as a per-image failure.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrDiscovery) ||
		errors.Is(err, ErrFormat)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}
