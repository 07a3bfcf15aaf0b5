// pkg/cw_io/input.go

package cw_io

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// MaxInputLength defines the maximum allowed length for user input
const MaxInputLength = 4096

var (
	controlCharRegex = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F-\x9F]`)
	ansiEscapeRegex  = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]|\x9b[0-9;]*[A-Za-z]`)
)

// InputValidationError represents input validation errors
type InputValidationError struct {
	Field  string
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid input for %s: %s", e.Field, e.Reason)
}

// IsInteractive reports whether stdin is attached to a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// PromptInput prompts on the terminal and returns the sanitized answer.
func PromptInput(rc *RuntimeContext, prompt, fieldName string) (string, error) {
	if !IsInteractive() {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	return readPrompt(rc, os.Stdin, os.Stderr, prompt, fieldName)
}

// PromptYesNo asks a yes/no question on the terminal.
func PromptYesNo(rc *RuntimeContext, prompt, fieldName string) (bool, error) {
	input, err := PromptInput(rc, prompt, fieldName)
	if err != nil {
		return false, err
	}
	return parseYesNoInput(input, fieldName)
}

func readPrompt(rc *RuntimeContext, in io.Reader, out io.Writer, prompt, fieldName string) (string, error) {
	log := otelzap.Ctx(rc.Ctx)

	fmt.Fprint(out, prompt)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", fmt.Errorf("no input received")
	}

	input := scanner.Text()
	if err := validateUserInput(input, fieldName); err != nil {
		log.Warn("Invalid user input", zap.String("field", fieldName), zap.Error(err))
		return "", err
	}

	return sanitizeUserInput(input), nil
}

func validateUserInput(input, fieldName string) error {
	if strings.TrimSpace(input) == "" {
		return &InputValidationError{Field: fieldName, Reason: "cannot be empty"}
	}
	if len(input) > MaxInputLength {
		return &InputValidationError{
			Field:  fieldName,
			Reason: fmt.Sprintf("too long (%d chars, max %d)", len(input), MaxInputLength),
		}
	}
	if !utf8.ValidString(input) {
		return &InputValidationError{Field: fieldName, Reason: "contains invalid UTF-8"}
	}
	return nil
}

func sanitizeUserInput(input string) string {
	sanitized := ansiEscapeRegex.ReplaceAllString(input, "")
	sanitized = controlCharRegex.ReplaceAllString(sanitized, "")
	return strings.TrimSpace(sanitized)
}

func parseYesNoInput(input, fieldName string) (bool, error) {
	if err := validateUserInput(input, fieldName); err != nil {
		return false, err
	}

	switch strings.ToLower(sanitizeUserInput(input)) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, &InputValidationError{Field: fieldName, Reason: "must be yes or no"}
	}
}
