package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}

var errMissingParam = errors.New("missing param")

type invalidInputError struct {
	message string
}

func (e invalidInputError) Error() string {
	return e.message
}

func errInvalid(message string) error {
	return invalidInputError{message: message}
}

func isInvalidInput(err error) bool {
	var inv invalidInputError
	return errors.As(err, &inv)
}

// parseDateParam accepts ISO dates (2006-01-02). Empty input is allowed and
// returns the zero time, so both bounds of a range stay optional.
func parseDateParam(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, errInvalid("invalid date, expected YYYY-MM-DD")
	}
	return t, nil
}
