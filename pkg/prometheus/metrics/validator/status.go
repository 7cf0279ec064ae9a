package validator

import (
	"errors"
	"strconv"
)

var InvalidStatusCodeError = errors.New("status code must be a number between 100 and 599")

func ValidateStrStatusCode(status string) error {
	code, err := strconv.Atoi(status)
	if err != nil || code < 100 || code > 599 {
		return InvalidStatusCodeError
	}
	return nil
}
