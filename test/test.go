// Package test contains utility functions used throughout the project in tests
package test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// LogUnexpected fails the test and prints the values in an
// `expected: X got: Y` format
func LogUnexpected(t *testing.T, expected, got interface{}) {
	t.Helper()
	t.Fatalf("\nexpected: %#v\ngot:      %#v", expected, got)
}

// AssertEquals asserts two values are equal and fails the test with a diff,
// if not
func AssertEquals(t *testing.T, res, std interface{}) {
	t.Helper()
	if !assert.Equal(t, std, res) {
		t.FailNow()
	}
}

// AssertDeepEquals asserts two values are deeply equal or fails the test, if
// not
func AssertDeepEquals(t *testing.T, res, std interface{}) {
	t.Helper()
	if !assert.ObjectsAreEqual(std, res) {
		LogUnexpected(t, std, res)
	}
}

// UnexpectedError fails the test with an unexpected error message
func UnexpectedError(t *testing.T, err error) {
	t.Helper()
	t.Fatalf("unexpected error: %#v", err)
}

// AssertError asserts err matches target according to errors.Is
func AssertError(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		LogUnexpected(t, target, err)
	}
}
