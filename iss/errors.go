// Copyright 2025 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package iss

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fetch failure. Exactly one kind is reported to the
// caller per failed fetch.
type ErrorKind int

const (
	// KindNone is the zero value, returned by KindOf for errors that did not
	// originate in this package.
	KindNone ErrorKind = iota

	// KindNetwork is a transient failure: a connection or timeout error, a 5xx
	// status, or a body that could not be decoded as JSON. Retried.
	KindNetwork

	// KindAuth means credentials are missing or rejected (401 or 403). Not
	// retried.
	KindAuth

	// KindBadRequest is any other client-side rejection, such as a malformed
	// request or an unknown resource (404). Not retried.
	KindBadRequest

	// KindParse means the response decoded as JSON but its shape does not
	// match the endpoint's declared schema. Not retried.
	KindParse

	// KindExhausted wraps the last KindNetwork error after the retry budget
	// for one page is spent.
	KindExhausted
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindBadRequest:
		return "bad request"
	case KindParse:
		return "parse"
	case KindExhausted:
		return "retries exhausted"
	}
	return "unknown"
}

// Error is a failure of a single fetch, reporting the page offset at which it
// occurred. It supports errors.Is / errors.As through wrapping.
type Error struct {
	Kind   ErrorKind
	Offset int // row offset of the failing page request
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failure at offset %d: %v", e.Kind, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s failure at offset %d", e.Kind, e.Offset)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the kind of the outermost *Error in err's chain, or
// KindNone if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// pageError creates an *Error for the page at the given offset.
func pageError(kind ErrorKind, offset int, err error) *Error {
	return &Error{Kind: kind, Offset: offset, Err: err}
}

// retryable reports whether a single page attempt may be repeated.
func retryable(err error) bool {
	return KindOf(err) == KindNetwork
}
