// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"errors"
	"fmt"
	"net/http"

	curllink "github.com/daishir0/api-curl-link"
)

// ValidationError rejects a request before any cache or fetch activity.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation failures of the endpoint
var (
	ErrMethodNotAllowed = &ValidationError{Status: http.StatusMethodNotAllowed, Message: "Method Not Allowed"}
	ErrInvalidAPIKey    = &ValidationError{Status: http.StatusForbidden, Message: "Invalid API Key"}
	ErrInvalidURL       = &ValidationError{Status: http.StatusBadRequest, Message: "Valid URL is required"}
)

// StorageError is returned when an artifact could not be written. The index
// is left untouched in that case.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Describe maps a Links error to the status code and message clients see.
// known is false for errors outside the pipeline's own types.
func Describe(err error) (status int, message string, known bool) {
	var ve *ValidationError
	var fe *curllink.FetchError
	var se *StorageError
	switch {
	case errors.As(err, &ve):
		return ve.Status, ve.Message, true
	case errors.As(err, &fe):
		detail := fe.Err.Error()
		if fe.Timeout {
			detail = "timeout: " + detail
		}
		return http.StatusInternalServerError, "Failed to fetch URL: " + detail, true
	case errors.As(err, &se):
		return http.StatusInternalServerError, "Failed to save cache", true
	}
	return http.StatusInternalServerError, "Internal Server Error", false
}
