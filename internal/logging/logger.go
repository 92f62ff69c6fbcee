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

// Package logging constructs the service logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ServiceName is attached to every log entry.
const ServiceName = "api-curl-link"

// Logger represents a logger instance
type Logger = *logrus.Entry

// Fields represents structured logging fields
type Fields = logrus.Fields

// NewLogger creates a JSON logger at the given level writing to out.
func NewLogger(level logrus.Level, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)
	logger.SetOutput(out)
	return logger
}

// NewLoggerWithService creates a logger whose entries carry the service field.
func NewLoggerWithService(level logrus.Level, out io.Writer) Logger {
	return NewLogger(level, out).WithField("service", ServiceName)
}

// Open creates the service logger. When file is not empty, output is
// appended to it instead of stderr; the returned closer releases it.
func Open(level logrus.Level, file string) (Logger, io.Closer, error) {
	if file == "" {
		return NewLoggerWithService(level, os.Stderr), nopCloser{}, nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, err
	}
	return NewLoggerWithService(level, f), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
