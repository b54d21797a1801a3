// Copyright Keboola s.r.o. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

package logger

import (
	"os"
	"strings"
)

const (
	defaultLogFilePath = "/var/log/nat-instance/nat-init.log"
	defaultLogLevel    = "Debug"
	envLogLevel        = "NAT_INSTANCE_LOGLEVEL"
	envLogFilePath     = "NAT_INSTANCE_LOG_FILE"
	// envAdditionalLogFile holds a comma separated list of extra sinks the
	// logger tees to, e.g. "stdout" to mirror the log file on the console.
	envAdditionalLogFile = "NAT_INSTANCE_ADDITIONAL_LOG_FILES"
)

// Configuration stores the config for the logger
type Configuration struct {
	LogLevel               string
	LogLocation            string
	AdditionalLogLocations []string
}

// LoadLogConfig returns the log configuration
func LoadLogConfig() *Configuration {
	return &Configuration{
		LogLevel:               GetLogLevel(),
		LogLocation:            GetLogLocation(),
		AdditionalLogLocations: GetAdditionalLogLocations(),
	}
}

// GetLogLocation returns the log file path
func GetLogLocation() string {
	logFilePath := os.Getenv(envLogFilePath)
	if logFilePath == "" {
		logFilePath = defaultLogFilePath
	}
	return logFilePath
}

// GetLogLevel returns the log level
func GetLogLevel() string {
	logLevel := os.Getenv(envLogLevel)
	switch logLevel {
	case "":
		logLevel = defaultLogLevel
		return logLevel
	default:
		return logLevel
	}
}

// GetAdditionalLogLocations returns the extra log sinks, nil when none are
// configured.
func GetAdditionalLogLocations() []string {
	return ParseAdditionalLogLocations(os.Getenv(envAdditionalLogFile))
}

// ParseAdditionalLogLocations splits a comma separated sink list, dropping
// empty entries.
func ParseAdditionalLogLocations(locations string) []string {
	var parsed []string
	for _, loc := range strings.Split(locations, ",") {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		parsed = append(parsed, loc)
	}
	return parsed
}
