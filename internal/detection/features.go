// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package detection

import (
	"regexp"
	"strconv"
	"strings"
)

var addressPattern = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+`)

// Extract derives a feature vector from line.
//
// The line must contain a dotted-quad address and a second whitespace
// separated token shaped HH:MM:SS. The vector is [last octet, hour].
// Any line that does not fit returns false; Extract never panics.
func Extract(line string) (Features, bool) {
	addr := addressPattern.FindString(line)
	if addr == "" {
		return Features{}, false
	}

	octet, err := strconv.Atoi(addr[strings.LastIndexByte(addr, '.')+1:])
	if err != nil || octet < 0 || octet > 255 {
		return Features{}, false
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Features{}, false
	}
	hour, ok := parseHour(fields[1])
	if !ok {
		return Features{}, false
	}

	return Features{
		Vector: FeatureVector{float64(octet), float64(hour)},
		Actor:  addr,
	}, true
}

// parseHour accepts HH:MM:SS with an optional fractional or zone suffix
// after the seconds.
func parseHour(token string) (int, bool) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) != 3 {
		return 0, false
	}
	if len(parts[0]) == 0 || len(parts[0]) > 2 || !isDigits(parts[0]) {
		return 0, false
	}
	if len(parts[1]) != 2 || !isDigits(parts[1]) {
		return 0, false
	}
	if len(parts[2]) < 2 || !isDigits(parts[2][:2]) {
		return 0, false
	}

	hour, _ := strconv.Atoi(parts[0])
	minute, _ := strconv.Atoi(parts[1])
	second, _ := strconv.Atoi(parts[2][:2])
	if hour > 23 || minute > 59 || second > 60 {
		return 0, false
	}
	return hour, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
