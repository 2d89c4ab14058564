package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// usageError reports bad command input rather than a queue failure.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// decodePayload turns the add argument into bytes. Exactly one of arg or
// file is used.
func decodePayload(arg string, hasArg, asUTF8 bool, file string) ([]byte, error) {
	switch {
	case file != "" && hasArg:
		return nil, usageErrorf("pass either a payload argument or --file, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, usageErrorf("read payload file: %v", err)
		}
		return data, nil
	case !hasArg:
		return nil, usageErrorf("a payload argument or --file is required")
	case asUTF8:
		return []byte(arg), nil
	}
	data, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		return nil, usageErrorf("invalid base64: %v", err)
	}
	return data, nil
}

// encodePayload renders payload bytes for output: base64 by default, the raw
// text with --utf8.
func encodePayload(payload []byte, asUTF8 bool) (string, error) {
	if !asUTF8 {
		return base64.StdEncoding.EncodeToString(payload), nil
	}
	if !utf8.Valid(payload) {
		return "", usageErrorf("payload is not valid UTF-8")
	}
	return string(payload), nil
}

func parseMessageID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid message id %q", raw)
	}
	return id, nil
}
