package core

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var nonDigitRegex = regexp.MustCompile(`\D`)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NormalizePhone formats a phone number to E.164 (`+<digits>`).
// Channel prefixes like "whatsapp:" are dropped. Numbers without an international prefix
// ("+" or "00") get their leading zeros replaced by `defaultCC`.
// Returns "" when no digits are left.
func NormalizePhone(phone, defaultCC string) string {
	phone = strings.TrimSpace(phone)
	if i := strings.Index(phone, ":"); i >= 0 {
		phone = phone[i+1:]
	}
	intl := strings.HasPrefix(phone, "+") || strings.HasPrefix(phone, "00")

	digits := nonDigitRegex.ReplaceAllString(phone, "")
	if intl {
		digits = strings.TrimPrefix(digits, "00")
	} else if digits != "" {
		digits = nonDigitRegex.ReplaceAllString(defaultCC, "") + strings.TrimLeft(digits, "0")
	}
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run during tests... this breaks our code...
// see: https://stackoverflow.com/questions/23847003/golang-tests-and-working-directory
// falls back to the current working directory when no go.mod is found (e.g. deployed binaries).
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
