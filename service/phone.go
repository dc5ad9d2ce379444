package service

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizePhone trims a signer phone. Numbers given in international form
// (leading "+") that parse as valid are rewritten to E.164; anything else is
// passed through trimmed.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if !strings.HasPrefix(phone, "+") {
		return phone
	}

	num, err := libphonenumber.Parse(phone, "")
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return phone
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}
