// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

const maxSellerUIDLen = 128

// IsValidSellerUID проверяет идентификатор продавца: непустой, не длиннее 128 байт,
// без '/', пробельных и управляющих символов, не "." и не "..".
func IsValidSellerUID(uid string) bool {
	if uid == "" || len(uid) > maxSellerUIDLen {
		return false
	}
	if uid == "." || uid == ".." {
		return false
	}

	for _, ch := range uid {
		if ch == '/' || ch == unicode.ReplacementChar || unicode.IsSpace(ch) || unicode.IsControl(ch) {
			return false
		}
	}

	return true
}
