package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// HashStrings produces a stable key for a set of ingredient tokens.
func HashStrings(inputs []string) string {
	return HashString(strings.Join(inputs, "\x1f"))
}
