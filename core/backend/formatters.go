package backend

import (
	"strings"
)

// FormatMaskEmail is the name of the built-in formatter which masks the local part of
// an email address
const FormatMaskEmail = "mask-email"

var builtinFormatters = map[string]Formatter{
	FormatMaskEmail: maskEmail,
}

// maskEmail keeps the first four characters of the local part and replaces the rest with ****
func maskEmail(value interface{}) interface{} {
	if value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return value
	}
	at := strings.Index(s, "@")
	if at <= 0 {
		return s
	}
	local := []rune(s[:at])
	if len(local) > 4 {
		local = local[:4]
	}
	return string(local) + "****" + s[at:]
}
