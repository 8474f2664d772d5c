package validation

import (
	"encoding/base64"
	"fmt"

	validation "github.com/jellydator/validation"
)

// Base64Payload accepts standard base64 text that decodes to at most
// maxBytes. The size is checked before decoding. Empty strings pass so
// Required decides whether a value is mandatory.
func Base64Payload(maxBytes int) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, ok := value.(string)
		if !ok {
			return validation.NewError("validation_base64_type", "must be a string")
		}
		if s == "" {
			return nil
		}
		if base64.StdEncoding.DecodedLen(len(s)) > maxBytes+2 {
			return validation.NewError("validation_base64_size",
				fmt.Sprintf("must decode to at most %d bytes", maxBytes))
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return validation.NewError("validation_base64", "must be valid base64-encoded data")
		}
		if len(decoded) > maxBytes {
			return validation.NewError("validation_base64_size",
				fmt.Sprintf("must decode to at most %d bytes", maxBytes))
		}
		return nil
	})
}
