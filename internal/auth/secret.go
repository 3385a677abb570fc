package auth

import "crypto/subtle"

// SecretHeader is the request header trusted frontends present the shared
// secret on.
const SecretHeader = "X-Relay-Secret"

// VerifySecret compares a presented secret against the configured one in
// constant time. Lengths are checked first: ConstantTimeCompare returns 0
// for unequal lengths but only after touching the shorter input, so the
// explicit gate keeps the comparison length-independent.
func VerifySecret(configured, presented string) bool {
	if len(presented) != len(configured) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}
