package validate

import (
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"
)

// LengthBetween returns true if n is within [min,max].
func LengthBetween(s string, min, max int) bool {
	n := len(s)
	return n >= min && n <= max
}

// IsAlphabet returns true if all characters in s are in allowed set.
func IsAlphabet(s, allowed string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(allowed, rune(s[i])) {
			return false
		}
	}
	return true
}

// IsBase64URLNoPad reports whether s is valid base64url (no padding) for JWT segments.
func IsBase64URLNoPad(s string) bool {
	if s == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}

// IsBase64Std reports whether s is valid standard base64 (padding optional).
func IsBase64Std(s string) bool {
	if s == "" {
		return false
	}
	if _, err := base64.StdEncoding.DecodeString(s); err == nil {
		return true
	}
	_, err := base64.RawStdEncoding.DecodeString(s)
	return err == nil
}

// IsHex returns true if s is valid hex.
func IsHex(s string) bool {
	if s == "" || len(s)%2 == 1 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

const base62 = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// LooksLikeGitHubToken accepts ghp_, gho_, ghu_, ghs_, ghr_ followed by 36 base62 chars.
func LooksLikeGitHubToken(s string) bool {
	if len(s) != 40 {
		return false
	}
	switch s[:4] {
	case "ghp_", "gho_", "ghu_", "ghs_", "ghr_":
	default:
		return false
	}
	return IsAlphabet(s[4:], base62)
}

// LooksLikeOpenAIKey checks sk- prefix and reasonable alphabet/length.
func LooksLikeOpenAIKey(s string) bool {
	if !strings.HasPrefix(s, "sk-") {
		return false
	}
	tail := strings.TrimPrefix(s[3:], "proj-")
	if !LengthBetween(tail, 32, 164) {
		return false
	}
	return IsAlphabet(tail, base62+"_-")
}

// LooksLikeAWSAccessKey checks for AKIA/ASIA + 16 uppercase alnum.
func LooksLikeAWSAccessKey(s string) bool {
	if !(strings.HasPrefix(s, "AKIA") || strings.HasPrefix(s, "ASIA")) {
		return false
	}
	if len(s) != 20 {
		return false
	}
	const upperAlnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	return IsAlphabet(s[4:], upperAlnum)
}

// LooksLikeAWSSecretKey checks base64-like alphabet and exact length 40.
func LooksLikeAWSSecretKey(s string) bool {
	if len(s) != 40 {
		return false
	}
	return IsAlphabet(s, base62+"+/=")
}

// IsJWTStructure verifies 3 segments base64url-decodable for header and payload.
func IsJWTStructure(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	return IsBase64URLNoPad(parts[0]) && IsBase64URLNoPad(parts[1])
}

var validators = map[string]func(string) bool{
	"aws-access-key": LooksLikeAWSAccessKey,
	"aws-secret-key": LooksLikeAWSSecretKey,
	"github-token":   LooksLikeGitHubToken,
	"openai-key":     LooksLikeOpenAIKey,
	"jwt":            IsJWTStructure,
	"hex":            IsHex,
	"base64":         IsBase64Std,
}

// Names lists the validators a rule may reference.
func Names() []string {
	out := make([]string, 0, len(validators))
	for k := range validators {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Known reports whether name is a registered validator.
func Known(name string) bool {
	_, ok := validators[name]
	return ok
}

// Check runs the named validator. Unknown names pass.
func Check(name, s string) bool {
	fn, ok := validators[name]
	if !ok {
		return true
	}
	return fn(s)
}

// IsEnvReference reports values like $VAR or ${VAR}.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "$")
}

// IsVaultReference reports vault:// references.
func IsVaultReference(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "vault://")
}

// LooksLikePlaintextSecret is the heuristic behind the plaintext value
// policy: at least 12 characters, a letter plus a digit or token
// punctuation, and not a reference to somewhere else.
func LooksLikePlaintextSecret(v string) bool {
	s := strings.TrimSpace(v)
	if s == "" || IsEnvReference(s) || IsVaultReference(s) {
		return false
	}
	if len(s) < 12 {
		return false
	}
	hasAlpha, hasOther := false, false
	for _, c := range s {
		switch {
		case unicode.IsLetter(c):
			hasAlpha = true
		case unicode.IsDigit(c), strings.ContainsRune("_-+/=.", c):
			hasOther = true
		}
	}
	return hasAlpha && hasOther
}
