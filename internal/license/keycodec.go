package license

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	apperrors "vyaparcli/internal/errors"
)

// License key shape: four groups of four alphanumerics, case-insensitive on
// input, canonicalized to upper.
var keyPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// planCodes maps the leading 4-character payload to a plan
var planCodes = map[string]PlanType{
	"TRIA": PlanTrial,
	"BASI": PlanBasic,
	"PROF": PlanPro,
	"ENTR": PlanEnterprise,
}

// codeForPlan is the reverse of planCodes, used when minting keys
var codeForPlan = map[PlanType]string{
	PlanTrial:      "TRIA",
	PlanBasic:      "BASI",
	PlanPro:        "PROF",
	PlanEnterprise: "ENTR",
}

// DecodedKey carries the plan and optional overrides extracted from a key.
// Zero-valued override fields mean "use the plan defaults".
type DecodedKey struct {
	Plan     PlanType
	MaxUsers int
	Modules  []string
	Expiry   *time.Time
}

// NormalizeKey canonicalizes a key to the uppercase dashed form
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// ValidateKeyFormat checks the XXXX-XXXX-XXXX-XXXX shape
func ValidateKeyFormat(key string) error {
	if !keyPattern.MatchString(NormalizeKey(key)) {
		return apperrors.ErrInvalidLicenseFormat
	}
	return nil
}

// Decode extracts the plan from a license key. The first four characters of
// the 16-character payload select the plan; an unrecognized code falls back
// to BASIC rather than failing. That leniency is deliberate and load-bearing
// for keys minted by older vendor tooling; see DESIGN.md for the open
// question of rejecting unknown codes instead.
//
// Note the scheme carries no signature: anyone who learns it can mint
// valid-format keys. This is a known weakness of the format, not something
// the decoder can compensate for.
func Decode(key string) (*DecodedKey, error) {
	normalized := NormalizeKey(key)
	if !keyPattern.MatchString(normalized) {
		return nil, apperrors.ErrInvalidLicenseFormat
	}

	payload := strings.ReplaceAll(normalized, "-", "")
	plan, ok := planCodes[payload[:4]]
	if !ok {
		plan = PlanBasic
	}

	return &DecodedKey{Plan: plan}, nil
}

// Encode mints a new license key for the given plan: the plan's 4-character
// code followed by 12 random alphanumerics, formatted with dashes. This path
// issues keys; it does not validate them.
func Encode(plan PlanType) (string, error) {
	code, ok := codeForPlan[plan]
	if !ok {
		code = codeForPlan[PlanBasic]
	}

	random, err := randomAlphanumeric(12)
	if err != nil {
		return "", fmt.Errorf("failed to generate key payload: %w", err)
	}

	payload := code + random
	return fmt.Sprintf("%s-%s-%s-%s", payload[:4], payload[4:8], payload[8:12], payload[12:16]), nil
}

// randomAlphanumeric returns n random characters from the key alphabet
func randomAlphanumeric(n int) (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = keyAlphabet[idx.Int64()]
	}
	return string(b), nil
}
