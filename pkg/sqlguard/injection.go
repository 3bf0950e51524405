package sqlguard

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a detected SQL injection pattern in a
// user-supplied value.
type InjectionCheckResult struct {
	IsSQLi      bool   // true if an injection pattern was detected
	Fingerprint string // libinjection fingerprint of the pattern
	ParamName   string // name of the offending input
	ParamValue  any
}

// CheckParameterForInjection runs libinjection over a user-supplied value.
// Only string values are checked; numbers and booleans cannot carry
// injection payloads. Returns nil when the value is clean.
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			ParamName:   paramName,
			ParamValue:  value,
		}
	}
	return nil
}

// CheckIdentifier validates a user-supplied schema or table name before it
// is embedded into introspection SQL. Returns an error naming the input if
// an injection pattern is detected.
func CheckIdentifier(name, value string) error {
	if result := CheckParameterForInjection(name, value); result != nil {
		return fmt.Errorf("suspicious %s %q (fingerprint %s)", name, value, result.Fingerprint)
	}
	return nil
}
