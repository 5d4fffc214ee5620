package portal

import (
	"errors"
	"strings"
)

// Driver-level errors.
var (
	// ErrTimeout wraps any navigation or wait operation that exceeded its
	// time box. Callers on authenticated pages reinterpret it as session
	// expiry; callers elsewhere treat it as an automation fault.
	ErrTimeout = errors.New("portal operation timed out")

	// ErrDocumentStoreUnavailable is the portal's named failure signature
	// for its document backend being down. It indicates a transient fault
	// on the source system, not an automation bug.
	ErrDocumentStoreUnavailable = errors.New("portal document store unavailable")
)

// IsTimeout reports whether err stems from a timed-out driver operation.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Fragments of the portal's document-backend error banner. The wording has
// varied across portal releases; matching stays deliberately loose.
var docStoreSignatures = []string{
	"GED INDISPON",
	"REPOSITORIO DE DOCUMENTOS INDISPON",
	"DOCUMENTO TEMPORARIAMENTE INDISPON",
}

// MatchesDocumentStoreError reports whether on-page error text carries the
// document-store-unavailable signature.
func MatchesDocumentStoreError(text string) bool {
	upper := strings.ToUpper(text)
	for _, sig := range docStoreSignatures {
		if strings.Contains(upper, sig) {
			return true
		}
	}
	return false
}
