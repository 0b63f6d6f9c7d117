package auth

// TokenVerifierFunc adapts a function into a TokenVerifier.
type TokenVerifierFunc func(signed string) (*TokenClaims, error)

// Verify satisfies the TokenVerifier interface.
func (f TokenVerifierFunc) Verify(signed string) (*TokenClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(signed)
}

// MultiTokenVerifier tries verifiers in order until one succeeds. It is
// meant for signing key rotation: tokens minted with a retired key keep
// verifying until they expire. A bad signature means "try next"; any other
// failure is final because a different key would not change it.
type MultiTokenVerifier struct {
	verifiers []TokenVerifier
}

var _ TokenVerifier = (*MultiTokenVerifier)(nil)

// NewMultiTokenVerifier filters nil verifiers and returns a composite verifier.
func NewMultiTokenVerifier(verifiers ...TokenVerifier) *MultiTokenVerifier {
	filtered := make([]TokenVerifier, 0, len(verifiers))
	for _, v := range verifiers {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiTokenVerifier{verifiers: filtered}
}

// Verify satisfies the TokenVerifier interface.
func (m *MultiTokenVerifier) Verify(signed string) (*TokenClaims, error) {
	var lastErr error
	for _, v := range m.verifiers {
		claims, err := v.Verify(signed)
		if err == nil {
			return claims, nil
		}
		if KindOf(err) == KindBadSignature {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenMalformed
}
