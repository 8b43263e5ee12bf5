package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// AuthScheme is the authorization scheme understood by Mail/HTTPS agents.
const AuthScheme = "SOTN"

const authNonceLength = 30

// ErrMalformedAuthorization indicates an Authorization header that cannot be parsed.
var ErrMalformedAuthorization = errors.New("malformed authorization")

// Authorization builds the value of the Authorization header for a request
// to agent. The signature covers agent followed by a fresh random nonce.
func Authorization(agent string, keys KeyPair) (string, error) {
	value, err := RandomString(authNonceLength)
	if err != nil {
		return "", err
	}

	signature, err := Sign(keys.Private, []byte(agent+value))
	if err != nil {
		return "", newError("authorization", err)
	}

	return AuthScheme + " " + strings.Join([]string{
		"value=" + value,
		"host=" + agent,
		"algorithm=" + SigningAlgorithm,
		"signature=" + signature,
		"key=" + keys.Public.String(),
	}, "; "), nil
}

// VerifyAuthorization checks an Authorization header produced by
// Authorization for agent and returns the signing key that produced it.
func VerifyAuthorization(header, agent string) (Key, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(header), AuthScheme+" ")
	if !ok {
		return Key{}, newError("verify authorization", ErrMalformedAuthorization)
	}

	attrs := make(map[string]string)
	for _, part := range strings.Split(rest, ";") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return Key{}, newError("verify authorization", ErrMalformedAuthorization)
		}
		attrs[strings.ToLower(k)] = v
	}

	if attrs["algorithm"] != SigningAlgorithm {
		return Key{}, newError("verify authorization", fmt.Errorf("%w: algorithm %q", ErrMalformedAuthorization, attrs["algorithm"]))
	}
	if attrs["host"] != agent {
		return Key{}, newError("verify authorization", fmt.Errorf("%w: host %q", ErrVerify, attrs["host"]))
	}

	raw, err := base64.StdEncoding.DecodeString(attrs["key"])
	if err != nil {
		return Key{}, newError("verify authorization", fmt.Errorf("%w: %w", ErrMalformedAuthorization, err))
	}
	key := Key{Data: raw, Algorithm: SigningAlgorithm}

	if err := Verify(key, []byte(attrs["host"]+attrs["value"]), attrs["signature"]); err != nil {
		return Key{}, err
	}
	return key, nil
}
