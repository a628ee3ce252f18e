package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"

	"gopkg.in/square/go-jose.v2"
)

var (
	keyOnce sync.Once
	pvtKey  *jose.JSONWebKey
	pubKey  *jose.JSONWebKey
	keyErr  error
)

// getRSAKeyPair returns the process-lifetime signing key pair. Gateway
// sessions do not outlive the process, so the pair is generated at first use
// rather than loaded from disk.
func getRSAKeyPair() (*jose.JSONWebKey, *jose.JSONWebKey, error) {
	keyOnce.Do(func() {
		rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			keyErr = err
			return
		}

		pvtKey = &jose.JSONWebKey{Key: rsaKey, Algorithm: string(jose.RS256), Use: "sig"}
		pubKey = &jose.JSONWebKey{Key: &rsaKey.PublicKey, Algorithm: string(jose.RS256), Use: "sig"}
	})

	return pvtKey, pubKey, keyErr
}
