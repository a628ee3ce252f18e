package jwt

import (
	"encoding/json"
	"fmt"
	"time"

	"chatline/utilities"

	"github.com/dgrijalva/jwt-go"
	"gopkg.in/square/go-jose.v2"

	"chatline/pkg/consts"
)

type jwtClaims struct {
	Handle string `json:"handle"`
	Kind   string `json:"kind"`
	Uuid   string `json:"uuid"`
	jwt.StandardClaims
}

func signPayload(key *jose.JSONWebKey, payload []byte) (jws string, err error) {
	signingKey := jose.SigningKey{Key: key, Algorithm: jose.RS256}

	signer, err := jose.NewSigner(signingKey, &jose.SignerOptions{})
	if err != nil {
		return "", err
	}

	signature, err := signer.Sign(payload)
	if err != nil {
		return "", err
	}

	return signature.CompactSerialize()
}

func GenerateJWT(handle, kind, uuid string, ttl time.Duration) (string, int, error) {
	log := utilities.NewLogger("GenerateJWT")

	ttlInSecs := ttl.Seconds()
	expiryTime := time.Now().Add(ttl)
	claims := jwtClaims{
		handle,
		kind,
		uuid,
		jwt.StandardClaims{
			Subject:   consts.AppName,
			Audience:  handle,
			ExpiresAt: expiryTime.Unix(),
			Issuer:    consts.AppName,
			IssuedAt:  time.Now().Unix(),
		},
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", 0, err
	}

	signingKey, _, err := getRSAKeyPair()
	if err != nil {
		return "", 0, err
	}

	jwtToken, err := signPayload(signingKey, payload)
	if err != nil {
		return "", 0, err
	}

	log.Debugf("Token generated for %s with expiry %s", handle, expiryTime)

	return jwtToken, int(ttlInSecs), nil
}

// VerifyJWT verifies jwt token and returns claims
func VerifyJWT(handle, jwtToken string) (map[string]string, error) {
	log := utilities.NewLogger("VerifyJWT")

	jws, err := jose.ParseSigned(jwtToken)
	if err != nil {
		log.WithError(err).Errorf("parsing failed, token: %s", jwtToken)
		return nil, err
	}

	_, verifyKey, err := getRSAKeyPair()
	if err != nil {
		log.WithError(err).Error("unable to get rsa key pair")
		return nil, err
	}

	payload, err := jws.Verify(verifyKey)
	if err != nil {
		log.WithError(err).Error("jws verify failed")
		return nil, err
	}

	claims := &jwtClaims{}
	err = json.Unmarshal(payload, claims)
	if err != nil {
		log.WithError(err).Error("unmarshal failed")
		return nil, err
	}

	err = claims.StandardClaims.Valid()
	if err != nil {
		log.WithError(err).Error("standard claims invalid")
		return nil, err
	}

	if yes := claims.StandardClaims.VerifyAudience(handle, true); !yes {
		return nil, fmt.Errorf("invalid audience %s", handle)
	}

	if claims.StandardClaims.Subject != consts.AppName {
		return nil, fmt.Errorf("invalid subject %s", claims.StandardClaims.Subject)
	}

	if yes := claims.StandardClaims.VerifyExpiresAt(time.Now().Unix(), true); !yes {
		return nil, fmt.Errorf("token expired")
	}

	return map[string]string{
		"handle": claims.Handle,
		"uuid":   claims.Uuid,
		"kind":   claims.Kind,
	}, nil
}
