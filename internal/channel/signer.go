package channel

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Signer issues subscription auth payloads for private channels. The payload
// format ("<appKey>:<hex hmac>" over "<socketID>:<channelName>") matches what
// Pusher-protocol clients expect from a channel auth endpoint.
type Signer struct {
	appKey string
	secret []byte
}

// AuthResponse is the signed payload returned to a client that passed the
// subscription check.
type AuthResponse struct {
	Auth string `json:"auth"`
}

var ErrMissingSocketID = errors.New("channel: missing socket id")

func NewSigner(appKey, secret string) *Signer {
	return &Signer{appKey: appKey, secret: []byte(secret)}
}

// Authorize signs the (socketID, channelName) pair. Callers must run
// AuthorizeSubscription first; the signer does not re-check ownership.
func (s *Signer) Authorize(socketID, channelName string) (AuthResponse, error) {
	if socketID == "" {
		return AuthResponse{}, ErrMissingSocketID
	}
	sig := hmacSHA256(s.secret, []byte(socketID+":"+channelName))
	return AuthResponse{
		Auth: fmt.Sprintf("%s:%s", s.appKey, hex.EncodeToString(sig)),
	}, nil
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
