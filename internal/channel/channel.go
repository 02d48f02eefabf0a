// Package channel derives realtime channel names from principal identifiers
// and enforces that a principal may only subscribe to its own private channel.
package channel

import (
	"crypto/hmac"
	"fmt"
	"strings"
)

// PublicChannel is the well-known broadcast channel every authenticated
// principal may subscribe to.
const PublicChannel = "public-chat"

const privatePrefix = "private-chat-"

const safeBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// PrivateChannelFor maps a principal identifier to its private channel name.
//
// The mapping is deterministic and injective: bytes outside [A-Za-z0-9_-] are
// escaped as "~XX" (uppercase hex), and '~' itself is always escaped, so no
// two distinct identifiers can produce the same channel name. Identifiers such
// as Auth0 subjects ("auth0|abc...") therefore encode without the collision
// risk a plain character substitution would carry.
func PrivateChannelFor(userID string) string {
	var b strings.Builder
	b.Grow(len(privatePrefix) + len(userID))
	b.WriteString(privatePrefix)
	for i := 0; i < len(userID); i++ {
		c := userID[i]
		if strings.IndexByte(safeBytes, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "~%02X", c)
	}
	return b.String()
}

// AuthorizeSubscription reports whether the requesting principal may subscribe
// to the requested channel: its own private channel or the public broadcast
// channel, nothing else.
func AuthorizeSubscription(requestingUserID, requestedChannel string) bool {
	if equalConstTime(requestedChannel, PublicChannel) {
		return true
	}
	return equalConstTime(requestedChannel, PrivateChannelFor(requestingUserID))
}

func equalConstTime(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
