package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionKeysEscapeSeparator(t *testing.T) {
	// Without escaping, owner "a" with session "b:c" and owner "a:b"
	// with session "c" would share a key.
	assert.NotEqual(t, sessionKey("a", "b:c"), sessionKey("a:b", "c"))

	// Keys for owner "a:b" must not fall under owner "a"'s scan prefix.
	prefix := strings.TrimSuffix(ownerPattern("a"), "*")
	assert.False(t, strings.HasPrefix(sessionKey("a:b", "c"), prefix))

	// Plain ids keep their readable form.
	assert.Equal(t, "session:u1:tab-a", sessionKey("u1", "tab-a"))
}
