package logging

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringer string

func (s stringer) String() string { return string(s) }

func TestAttrs(t *testing.T) {
	assert.Equal(t, KeyBackend, Backend("caldav").Key)
	assert.Equal(t, "caldav", Backend("caldav").Value.String())
	assert.Equal(t, "week", View("week").Value.String())
	assert.Equal(t, int64(3), Count(3).Value.Int64())

	r := Range(stringer("2025-03-02T00:00:00Z/2025-03-09T00:00:00Z"))
	assert.Equal(t, KeyRange, r.Key)
	assert.True(t, strings.HasPrefix(r.Value.String(), "2025-03-02"))

	d := Duration(1500*time.Microsecond + 300*time.Nanosecond)
	assert.Equal(t, KeyDuration, d.Key)
	assert.Equal(t, 2*time.Millisecond, d.Value.Duration())
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("upstream unavailable"))
	assert.Equal(t, KeyError, attr.Key)
	assert.Equal(t, "upstream unavailable", attr.Value.String())

	assert.Empty(t, Err(nil).Key)
}

func TestAnonymizeEmail(t *testing.T) {
	hash := AnonymizeEmail("jane@example.com")
	require.Len(t, hash, len("user:")+16)
	assert.True(t, strings.HasPrefix(hash, "user:"))

	assert.Equal(t, hash, AnonymizeEmail(" Jane@Example.com "))
	assert.NotEqual(t, hash, AnonymizeEmail("john@example.com"))
	assert.Empty(t, AnonymizeEmail(""))
}

func TestUserHash(t *testing.T) {
	attr := UserHash("jane@example.com")
	assert.Equal(t, KeyUserHash, attr.Key)
	assert.Equal(t, AnonymizeEmail("jane@example.com"), attr.Value.String())
}
