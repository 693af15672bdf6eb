package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserColor_Deterministic(t *testing.T) {
	first := UserColor("anwalt@kanzlei.de")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, UserColor("anwalt@kanzlei.de"))
	}
}

func TestUserColor_ReservedAccounts(t *testing.T) {
	assert.Equal(t, "bg-red-100 text-red-800", UserColor("admin@admin.de"))
	assert.Equal(t, "bg-yellow-100 text-yellow-800", UserColor("x959@caller.de"))
}

func TestUserColor_EmptyEmail(t *testing.T) {
	assert.Equal(t, "bg-gray-100 text-gray-800", UserColor(""))
}

func TestUserColor_AlwaysFromPalette(t *testing.T) {
	valid := map[string]bool{"bg-red-100 text-red-800": true, "bg-yellow-100 text-yellow-800": true}
	for _, c := range userColorPalette {
		valid[c] = true
	}
	for _, email := range []string{"a@b.de", "b@c.de", "sekretariat@kanzlei.de", "m.mustermann@example.com"} {
		assert.True(t, valid[UserColor(email)], "unexpected color for %s", email)
	}
}
