package utils

// Badge color classes for note authors. The palette is fixed so the same
// author always renders in the same color across sessions and devices.
var userColorPalette = []string{
	"bg-blue-100 text-blue-800",
	"bg-green-100 text-green-800",
	"bg-purple-100 text-purple-800",
	"bg-pink-100 text-pink-800",
	"bg-indigo-100 text-indigo-800",
	"bg-teal-100 text-teal-800",
	"bg-orange-100 text-orange-800",
	"bg-cyan-100 text-cyan-800",
}

const userColorNeutral = "bg-gray-100 text-gray-800"

// Two accounts keep reserved colors regardless of the hash.
var userColorReserved = map[string]string{
	"admin@admin.de": "bg-red-100 text-red-800",
	"x959@caller.de": "bg-yellow-100 text-yellow-800",
}

// UserColor deterministically maps an author email to a badge color class.
// Empty emails get the neutral gray class.
func UserColor(email string) string {
	if email == "" {
		return userColorNeutral
	}
	if color, ok := userColorReserved[email]; ok {
		return color
	}
	var hash uint32
	for i := 0; i < len(email); i++ {
		hash = hash*31 + uint32(email[i])
	}
	return userColorPalette[hash%uint32(len(userColorPalette))]
}
