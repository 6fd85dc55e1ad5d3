package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtinTable(t *testing.T) *Table {
	t.Helper()
	tab, err := Builtin()
	require.NoError(t, err)
	return tab
}

func TestSingleCityGuide(t *testing.T) {
	g := builtinTable(t).Guide([]string{"Tokyo, Japan"}, 4)

	assert.Contains(t, g, "Tokyo, Japan passes:")
	assert.Contains(t, g, "- Suica card (rechargeable IC card, ¥2,000 (¥500 deposit + ¥1,500 balance))")
	assert.Contains(t, g, "JR Tokyo Wide Pass")
	assert.Contains(t, g, "- A Suica card is the simplest option for most visitors.")
	assert.NotContains(t, g, "Japan Rail Pass")
}

func TestMultiCityJapanGuide(t *testing.T) {
	g := builtinTable(t).Guide([]string{"Tokyo", "Kyoto", "Osaka"}, 10)

	assert.Contains(t, g, "Inter-city: Japan Rail Pass, 14-day ¥80,000")
	assert.Contains(t, g, "Booking: buy online")
	assert.Contains(t, g, "- Tokyo -> Kyoto: ¥13,320 (2h 15m)")
	assert.Contains(t, g, "- Kyoto -> Osaka: ¥560 (30 min)")
	assert.Contains(t, g, "In Kyoto: get a ICOCA card")
	assert.Contains(t, g, "Reserve Shinkansen seats")
	assert.NotContains(t, g, "Kyoto City Bus")
}

func TestRailPassSizedToTrip(t *testing.T) {
	tab := builtinTable(t)
	assert.Contains(t, tab.Guide([]string{"Tokyo", "Kyoto"}, 5), "7-day ¥50,000")
	assert.Contains(t, tab.Guide([]string{"Tokyo", "Kyoto"}, 30), "21-day ¥100,000")
}

func TestUnlistedCityInListedCountry(t *testing.T) {
	g := builtinTable(t).Guide([]string{"Tokyo", "Hiroshima, Japan"}, 6)
	assert.Contains(t, g, "Japan Rail Pass")
	assert.Contains(t, g, "In Tokyo: get a Suica card")
	assert.NotContains(t, g, "Hiroshima, Japan ->")
}

func TestUnknownCitiesGetGeneralAdvice(t *testing.T) {
	tab := builtinTable(t)

	g := tab.Guide([]string{"Lisbon", "Porto"}, 6)
	assert.Contains(t, g, "General advice for other cities:")
	assert.Contains(t, g, "rechargeable transit card")
	assert.NotContains(t, g, "passes:")

	g = tab.Guide([]string{"Kyoto", "Lisbon"}, 6)
	assert.Contains(t, g, "Kyoto passes:")
	assert.Contains(t, g, "General advice for other cities:")

	assert.Empty(t, tab.Guide(nil, 3))
}

func TestParseRejectsUnknownCountry(t *testing.T) {
	_, err := Parse([]byte("cities:\n  lima:\n    country: peru\n"))
	require.ErrorContains(t, err, `unknown country "peru"`)

	_, err = Parse([]byte("cities: [oops"))
	require.Error(t, err)
}
