package reading

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mbus-hat/hardware/mbus/telegram"
	"github.com/temoto/mbus-hat/helpers"
)

func decode(t testing.TB, ci byte, s string) *telegram.Telegram {
	tg, err := telegram.DecodePayload(ci, helpers.MustHex(s))
	require.NoError(t, err)
	return tg
}

func TestProjectVolume(t *testing.T) {
	t.Parallel()
	tg := decode(t, telegram.CIResponseLong, "78563412 4304 01 07 55 00 0000 0413d4300000")
	rd := Project(tg)
	assert.Equal(t, "12345678", rd.MeterID)
	assert.Equal(t, "ABC", rd.Manufacturer)
	assert.Equal(t, "Water", rd.Medium)
	assert.Equal(t, "12345678", rd.RoutingKey(7))
	require.Len(t, rd.Measurements, 1)
	m := rd.Measurements[0]
	assert.Equal(t, "Volume_instantaneous", m.Key)
	assert.Equal(t, "Volume", m.Type)
	require.NotNil(t, m.Value)
	assert.Equal(t, 12.5, *m.Value)
	assert.Equal(t, "m3", m.Unit)
	assert.Equal(t, "", m.Raw)

	b, err := rd.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"meter_id":"12345678","manufacturer":"ABC","medium":"Water",
"measurements":[{"key":"Volume_instantaneous","type":"Volume","value":12.5,"unit":"m3"}]}`, string(b))
}

func TestProjectTotal(t *testing.T) {
	t.Parallel()
	// opaque, time point, stored maximum, text
	tg := decode(t, telegram.CIResponseNone,
		"04 ff 01 aabbccdd  04 6d 1e0a0f33  54 13 10270000  0d fd 0c 03 434241")
	rd := Project(tg)
	assert.Equal(t, "", rd.MeterID)
	assert.Equal(t, "", rd.Medium)
	assert.Equal(t, "slave_5", rd.RoutingKey(5))
	require.Len(t, rd.Measurements, 4)

	unknown := rd.Measurements[0]
	assert.Equal(t, KeyUnknown, unknown.Key)
	assert.Nil(t, unknown.Value)
	assert.Equal(t, "", unknown.Unit)
	assert.Equal(t, "aabbccdd", unknown.Raw)

	tp := rd.Measurements[1]
	assert.Equal(t, "Time point_instantaneous", tp.Key)
	require.NotNil(t, tp.Timestamp)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), *tp.Timestamp)
	assert.Nil(t, tp.Value)

	stored := rd.Measurements[2]
	assert.Equal(t, "Volume_maximum", stored.Key)
	assert.Equal(t, uint64(1), stored.Storage)
	require.NotNil(t, stored.Value)
	assert.Equal(t, 10.0, *stored.Value)
	assert.Nil(t, stored.Timestamp, "time point has storage 0")

	text := rd.Measurements[3]
	assert.Equal(t, "Model version_instantaneous", text.Key)
	assert.Equal(t, "ABC", text.Text)
	assert.Equal(t, "", text.Unit)
}

func TestProjectValueUnitPaired(t *testing.T) {
	t.Parallel()
	tg := decode(t, telegram.CIResponseNone, "0413d4300000 0013 0a13ab00 02fd48e600 027c001000")
	ms := Project(tg).Measurements
	require.Len(t, ms, 5)
	for _, m := range ms {
		assert.Equal(t, m.Value != nil, m.Unit != "", "key=%s", m.Key)
	}
}

func TestProjectEmpty(t *testing.T) {
	t.Parallel()
	rd := Project(&telegram.Telegram{})
	assert.Empty(t, rd.Measurements)
	b, err := json.Marshal(rd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"measurements":[]}`, string(b))
}
