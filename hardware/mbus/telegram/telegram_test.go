package telegram

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mbus-hat/hardware/mbus"
	"github.com/temoto/mbus-hat/helpers"
)

const testHeader = "78563412 4304 01 07 55 00 0000"

func TestDecodeFrame(t *testing.T) {
	t.Parallel()
	b := helpers.MustHex("68151568 080172 " + testHeader + " 0413d4300000 4e16")
	f, err := mbus.ParseFrame(b, mbus.FrameLong)
	require.NoError(t, err)
	tg, err := Decode(&f)
	require.NoError(t, err)
	assert.Equal(t, byte(0x08), tg.C)
	assert.Equal(t, byte(0x01), tg.A)
	assert.Equal(t, "12345678", tg.Identification)
	assert.Equal(t, "ABC", tg.Manufacturer)
	assert.Equal(t, byte(1), tg.Version)
	assert.Equal(t, Medium(0x07), tg.Medium)
	assert.Equal(t, "Water", tg.Medium.String())
	assert.Equal(t, byte(0x55), tg.AccessNumber)
	require.Len(t, tg.Records, 1)
	r := tg.Records[0]
	assert.Equal(t, "Volume", r.Quantity)
	assert.Equal(t, "m3", r.Unit)
	assert.Equal(t, -3, r.Exponent)
	assert.Equal(t, FunctionInstantaneous, r.Function)
	require.NotNil(t, r.Value)
	assert.Equal(t, 12.5, *r.Value)
	assert.Equal(t, helpers.MustHex("d4300000"), r.Raw)
	assert.False(t, tg.MoreRecordsFollow)
}

func TestDecodeNotLong(t *testing.T) {
	t.Parallel()
	f, err := mbus.ParseFrame(mbus.EncodePing(1), mbus.FrameShort)
	require.NoError(t, err)
	_, err = Decode(&f)
	assert.True(t, IsUnsupported(err), "err=%v", err)
}

func TestDecodeShortHeader(t *testing.T) {
	t.Parallel()
	tg, err := DecodePayload(CIResponseShort, helpers.MustHex("2a 04 0000 0413d4300000"))
	require.NoError(t, err)
	assert.Equal(t, byte(0x2a), tg.AccessNumber)
	assert.Equal(t, byte(0x04), tg.Status)
	assert.Equal(t, "", tg.Identification)
	require.Len(t, tg.Records, 1)
}

func TestManufacturer(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint16(0x0443), EncodeManufacturer("ABC"))
	assert.Equal(t, "ABC", DecodeManufacturer(0x0443))
	assert.Equal(t, "KAM", DecodeManufacturer(EncodeManufacturer("KAM")))
	assert.Equal(t, "", DecodeManufacturer(0))
	assert.Equal(t, "12345678", DecodeIdentification(helpers.MustHex("78563412")))
	assert.Equal(t, "0000abcd", DecodeIdentification(helpers.MustHex("cdab0000")))
}

func TestDecodeValues(t *testing.T) {
	t.Parallel()
	type Case struct {
		name     string
		input    string
		quantity string
		unit     string
		value    float64
		function Function
	}
	cases := []Case{
		{"int8-negative", "01 5b fe", "Flow temperature", "C", -2, FunctionInstantaneous},
		{"int16-energy", "02 06 e803", "Energy", "Wh", 1e6, FunctionInstantaneous},
		{"int24-negative", "03 13 ffffff", "Volume", "m3", -0.001, FunctionInstantaneous},
		{"int32-maximum", "14 2b 64000000", "Power", "W", 100, FunctionMaximum},
		{"int48", "06 03 010000000000", "Energy", "Wh", 1, FunctionInstantaneous},
		{"int64-negative", "07 03 ffffffffffffffff", "Energy", "Wh", -1, FunctionInstantaneous},
		{"real32", "05 2b 0000c842", "Power", "W", 100, FunctionInstantaneous},
		{"bcd8", "0c 13 78563412", "Volume", "m3", 12345.678, FunctionInstantaneous},
		{"bcd4-negative", "0a 5a 23f1", "Flow temperature", "C", -12.3, FunctionInstantaneous},
		{"bcd2-minimum", "29 3b 42", "Volume flow", "m3/h", 42e-3, FunctionMinimum},
		{"error-state", "31 fd 17 05", "Error flags", "none", 5, FunctionErrorState},
		{"fd-voltage", "02 fd 48 e600", "Voltage", "V", 23, FunctionInstantaneous},
		{"fd-current", "02 fd 59 0a00", "Current", "A", 0.01, FunctionInstantaneous},
		{"fb-megawatthour", "02 fb 01 0a00", "Energy", "Wh", 1e7, FunctionInstantaneous},
		{"vife-multiplier", "04 93 75 10270000", "Volume", "m3", 1, FunctionInstantaneous},
		{"duration-hours", "02 22 1000", "On time", "h", 16, FunctionInstantaneous},
		{"fabrication-number", "0c 78 78563412", "Fabrication number", "none", 12345678, FunctionInstantaneous},
		{"lvar-bcd", "0d 13 c2 3412", "Volume", "m3", 1.234, FunctionInstantaneous},
		{"lvar-binary", "0d 13 e2 e803", "Volume", "m3", 1, FunctionInstantaneous},
		{"plain-text-unit", "02 7c 03 6c2f68 0500", "Custom", "h/l", 5, FunctionInstantaneous},
		{"plain-text-empty", "02 7c 00 1000", "Custom", "none", 16, FunctionInstantaneous},
		{"lvar-bcd-negative", "0d 13 d2 3412", "Volume", "m3", -1.234, FunctionInstantaneous},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			tg, err := DecodePayload(CIResponseNone, helpers.MustHex(c.input))
			require.NoError(t, err)
			require.Len(t, tg.Records, 1)
			r := tg.Records[0]
			assert.Equal(t, c.quantity, r.Quantity)
			assert.Equal(t, c.unit, r.Unit)
			assert.Equal(t, c.function, r.Function)
			require.NotNil(t, r.Value, "record=%s", r.String())
			assert.InDelta(t, c.value, *r.Value, 1e-9)
		})
	}
}

func TestDecodeLVARNextRecord(t *testing.T) {
	t.Parallel()
	tg, err := DecodePayload(CIResponseNone, helpers.MustHex("0d 13 c2 3412 01 13 05"))
	require.NoError(t, err)
	require.Len(t, tg.Records, 2)
	assert.Equal(t, helpers.MustHex("3412"), tg.Records[0].Raw)
	require.NotNil(t, tg.Records[1].Value)
	assert.InDelta(t, 0.005, *tg.Records[1].Value, 1e-9)
	assert.Equal(t, "m3", tg.Records[1].Unit)
}

func TestDecodeAppError(t *testing.T) {
	t.Parallel()
	_, err := DecodePayload(CIAppError, helpers.MustHex("02"))
	require.Error(t, err)
	assert.Equal(t, "telegram unsupported application error=02", err.Error())
}

func TestDecodeNoValue(t *testing.T) {
	t.Parallel()
	type Case struct {
		name     string
		input    string
		quantity string
		text     string
	}
	cases := []Case{
		{"manufacturer-vif", "04 ff 01 aabbccdd", QuantityUnknown, ""},
		{"any-vif", "02 7e 0100", QuantityUnknown, ""},
		{"reserved-vif", "02 6f 0100", QuantityUnknown, ""},
		{"manufacturer-vife", "02 93 7f 0100", QuantityUnknown, ""},
		{"no-data", "00 13", "Volume", ""},
		{"selection", "08 13", "Volume", ""},
		{"bad-bcd", "0a 13 ab00", "Volume", ""},
		{"lvar-ascii", "0d fd 0c 03 434241", "Model version", "ABC"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			tg, err := DecodePayload(CIResponseNone, helpers.MustHex(c.input))
			require.NoError(t, err)
			require.Len(t, tg.Records, 1)
			r := tg.Records[0]
			assert.Equal(t, c.quantity, r.Quantity)
			assert.Nil(t, r.Value)
			assert.Equal(t, "", r.Unit)
			assert.Equal(t, c.text, r.Text)
			assert.Equal(t, c.quantity != QuantityUnknown, r.Known())
		})
	}
}

func TestOpaqueKeepsRaw(t *testing.T) {
	t.Parallel()
	tg, err := DecodePayload(CIResponseNone, helpers.MustHex("04 ff 01 aabbccdd 0413d4300000"))
	require.NoError(t, err)
	require.Len(t, tg.Records, 2)
	assert.Equal(t, helpers.MustHex("aabbccdd"), tg.Records[0].Raw)
	assert.Equal(t, helpers.MustHex("01"), tg.Records[0].VIFE)
	assert.Equal(t, "Volume", tg.Records[1].Quantity)
}

func TestDecodeStorageTariffSubunit(t *testing.T) {
	t.Parallel()
	tg, err := DecodePayload(CIResponseNone, helpers.MustHex("c4 52 13 0a000000"))
	require.NoError(t, err)
	require.Len(t, tg.Records, 1)
	r := tg.Records[0]
	assert.Equal(t, uint64(5), r.Storage)
	assert.Equal(t, uint32(1), r.Tariff)
	assert.Equal(t, uint16(1), r.Subunit)
	assert.Equal(t, helpers.MustHex("52"), r.DIFE)
}

func TestDecodeTime(t *testing.T) {
	t.Parallel()
	type Case struct {
		name   string
		input  string
		expect time.Time
	}
	cases := []Case{
		{"type-g", "02 6c 0f33", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"type-f", "04 6d 1e0a0f33", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"type-i", "06 6d 051e0a0f3300", time.Date(2024, 3, 15, 10, 30, 5, 0, time.UTC)},
		{"year-1999", "02 6c 61c9", time.Date(1999, 9, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			tg, err := DecodePayload(CIResponseNone, helpers.MustHex(c.input))
			require.NoError(t, err)
			require.Len(t, tg.Records, 1)
			r := tg.Records[0]
			assert.True(t, r.TimePoint())
			assert.Equal(t, "Time point", r.Quantity)
			assert.Nil(t, r.Value)
			require.NotNil(t, r.Timestamp)
			assert.Equal(t, c.expect, *r.Timestamp)
		})
	}

	t.Run("invalid-flag", func(t *testing.T) {
		tg, err := DecodePayload(CIResponseNone, helpers.MustHex("04 6d 9e0a0f33"))
		require.NoError(t, err)
		assert.True(t, tg.Records[0].TimePoint())
		assert.Nil(t, tg.Records[0].Timestamp)
	})
}

func TestTimestampLink(t *testing.T) {
	t.Parallel()
	tg, err := DecodePayload(CIResponseNone, helpers.MustHex("04 6d 1e0a0f33  04 13 d4300000  44 13 10270000"))
	require.NoError(t, err)
	require.Len(t, tg.Records, 3)
	expect := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	require.NotNil(t, tg.Records[1].Timestamp)
	assert.Equal(t, expect, *tg.Records[1].Timestamp)
	assert.Nil(t, tg.Records[2].Timestamp, "storage 1 has no time point")
}

func TestManufacturerData(t *testing.T) {
	t.Parallel()
	tg, err := DecodePayload(CIResponseNone, helpers.MustHex("0413d4300000 1f 0102"))
	require.NoError(t, err)
	assert.Len(t, tg.Records, 1)
	assert.Equal(t, helpers.MustHex("0102"), tg.ManufacturerData)
	assert.True(t, tg.MoreRecordsFollow)

	tg, err = DecodePayload(CIResponseNone, helpers.MustHex("2f2f 0413d4300000 2f 0f"))
	require.NoError(t, err)
	assert.Len(t, tg.Records, 1)
	assert.Empty(t, tg.ManufacturerData)
	assert.False(t, tg.MoreRecordsFollow)
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()
	type Case struct {
		name  string
		ci    byte
		input string
		what  string
	}
	cases := []Case{
		{"header-long", CIResponseLong, "7856341243", "header"},
		{"header-short", CIResponseShort, "2a", "header"},
		{"data", CIResponseNone, "04 13 d430", "data"},
		{"data-after-header", CIResponseLong, testHeader + " 0413d4300000 0213", "data"},
		{"vif", CIResponseNone, "04", "vif"},
		{"dife", CIResponseNone, "84", "dife"},
		{"vife", CIResponseNone, "04 93", "vife"},
		{"lvar", CIResponseNone, "0d 13", "lvar"},
		{"lvar-data", CIResponseNone, "0d 13 05 4142", "data"},
		{"vif-text", CIResponseNone, "02 7c 05 41", "vif text"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			_, err := DecodePayload(c.ci, helpers.MustHex(c.input))
			require.Error(t, err)
			require.True(t, IsTruncated(err), "err=%v", err)
			assert.Contains(t, err.Error(), "truncated "+c.what)
		})
	}
}

func TestDecodeUnsupported(t *testing.T) {
	t.Parallel()
	type Case struct {
		ci    byte
		input string
	}
	cases := []Case{
		{0x51, "00"},
		{0x73, "00"},
		{CIAppError, "02"},
		{CIAppError, ""},
		{CIResponseNone, "3f"},
		{CIResponseNone, "0d 13 f8"},
		{CIResponseNone, "84 8080808080808080808000 13"},
	}
	for i, c := range cases {
		c := c
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := DecodePayload(c.ci, helpers.MustHex(c.input))
			require.Error(t, err)
			assert.True(t, IsUnsupported(err), "err=%v", err)
		})
	}
}
