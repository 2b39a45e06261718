package dump

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mbus-hat/cmd/mbus-hat/subcmd"
	"github.com/temoto/mbus-hat/hardware/mbus/telegram"
)

const testFrame = "68151568 080172 78563412 4304 01 07 55 00 0000 0413d4300000 4e16"

func TestDecode(t *testing.T) {
	t.Parallel()
	out, err := Decode(testFrame)
	require.NoError(t, err)
	assert.Equal(t, "12345678", out.RoutingKey)
	assert.Equal(t, "ABC", out.Telegram.Manufacturer)
	require.Len(t, out.Reading.Measurements, 1)
	assert.Equal(t, "Volume_instantaneous", out.Reading.Measurements[0].Key)

	var buf bytes.Buffer
	require.NoError(t, subcmd.Print(&buf, "yaml", out))
	assert.Regexp(t, `routing_key: .?12345678`, buf.String())
	buf.Reset()
	require.NoError(t, subcmd.Print(&buf, "json", out))
	assert.Contains(t, buf.String(), `"routing_key": "12345678"`)
	assert.Error(t, subcmd.Print(&buf, "xml", out))
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()
	_, err := Decode("zz")
	assert.Contains(t, err.Error(), "decode hex")

	_, err = Decode("68151568 080172 78563412 4304 01 07 55 00 0000 0413d4300000 4f16")
	assert.Contains(t, err.Error(), "decode frame")

	// record declares 4 data bytes, only 2 present
	_, err = Decode("68131368 080172 78563412 4304 01 07 55 00 0000 0413d430 4e16")
	require.Error(t, err)
	assert.True(t, telegram.IsTruncated(err), "err=%v", err)
}
