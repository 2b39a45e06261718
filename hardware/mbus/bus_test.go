package mbus

import (
	"io"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mbus-hat/helpers"
	"github.com/temoto/mbus-hat/log2"
)

func openMock(t testing.TB, reply func([]byte) []MockRead) (*Bus, *MockUart) {
	u := NewMockUart(reply)
	b, err := NewBus(u, "/dev/null", 0, log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	return b, u
}

func TestRecvPartial(t *testing.T) {
	t.Parallel()
	b, u := openMock(t, nil)
	u.Push(MockReadsHex("68", "1515", "68080172", "78563412 4304 01 07 55 00 0000", "0413d430", "0000", "4e", "16")...)
	f, err := b.Recv(FrameLong, time.Second)
	require.NoError(t, err)
	assert.Equal(t, helpers.MustHex(testLongHex), f.Raw)
}

func TestRecvTimeout(t *testing.T) {
	t.Parallel()
	b, _ := openMock(t, nil)
	tbegin := time.Now()
	_, err := b.Recv(FrameAck, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsFrameTimeout(err))
	assert.True(t, time.Since(tbegin) >= 50*time.Millisecond)
	e := errors.Cause(err).(ErrFrameTimeout)
	assert.Equal(t, FrameAck, e.Kind)
	assert.Equal(t, 50*time.Millisecond, e.Wait)
}

func TestRecvTimeoutPartialDiscarded(t *testing.T) {
	t.Parallel()
	b, u := openMock(t, nil)
	u.Push(MockReadsHex("68", "15")...)
	_, err := b.Recv(FrameLong, 30*time.Millisecond)
	require.True(t, IsFrameTimeout(err), "err=%v", err)
	e := errors.Cause(err).(ErrFrameTimeout)
	assert.Equal(t, helpers.MustHex("6815"), e.Received)

	// next receive starts clean
	u.Push(MockRead{B: []byte{ByteAck}})
	f, err := b.Recv(FrameAck, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, FrameAck, f.Kind)
}

func TestRecvSlowBytes(t *testing.T) {
	t.Parallel()
	b, u := openMock(t, nil)
	raw := helpers.MustHex("105b015c16")
	for _, x := range raw {
		u.Push(MockRead{B: []byte{x}, Delay: 5 * time.Millisecond})
	}
	f, err := b.Recv(FrameShort, time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte(1), f.A)
}

func TestRecvMalformedStart(t *testing.T) {
	t.Parallel()
	b, u := openMock(t, nil)
	u.Push(MockReadsHex("10400141 16")...)
	_, err := b.Recv(FrameAck, time.Second)
	assert.True(t, IsFrameMalformed(err), "err=%v", err)
}

func TestRecvEOFDeclaredLonger(t *testing.T) {
	t.Parallel()
	b, u := openMock(t, nil)
	// L=0x16 says one more byte than really sent
	u.Push(MockReadsHex("68161668 080172 78563412 4304 01 07 55 00 0000 0413d4300000 4e16")...)
	u.Push(MockRead{Err: io.EOF})
	_, err := b.Recv(FrameLong, time.Second)
	require.Error(t, err)
	e, ok := errors.Cause(err).(ErrFrameMalformed)
	require.True(t, ok, "err=%v", err)
	assert.Equal(t, CheckLength, e.Check)
}

func TestRecvDeclaredLongerSilence(t *testing.T) {
	t.Parallel()
	b, u := openMock(t, nil)
	// L=0x16 says one more byte than really sent, then line goes quiet
	u.Push(MockReadsHex("68161668 080172 78563412 4304 01 07 55 00 0000 0413d4300000 4e16")...)
	_, err := b.Recv(FrameLong, 50*time.Millisecond)
	require.Error(t, err)
	assert.False(t, IsFrameTimeout(err))
	e, ok := errors.Cause(err).(ErrFrameMalformed)
	require.True(t, ok, "err=%v", err)
	assert.Equal(t, CheckLength, e.Check)
	assert.Equal(t, 0x16+6, e.Expected)
	assert.Equal(t, 0x16+5, e.Actual)

	// partial frame with valid header also
	u.Push(MockReadsHex("68151568", "0801")...)
	_, err = b.Recv(FrameLong, 30*time.Millisecond)
	assert.True(t, IsFrameMalformed(err), "err=%v", err)
}

func TestRecvReadError(t *testing.T) {
	t.Parallel()
	b, u := openMock(t, nil)
	u.Push(MockRead{Err: errors.New("device gone")})
	_, err := b.Recv(FrameAck, time.Second)
	require.Error(t, err)
	assert.False(t, IsFrameTimeout(err))
	assert.False(t, IsFrameMalformed(err))
	assert.Contains(t, err.Error(), "device gone")
}

func TestTx(t *testing.T) {
	t.Parallel()
	response := helpers.MustHex(testLongHex)
	b, u := openMock(t, MockSlave(1, response))

	f, err := b.Tx(EncodePing(1), FrameAck, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, FrameAck, f.Kind)

	f, err = b.Tx(EncodeRequest(1, false), FrameLong, time.Second)
	require.NoError(t, err)
	assert.Equal(t, response, f.Raw)

	// other address is silent
	_, err = b.Tx(EncodePing(2), FrameAck, 20*time.Millisecond)
	assert.True(t, IsFrameTimeout(err))

	assert.Equal(t, []string{"1040014116", "105b015c16", "1040024216"}, u.Writes())
	assert.Equal(t, 3, u.Resets())
}
