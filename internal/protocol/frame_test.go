package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("hello tank arena")
	frame := Encode(payload)

	d := NewDecoder(0)
	d.Feed(frame)

	got, ok, err := d.Extract()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)
	assert.Equal(t, 0, d.Buffered())
}

func TestExtractByteAtATime(t *testing.T) {
	payload := []byte("fragmented")
	frame := Encode(payload)

	d := NewDecoder(0)
	for i := 0; i < len(frame)-1; i++ {
		d.Feed(frame[i : i+1])
		_, ok, err := d.Extract()
		require.NoError(t, err)
		require.False(t, ok, "frame should not be complete at byte %d", i)
	}
	d.Feed(frame[len(frame)-1:])
	got, ok, err := d.Extract()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestExtractCoalescedFrames(t *testing.T) {
	a := Encode([]byte("one"))
	b := Encode([]byte("two"))
	c := Encode([]byte("three"))

	d := NewDecoder(0)
	d.Feed(append(append(append([]byte{}, a...), b...), c...))

	var got []string
	for {
		payload, ok, err := d.Extract()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(payload))
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestExtractRejectsOversizedFrame(t *testing.T) {
	d := NewDecoder(8)
	frame := Encode([]byte("this payload is far too long"))
	d.Feed(frame)

	_, ok, err := d.Extract()
	require.False(t, ok)
	var tooLarge *ErrFrameTooLarge
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, 8, tooLarge.Max)
}

func TestClientMessageRoundTrip(t *testing.T) {
	in := InputCommand{
		SessionID:  "sess-1",
		ClientTick: 42,
		MoveDir:    0.5,
		TurnDir:    -1,
		TurretTurn: 0.25,
		Fire:       true,
		Brake:      false,
	}

	payload := EncodeMessage(in)
	out, err := DecodeClientMessage(payload)
	require.NoError(t, err)

	got, ok := out.(InputCommand)
	require.True(t, ok)
	assert.Equal(t, in, got)
}

func TestDecodeClientMessageUnknownTag(t *testing.T) {
	_, err := DecodeClientMessage([]byte{255, 1, 2, 3})
	assert.Error(t, err)
}

func TestQueueJoinRoundTrip(t *testing.T) {
	payload := EncodeMessage(QueueJoin{})
	out, err := DecodeClientMessage(payload)
	require.NoError(t, err)
	_, ok := out.(QueueJoin)
	assert.True(t, ok)
}
