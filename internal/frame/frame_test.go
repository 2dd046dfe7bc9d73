package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	payload := []byte(`{"m":"set_auth_token","p":["unauthorized_user_token"]}`)
	require.Len(t, payload, 54)

	got := Encode(payload)
	require.Equal(t, "~m~54~m~{\"m\":\"set_auth_token\",\"p\":[\"unauthorized_user_token\"]}", string(got))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"a",
		`{"m":"du","p":["cs_1",{}]}`,
		"~h~1",
		"payload with unicode éè",
	}
	for _, payload := range cases {
		framed := EncodeString(payload)
		got, err := Decode(framed)
		require.NoError(t, err)
		require.Equal(t, payload, string(got))
	}
}

func TestReaderMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(EncodeString("first"))
	buf.Write(EncodeString("second"))
	buf.Write(EncodeString("third"))

	r := NewReader(&buf)
	for _, want := range []string{"first", "second", "third"} {
		got, err := r.Next()
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
}

func TestReaderMalformedMissingDelimiter(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("garbage")))
	_, err := r.Next()
	require.Error(t, err)
	var mf *MalformedFrame
	require.ErrorAs(t, err, &mf)
}

func TestReaderMalformedLengthNotDigits(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("~m~abc~m~x")))
	_, err := r.Next()
	require.Error(t, err)
	var mf *MalformedFrame
	require.ErrorAs(t, err, &mf)
}

func TestIsHeartbeat(t *testing.T) {
	require.True(t, IsHeartbeat([]byte("~h~1")))
	require.True(t, IsHeartbeat([]byte("~h~123456")))
	require.False(t, IsHeartbeat([]byte("~h~")))
	require.False(t, IsHeartbeat([]byte(`{"m":"du"}`)))
}
