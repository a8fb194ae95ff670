package iso8583

import (
	"testing"

	"github.com/moov-io/iso8583"
	"github.com/stretchr/testify/require"
)

// received packs and unpacks msg, as the server sees it off the wire.
func received(t *testing.T, fields map[int]string) *iso8583.Message {
	t.Helper()
	msg := iso8583.NewMessage(spec)
	msg.MTI(mtiAuthorizationRequest)
	for id, v := range fields {
		require.NoError(t, msg.Field(id, v))
	}
	packed, err := msg.Pack()
	require.NoError(t, err)

	in := iso8583.NewMessage(spec)
	require.NoError(t, in.Unpack(packed))
	return in
}

func TestDecodeAuthorizationRequest(t *testing.T) {
	complete := map[int]string{2: "6549873025634501", 4: "1050", 11: "000001", 48: "1234"}

	req, err := decodeAuthorizationRequest(received(t, complete))
	require.NoError(t, err)
	require.Equal(t, "6549873025634501", req.CardNumber)
	require.Equal(t, "10.5", req.Amount.String())

	for _, id := range requiredFields {
		fields := map[int]string{}
		for k, v := range complete {
			if k != id {
				fields[k] = v
			}
		}
		_, err := decodeAuthorizationRequest(received(t, fields))
		require.ErrorContains(t, err, "missing field")
	}
}
