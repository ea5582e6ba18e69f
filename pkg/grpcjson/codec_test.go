package grpcjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodecIsRegistered(t *testing.T) {
	c := encoding.GetCodec(Name)
	require.NotNil(t, c)

	type msg struct {
		ProductID int64 `json:"product_id"`
	}
	b, err := c.Marshal(msg{ProductID: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"product_id":7}`, string(b))

	var out msg
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Equal(t, int64(7), out.ProductID)
}
