package grpcjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodec_Registered(t *testing.T) {
	c := encoding.GetCodec(Name)
	require.NotNil(t, c)
	assert.Equal(t, Name, c.Name())

	b, err := c.Marshal(map[string]float64{"ph": 6.5})
	require.NoError(t, err)
	var out map[string]float64
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Equal(t, 6.5, out["ph"])
}
