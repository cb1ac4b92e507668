package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data string
		sum  uint64
	}{
		{"empty", "", 0xef46db3751d8e999},
		{"short", "test", 0x4fdcca5ddb678139},
		{"long", "this is a longer test string to hash", 0x69275f7f7ee59dbd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sum, Checksum([]byte(tt.data)))
		})
	}
}

func TestTopicID(t *testing.T) {
	const h uint64 = 0x4fdcca5ddb678139
	require.Equal(t, int32((h^h>>32)&0x7fffffff), TopicID("test"))
	require.Equal(t, TopicID("orders"), TopicID("orders"))
	require.NotEqual(t, TopicID("orders"), TopicID("quotes"))

	for _, name := range []string{"", "a", "orders", "market.quotes.eu"} {
		require.GreaterOrEqual(t, TopicID(name), int32(0), name)
	}
}

func BenchmarkChecksum(b *testing.B) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i)
	}
	b.SetBytes(int64(len(data)))
	for b.Loop() {
		Checksum(data)
	}
}
