package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandQueryBasic(t *testing.T) {
	variants := ExpandQuery("Hello World")
	require.Contains(t, variants, "Hello World")
	require.Contains(t, variants, "hello world")
}

func TestExpandQueryStopWords(t *testing.T) {
	variants := ExpandQuery("how to implement search")
	require.Contains(t, variants, "implement search")
}

func TestExpandQueryAlreadyLowercase(t *testing.T) {
	require.Equal(t, []string{"hello"}, ExpandQuery("hello"))
}

func TestExpandQueryTurkish(t *testing.T) {
	variants := ExpandQuery("bu dosya için arama")
	require.Contains(t, variants, "dosya arama")
}

func TestExpandQueryAllStopWordsKeepsOriginalOnly(t *testing.T) {
	variants := ExpandQuery("it is the")
	require.Equal(t, []string{"it is the"}, variants)
}
