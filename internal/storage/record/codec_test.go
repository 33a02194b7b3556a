package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	ID      string   `json:"id"`
	Admin   bool     `json:"is_admin"`
	Labels  []string `json:"labels"`
	Skipped string   `json:"-"`
}

func TestDecodeCoercesLegacyValues(t *testing.T) {
	var got sample
	err := Decode(Record{"id": float64(42), "is_admin": "1", "labels": "clerk", "extra": "ignored"}, &got)
	require.NoError(t, err)
	require.Equal(t, "42", got.ID)
	require.True(t, got.Admin)
	require.Equal(t, []string{"clerk"}, got.Labels)
}

func TestDecodeMissingFieldsStayZero(t *testing.T) {
	var got sample
	require.NoError(t, Decode(Record{"id": "u1", "is_admin": nil}, &got))
	require.Equal(t, sample{ID: "u1"}, got)
}

func TestEncodeUsesJSONNames(t *testing.T) {
	rec, err := Encode(sample{ID: "u1", Admin: true, Labels: []string{"a"}, Skipped: "x"})
	require.NoError(t, err)
	require.Equal(t, "u1", rec.ID())
	require.Equal(t, true, rec["is_admin"])
	require.Equal(t, []string{"a"}, rec["labels"])
	require.NotContains(t, rec, "Skipped")
	require.NotContains(t, rec, "-")
}
