package calendar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlayKeying(t *testing.T) {
	o := NewOverlay("series-1", []*OccurrenceException{
		{SeriesID: "series-1", OriginalDate: "2025-01-13", Kind: ExceptionCancelled},
		{SeriesID: "series-2", OriginalDate: "2025-01-20", Kind: ExceptionCancelled}, // wrong series, ignored
	})

	require.Equal(t, 1, o.Len())

	e, ok := o.Lookup("2025-01-13")
	require.True(t, ok)
	require.Equal(t, ExceptionCancelled, e.Kind)

	_, ok = o.Lookup("2025-01-20")
	require.False(t, ok)

	o.Upsert(&OccurrenceException{SeriesID: "series-1", OriginalDate: "2025-01-06", Kind: ExceptionModified})
	require.Equal(t, []string{"2025-01-06", "2025-01-13"}, o.Dates())

	o.Remove("2025-01-13")
	_, ok = o.Lookup("2025-01-13")
	require.False(t, ok)
}
