package site

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMigrateAboutV1(t *testing.T) {
	doc := Document{string(About): map[string]any{
		"mission": "Love God",
		"vision":  "Serve the city",
	}}
	out, changed := Migrate(doc)
	require.True(t, changed)

	want := map[string]any{
		"schemaVersion": float64(AboutSchemaVersion),
		"title":         "About Us",
		"text":          "",
		"highlights": []any{
			map[string]any{"title": "Our Mission", "text": "Love God"},
			map[string]any{"title": "Our Vision", "text": "Serve the city"},
		},
	}
	if diff := cmp.Diff(want, out[string(About)]); diff != "" {
		t.Fatalf("migrated about mismatch (-want +got):\n%s", diff)
	}
	// source untouched
	require.Equal(t, "Love God", doc[string(About)].(map[string]any)["mission"])

	again, changed := Migrate(out)
	require.False(t, changed)
	require.True(t, Equal(out, again))
}

func TestMigrateCurrentIsNoop(t *testing.T) {
	doc := Defaults()
	_, changed := Migrate(doc)
	require.False(t, changed)
}

func TestForDisplaySortsByDate(t *testing.T) {
	doc := Document{
		string(Events): []any{
			map[string]any{"id": "event-3", "date": "2026-12-24"},
			map[string]any{"id": "event-1", "date": "2026-11-01"},
			map[string]any{"id": "event-x"},
		},
		string(Sermons): []any{
			map[string]any{"id": "sermon-1", "date": "2026-01-04"},
			map[string]any{"id": "sermon-2", "date": "2026-02-01"},
		},
	}
	out := ForDisplay(doc)
	ev := out[string(Events)].([]any)
	require.Equal(t, "event-1", ev[0].(map[string]any)["id"])
	require.Equal(t, "event-3", ev[1].(map[string]any)["id"])
	require.Equal(t, "event-x", ev[2].(map[string]any)["id"])

	sm := out[string(Sermons)].([]any)
	require.Equal(t, "sermon-2", sm[0].(map[string]any)["id"])

	// storage order untouched
	require.Equal(t, "event-3", doc[string(Events)].([]any)[0].(map[string]any)["id"])
}
