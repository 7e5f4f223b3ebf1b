package spreadsheet

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"resumegate/internal/errors"
	"resumegate/internal/flatten"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("WIB", 7*3600))

const fixedStamp = "2025-03-03T22:06:07.890Z"

func record(t *testing.T, body string) *flatten.Record {
	t.Helper()
	rec, err := flatten.FlattenJSON([]byte(body), "")
	require.NoError(t, err)
	return rec
}

func newTestAppender(store Store, opts ...AppenderOption) *Appender {
	opts = append([]AppenderOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewAppender(store, "Sheet1", errors.NewNopLogger(), opts...)
}

func TestAppendExtendsHeader(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Sheet1", []any{"Timestamp", "name"})

	res, err := newTestAppender(store).Append(context.Background(), record(t, `{"name":"Kai","score":9}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"score"}, res.AddedColumns)
	assert.Equal(t, [][]any{
		{"Timestamp", "name", "score"},
		{fixedStamp, "Kai", float64(9)},
	}, store.Rows("Sheet1"))
}

func TestAppendEmptyRecordKeepsHeader(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Sheet1", []any{"Timestamp"})

	_, err := newTestAppender(store).Append(context.Background(), record(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"read:Sheet1", "append:Sheet1"}, store.Calls())
	assert.Equal(t, [][]any{{"Timestamp"}, {fixedStamp}}, store.Rows("Sheet1"))
}

func TestAppendToEmptySheetWritesDefaultHeader(t *testing.T) {
	store := NewMemoryStore()

	_, err := newTestAppender(store).Append(context.Background(), record(t, `{"a":{"b":1,"c":[1,2]}}`))
	require.NoError(t, err)

	assert.Equal(t, [][]any{
		{"Timestamp", "a.b", "a.c"},
		{fixedStamp, float64(1), "[1,2]"},
	}, store.Rows("Sheet1"))
}

func TestAppendKeepsBooleansAndBlanksMissing(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Sheet1", []any{"Timestamp", "email", "ok", "note"})

	_, err := newTestAppender(store).Append(context.Background(), record(t, `{"ok":true,"note":null}`))
	require.NoError(t, err)

	rows := store.Rows("Sheet1")
	require.Len(t, rows, 2)
	assert.Equal(t, []any{fixedStamp, "", true, ""}, rows[1])
}

func TestAppendHeaderIsAppendOnly(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Sheet1", []any{"Timestamp", "b", "a"})

	res, err := newTestAppender(store).Append(context.Background(), record(t, `{"a":1,"c":2,"b":3,"d":4}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Timestamp", "b", "a", "c", "d"}, res.Header)
	assert.Equal(t, []any{fixedStamp, float64(3), float64(1), float64(2), float64(4)}, res.Row)
}

func TestSheetKeyIsNeverAColumn(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Sheet1", []any{"Timestamp"})

	_, err := newTestAppender(store, WithSheetRouting(false)).
		Append(context.Background(), record(t, `{"_sheet":"Other","x":1}`))
	require.NoError(t, err)

	assert.Equal(t, [][]any{
		{"Timestamp", "x"},
		{fixedStamp, float64(1)},
	}, store.Rows("Sheet1"))
	assert.Empty(t, store.Rows("Other"))
}

func TestSheetKeyRoutesToTargetSheet(t *testing.T) {
	store := NewMemoryStore()

	res, err := newTestAppender(store, WithSheetRouting(true), WithAllowedSheets("Other")).
		Append(context.Background(), record(t, `{"_sheet":"Other","x":1}`))
	require.NoError(t, err)

	assert.Equal(t, "Other", res.Sheet)
	assert.Empty(t, store.Rows("Sheet1"))
	assert.Equal(t, [][]any{
		{"Timestamp", "x"},
		{fixedStamp, float64(1)},
	}, store.Rows("Other"))
}

func TestSheetKeyNotInAllowlistUsesDefaultSheet(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Config", []any{"key", "value"}, []any{"rate", float64(5)})

	a := newTestAppender(store, WithSheetRouting(true), WithAllowedSheets("Cohort B"))
	res, err := a.Append(context.Background(), record(t, `{"_sheet":"Config","evil":"x"}`))
	require.NoError(t, err)

	assert.Equal(t, "Sheet1", res.Sheet)
	assert.Equal(t, [][]any{
		{"key", "value"},
		{"rate", float64(5)},
	}, store.Rows("Config"))
	assert.Equal(t, [][]any{
		{"Timestamp", "evil"},
		{fixedStamp, "x"},
	}, store.Rows("Sheet1"))
}

func TestSheetKeyIgnoredWhenNotAString(t *testing.T) {
	a := newTestAppender(NewMemoryStore(), WithSheetRouting(true), WithAllowedSheets("Tab", " "))
	assert.Equal(t, "Sheet1", a.TargetSheet(record(t, `{"_sheet":5}`)))
	assert.Equal(t, "Sheet1", a.TargetSheet(record(t, `{"_sheet":""}`)))
	assert.Equal(t, "Sheet1", a.TargetSheet(record(t, `{"_sheet":" "}`)))
	assert.Equal(t, "Sheet1", a.TargetSheet(record(t, `{"_sheet":"tab"}`)))
	assert.Equal(t, "Tab", a.TargetSheet(record(t, `{"_sheet":"Tab"}`)))
}

func TestSheetRoutingIsOffByDefault(t *testing.T) {
	a := newTestAppender(NewMemoryStore(), WithAllowedSheets("Tab"))
	assert.Equal(t, "Sheet1", a.TargetSheet(record(t, `{"_sheet":"Tab"}`)))
}

func TestSheetLocksStayBoundedAfterFailedAppends(t *testing.T) {
	store := NewMemoryStore()
	store.FailOn = "read"
	a := newTestAppender(store, WithSheetRouting(true), WithAllowedSheets("Tab"))

	for i := range 1000 {
		body := fmt.Sprintf(`{"_sheet":"tab-%d","x":1}`, i)
		_, err := a.Append(context.Background(), record(t, body))
		require.Error(t, err)
	}
	_, err := a.Append(context.Background(), record(t, `{"_sheet":"Tab","x":1}`))
	require.Error(t, err)

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Len(t, a.locks, 2)
	assert.Contains(t, a.locks, "Sheet1")
	assert.Contains(t, a.locks, "Tab")
}

func TestAppendStopsOnBackendError(t *testing.T) {
	tests := []struct {
		name      string
		failOn    string
		wantCalls []string
		wantRows  int
	}{
		{
			name:      "header read fails",
			failOn:    "read",
			wantCalls: []string{"read:Sheet1"},
			wantRows:  1,
		},
		{
			name:      "header write fails",
			failOn:    "header",
			wantCalls: []string{"read:Sheet1", "header:Sheet1"},
			wantRows:  1,
		},
		{
			name:      "append fails after header update",
			failOn:    "append",
			wantCalls: []string{"read:Sheet1", "header:Sheet1", "append:Sheet1"},
			wantRows:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			store.Seed("Sheet1", []any{"Timestamp"})
			store.FailOn = tt.failOn

			_, err := newTestAppender(store).Append(context.Background(), record(t, `{"new":1}`))
			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, store.Calls())
			assert.Len(t, store.Rows("Sheet1"), tt.wantRows)
		})
	}
}

func TestConcurrentAppendsKeepEveryColumn(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Sheet1", []any{"Timestamp"})
	a := newTestAppender(store)

	const writers = 20
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := fmt.Sprintf(`{"field%d":%d}`, i, i)
			_, err := a.Append(context.Background(), record(t, body))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rows := store.Rows("Sheet1")
	require.Len(t, rows, writers+1)
	assert.Len(t, rows[0], writers+1)
	for i := range writers {
		assert.Contains(t, rows[0], fmt.Sprintf("field%d", i))
	}
}

func TestBuildRowOnlyStampsFirstColumn(t *testing.T) {
	rec := record(t, `{"Timestamp":"client"}`)
	row := BuildRow([]string{"id", "Timestamp"}, rec, fixedNow)
	assert.Equal(t, []any{"", "client"}, row)
}
