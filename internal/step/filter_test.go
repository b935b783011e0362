package step

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFilterType_Apply(t *testing.T) {
	testCases := []struct {
		name    string
		filter  FilterType
		input   string
		want    string
		wantErr string
	}{
		{name: "trim", filter: FilterType{Kind: FilterTrim}, input: "  42\n", want: "42"},
		{name: "regex whole match", filter: FilterType{Kind: FilterRegex, Pattern: `\d+`}, input: "took 120ms", want: "120"},
		{name: "regex group", filter: FilterType{Kind: FilterRegex, Pattern: `version (\S+)`, Group: 1}, input: "go version go1.24.5 linux", want: "go1.24.5"},
		{name: "regex no match", filter: FilterType{Kind: FilterRegex, Pattern: `\d+`}, input: "none", wantErr: "did not match"},
		{name: "regex missing group", filter: FilterType{Kind: FilterRegex, Pattern: `\d+`, Group: 2}, input: "1", wantErr: "has no group 2"},
		{name: "regex invalid", filter: FilterType{Kind: FilterRegex, Pattern: `(`}, input: "1", wantErr: "invalid filter pattern"},
		{name: "lines", filter: FilterType{Kind: FilterLines, Pattern: "2"}, input: "a\nb\nc\n", want: "a\nb"},
		{name: "lines more than available", filter: FilterType{Kind: FilterLines, Pattern: "10"}, input: "a\nb\n", want: "a\nb"},
		{name: "lines zero", filter: FilterType{Kind: FilterLines, Pattern: "0"}, input: "a\n", want: ""},
		{name: "lines invalid", filter: FilterType{Kind: FilterLines, Pattern: "many"}, input: "a", wantErr: "invalid line count"},
		{name: "lua", filter: FilterType{Kind: FilterLua, Pattern: `return string.upper(output)`}, input: "abc", want: "ABC"},
		{name: "lua number", filter: FilterType{Kind: FilterLua, Pattern: `return #output`}, input: "abc", want: "3"},
		{name: "lua nothing", filter: FilterType{Kind: FilterLua, Pattern: `local x = output`}, input: "abc", wantErr: "returned nothing"},
		{name: "unknown", filter: FilterType{Kind: FilterKind(9)}, input: "abc", wantErr: "unknown filter kind 9"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.filter.Apply(context.Background(), tc.input)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestApplyFilters(t *testing.T) {
	filters := []FilterType{
		{Kind: FilterLines, Pattern: "1"},
		{Kind: FilterRegex, Pattern: `id=(\w+)`, Group: 1},
		{Kind: FilterTrim},
	}

	got, err := ApplyFilters(context.Background(), "id=abc123 ok\nid=zzz\n", filters)
	require.NoError(t, err)
	require.Equal(t, "abc123", got)

	_, err = ApplyFilters(context.Background(), "nothing here", filters)
	require.ErrorContains(t, err, "filter 1 (regex)")

	got, err = ApplyFilters(context.Background(), "unchanged\n", nil)
	require.NoError(t, err)
	require.Equal(t, "unchanged\n", got)
}

func TestParseFilterKind(t *testing.T) {
	k, err := ParseFilterKind("Regex")
	require.NoError(t, err)
	require.Equal(t, FilterRegex, k)

	_, err = ParseFilterKind("sed")
	require.Error(t, err)
}

// Test for: a Lua filter that never returns is stopped by its context.
func TestFilterType_Apply_LuaHonoursContext(t *testing.T) {
	// --- Arrange ---
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	filter := FilterType{Kind: FilterLua, Pattern: "while true do end"}

	// --- Act ---
	start := time.Now()
	_, err := filter.Apply(ctx, "output")

	// --- Assert ---
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second, "the script kept running after the deadline")

	_, err = ApplyFilters(ctx, "output", []FilterType{{Kind: FilterLua, Pattern: "return output"}})
	require.ErrorIs(t, err, context.DeadlineExceeded, "no script starts once the context is done")
}
