package exclude

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSkipsCommentsAndBlanks(t *testing.T) {
	src := "# a comment\n\n.*libfoo\\.dylib\n   \n@rpath/libbar\\.dylib\n"
	excls, err := parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, excls, 2)
	require.Equal(t, `.*libfoo\.dylib`, excls[0].Source)
}

func TestParseMalformedRegexIsError(t *testing.T) {
	_, err := parse(strings.NewReader("(unclosed\n"))
	require.Error(t, err)
}

func TestMatchIsFullMatchNotPartial(t *testing.T) {
	excls, err := parse(strings.NewReader(`a : @rpath/libmissing\.dylib`))
	require.NoError(t, err)

	matched, pattern, subject := Match(excls, []string{"a"}, "@rpath/libmissing.dylib")
	require.True(t, matched)
	require.Equal(t, `a : @rpath/libmissing\.dylib`, pattern)
	require.Equal(t, "a : @rpath/libmissing.dylib", subject)

	// A prefix-only match must not count: full-match mode requires the
	// whole subject to match, not merely a leading substring.
	matched, _, _ = Match(excls, []string{"a"}, "@rpath/libmissing.dylib.bak")
	require.False(t, matched)
}

func TestMatchNoneMatches(t *testing.T) {
	excls, err := parse(strings.NewReader(`unrelated`))
	require.NoError(t, err)

	matched, pattern, _ := Match(excls, nil, "/opt/x/bin/a")
	require.False(t, matched)
	require.Empty(t, pattern)
}

func TestSubjectJoinsWithColonSeparator(t *testing.T) {
	require.Equal(t, "root : mid : leaf", Subject([]string{"root", "mid"}, "leaf"))
}
