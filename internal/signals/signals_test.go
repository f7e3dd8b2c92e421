package signals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContributionValue(t *testing.T) {
	tests := []struct {
		name     string
		daily    []int
		expected float64
	}{
		{
			name:     "empty series",
			daily:    nil,
			expected: 0,
		},
		{
			name:     "zero days contribute nothing",
			daily:    []int{0, 0, 0},
			expected: 0,
		},
		{
			name:     "steady cadence sums logs",
			daily:    []int{1, 1, 1},
			expected: 3 * math.Log1p(1),
		},
		{
			name:     "burst is log compressed",
			daily:    []int{100},
			expected: math.Log1p(100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ContributionValue(tt.daily), 1e-12)
		})
	}
}

func TestContributionValueFavorsCadence(t *testing.T) {
	// 30 days of 5 contributions beat one day of 150.
	steady := ContributionValue([]int{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5})
	burst := ContributionValue([]int{150})
	assert.Greater(t, steady, burst)
}

func TestArticleValue(t *testing.T) {
	tests := []struct {
		name     string
		likes    []int
		expected float64
	}{
		{
			name:     "no articles",
			likes:    nil,
			expected: 0,
		},
		{
			name:     "only unliked articles",
			likes:    []int{0, 0},
			expected: 0,
		},
		{
			name:     "single liked article",
			likes:    []int{10},
			expected: math.Log1p(10),
		},
		{
			name:     "top three liked articles multiply",
			likes:    []int{10, 5, 3, 2},
			expected: math.Log1p(10) * math.Log1p(5) * math.Log1p(3),
		},
		{
			name:     "unliked articles are excluded",
			likes:    []int{10, 0, 5},
			expected: math.Log1p(10) * math.Log1p(5),
		},
		{
			name:     "order does not matter",
			likes:    []int{3, 10, 5, 2},
			expected: math.Log1p(10) * math.Log1p(5) * math.Log1p(3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ArticleValue(tt.likes), 1e-12)
		})
	}
}

func TestRepoValue(t *testing.T) {
	t.Run("no repos", func(t *testing.T) {
		assert.Zero(t, RepoValue(nil, "dev", nil))
	})

	t.Run("starred repo with own contributions scores higher", func(t *testing.T) {
		lurker := []Repo{{
			Stars:        100,
			Contributors: 10,
		}}
		contributor := []Repo{{
			Stars:        100,
			Contributors: 10,
			ContributorList: []Contributor{
				{Login: "dev", Contributions: 50},
			},
		}}

		assert.Greater(t, RepoValue(contributor, "dev", nil), RepoValue(lurker, "dev", nil))
	})

	t.Run("login match is case insensitive", func(t *testing.T) {
		repos := []Repo{{
			Stars:        100,
			Contributors: 10,
			ContributorList: []Contributor{
				{Login: "Dev", Contributions: 50},
			},
		}}
		assert.InDelta(t, RepoValue(repos, "dEv", nil), RepoValue(repos, "Dev", nil), 1e-12)
	})

	t.Run("fork origin competes with local stats", func(t *testing.T) {
		local := []Repo{{
			Stars:        5,
			Contributors: 3,
			ContributorList: []Contributor{
				{Login: "dev", Contributions: 2},
			},
		}}
		forked := []Repo{{
			Stars:        5,
			Contributors: 3,
			ContributorList: []Contributor{
				{Login: "dev", Contributions: 2},
			},
			OriginStars:         250,
			OriginContributions: 40,
		}}

		assert.Greater(t, RepoValue(forked, "dev", nil), RepoValue(local, "dev", nil))
	})

	t.Run("stat caps bound a viral repo", func(t *testing.T) {
		viral := []Repo{{
			Stars:        2000000,
			Contributors: 10,
			ContributorList: []Contributor{
				{Login: "dev", Contributions: 100000},
			},
		}}
		capped := []Repo{{
			Stars:        300,
			Contributors: 10,
			ContributorList: []Contributor{
				{Login: "dev", Contributions: 300},
			},
		}}
		assert.InDelta(t, RepoValue(capped, "dev", nil), RepoValue(viral, "dev", nil), 1e-9)
	})

	t.Run("commit contributors are considered", func(t *testing.T) {
		repos := []Repo{{
			Stars:        100,
			Contributors: 10,
			CommitContributors: []Contributor{
				{Login: "dev", Contributions: 50},
			},
		}}
		none := []Repo{{
			Stars:        100,
			Contributors: 10,
		}}
		assert.Greater(t, RepoValue(repos, "dev", nil), RepoValue(none, "dev", nil))
	})
}

func TestDerive(t *testing.T) {
	activity := Activity{
		Login:              "dev",
		DailyContributions: []int{3, 0, 7},
		PopularRepos: []Repo{{
			Stars:        120,
			Contributors: 8,
			ContributorList: []Contributor{
				{Login: "dev", Contributions: 40},
			},
		}},
		ArticleLikes: []int{12, 4},
		EventCount:   6,
		TagCount:     15,
	}

	set := Derive(activity, nil)
	require.Len(t, set, 4)

	code, ok := set.Get(SignalCode)
	require.True(t, ok)
	want := ContributionValue(activity.DailyContributions)*0.1 +
		RepoValue(activity.PopularRepos, "dev", nil)
	assert.InDelta(t, want, code.RawValue, 1e-12)

	articles, ok := set.Get(SignalArticles)
	require.True(t, ok)
	assert.InDelta(t, math.Log1p(12)*math.Log1p(4), articles.RawValue, 1e-12)

	events, ok := set.Get(SignalEvents)
	require.True(t, ok)
	assert.InDelta(t, 6.0, events.RawValue, 1e-12)

	tags, ok := set.Get(SignalTags)
	require.True(t, ok)
	assert.InDelta(t, 15.0, tags.RawValue, 1e-12)
}
