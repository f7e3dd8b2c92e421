// Package signals derives raw signal values from platform activity records.
// The derived values feed the scoring pipelines in internal/score; they are
// magnitudes on an open scale, not bounded scores.
package signals

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/skillmeter-io/skillmeter/internal/score"
)

// Well-known signal ids produced by Derive.
const (
	SignalCode     = "code"
	SignalArticles = "articles"
	SignalEvents   = "events"
	SignalTags     = "tags"
)

// Contributor is one contributor entry of a repository.
type Contributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
}

// Repo holds the repository stats that feed the code signal. For forks the
// origin fields carry the upstream repository's numbers.
type Repo struct {
	Stars               int           `json:"stars"`
	Contributors        int           `json:"contributors"`
	OriginStars         int           `json:"origin_stars"`
	OriginContributions int           `json:"origin_contributions"`
	ContributorList     []Contributor `json:"contributor_list"`
	// CommitContributors supplements ContributorList with contributors
	// recovered from commit history.
	CommitContributors []Contributor `json:"commit_contributors"`
}

// Activity is one individual's collected platform activity.
type Activity struct {
	Login              string  `json:"login"`
	DailyContributions []int   `json:"daily_contributions"`
	PopularRepos       []Repo  `json:"popular_repos"`
	ArticleLikes       []int   `json:"article_likes"`
	EventCount         float64 `json:"event_count"`
	TagCount           float64 `json:"tag_count"`
}

// Derive turns collected activity into the raw signal set consumed by the
// scoring pipelines.
func Derive(a Activity, logger *slog.Logger) score.SignalSet {
	set := score.SignalSet{}
	set.Add(score.Signal{
		ID:       SignalCode,
		RawValue: ContributionValue(a.DailyContributions)*0.1 + RepoValue(a.PopularRepos, a.Login, logger),
	})
	set.Add(score.Signal{ID: SignalArticles, RawValue: ArticleValue(a.ArticleLikes)})
	set.Add(score.Signal{ID: SignalEvents, RawValue: a.EventCount})
	set.Add(score.Signal{ID: SignalTags, RawValue: a.TagCount})
	return set
}

// ContributionValue sums log1p over a daily contribution series, so a long
// steady cadence counts for more than one burst day.
func ContributionValue(daily []int) float64 {
	total := 0.0
	for _, count := range daily {
		total += math.Log1p(float64(count))
	}
	return total
}

// ArticleValue multiplies log1p of the like counts of the top three articles
// with at least one like. No liked articles means zero.
func ArticleValue(likes []int) float64 {
	if len(likes) == 0 {
		return 0
	}
	sorted := append([]int(nil), likes...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	value := 1.0
	counted := 0
	for _, liked := range sorted {
		if liked <= 0 || counted == 3 {
			break
		}
		value *= math.Log1p(float64(liked))
		counted++
	}
	if counted == 0 {
		return 0
	}
	return value
}

// RepoValue multiplies log(stats+1) over the individual's popular
// repositories. Stats caps (300 contributions, 300 stars) keep one viral
// repository from dominating the signal.
func RepoValue(repos []Repo, login string, logger *slog.Logger) float64 {
	if len(repos) == 0 {
		return 0
	}
	value := 1.0
	for _, repo := range repos {
		value *= math.Log(repoStatsScore(repo, login, logger) + 1)
	}
	return value
}

// repoStatsScore weighs contributor count, own contributions and stars on a
// log scale. For forks the upstream stats compete with the local ones and the
// larger score wins.
func repoStatsScore(repo Repo, login string, logger *slog.Logger) float64 {
	contributions := contributionsFor(repo, login, logger)

	local := statsScore(repo.Contributors, contributions, repo.Stars)

	origin := 0.0
	if repo.OriginContributions > 0 {
		origin = statsScore(repo.Contributors, repo.OriginContributions, repo.OriginStars)
	}
	return math.Max(local, origin)
}

func statsScore(contributors, contributions, stars int) float64 {
	cappedContributions := math.Min(float64(contributions), 300)
	cappedStars := math.Min(float64(stars), 300)

	return math.Log10(float64(contributors)+2) *
		math.Pow(
			math.Pow(math.Log(math.Pow(cappedContributions, 1.2)+10), 1.7)*
				math.Log10(math.Pow(cappedStars/4, 1.3)+2),
			1.2)
}

// contributionsFor finds the individual's contribution count in a repository,
// considering contributors recovered from commit history as well.
func contributionsFor(repo Repo, login string, logger *slog.Logger) int {
	contributors := make([]Contributor, 0, len(repo.ContributorList)+len(repo.CommitContributors))
	contributors = append(contributors, repo.ContributorList...)
	contributors = append(contributors, repo.CommitContributors...)

	for _, c := range contributors {
		if c.Login == "" {
			if logger != nil {
				logger.Warn("contributor entry without login, skipping")
			}
			continue
		}
		if strings.EqualFold(c.Login, login) {
			return c.Contributions
		}
	}
	return 0
}
