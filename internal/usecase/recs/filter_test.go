package recs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fic-recs-bot/internal/domain"
)

func userWithActiveSet() *domain.User {
	u := domain.NewUser("u", "n", "tok")
	u.FFNID = "77"
	u.ActiveSet = &domain.RecommendationList{
		Sources: map[int]struct{}{1: {}},
		FicData: domain.FicData{Fics: []int{1, 2, 3}, SourceFics: []int{10, 20, 30}, MatchCounts: []int{9, 5, 1}},
	}
	return u
}

func TestStoryFilterForUser(t *testing.T) {
	u := userWithActiveSet()
	u.IgnoredFics[3] = struct{}{}
	u.Filters.HideDead = true
	u.Filters.DeadFicDaysRange = 100
	u.Wordcount = domain.WordcountFilter{Min: 0, Max: 50000}

	f := StoryFilterForUser(u, 2, 0)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, DefaultPageSize, f.PageSize)
	assert.Equal(t, map[int]int{2: 5, 3: 1}, f.RecsHash)
	assert.Equal(t, []int{3}, f.IgnoredFics)
	assert.Equal(t, 100, f.DeadFicDaysRange)
	assert.Equal(t, 50000, f.Wordcount.Max)
	assert.Equal(t, "tok", f.UserToken)
}

func TestRollFilterUsesCutoff(t *testing.T) {
	u := userWithActiveSet()
	u.GoodCutoff = 5
	f := RollFilterForUser(u, QualityGood, 3)
	assert.True(t, f.Random)
	assert.Equal(t, 5, f.ScoreCutoff)
	assert.Equal(t, 3, f.PageSize)
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(0, 10))
	assert.Equal(t, 1, PageCount(10, 10))
	assert.Equal(t, 2, PageCount(11, 10))
}

func TestFormatPageListsFics(t *testing.T) {
	u := userWithActiveSet()
	u.Filters.CompleteOnly = true
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	embed := FormatPage(u, PageView{
		Fics: []domain.Fic{
			{ID: 2, Title: "A_Tale", Author: "someone", Fandoms: []string{"Naruto"}, WordCount: 120000, Complete: true, MatchCount: 5, Updated: now.AddDate(0, 0, -3)},
		},
		Page:       0,
		TotalPages: 3,
		Now:        now,
	})
	assert.Equal(t, "Recommendations for ffn user 77", embed.Title)
	assert.Contains(t, embed.Description, "`ID#1` [A\\_Tale](https://www.fanfiction.net/s/2)")
	assert.Contains(t, embed.Description, "complete only")
	assert.Contains(t, embed.Description, "`120k`")
	assert.Contains(t, embed.Description, "`3 days ago`")
	assert.Equal(t, "Page: 0 of 2", embed.Footer)
}

func TestFormatPageForSimilarFics(t *testing.T) {
	embed := FormatPage(userWithActiveSet(), PageView{SimilarTo: 42})
	assert.Equal(t, "Fics similar to 42", embed.Title)
	assert.Contains(t, embed.Description, "Nothing matches")
}
