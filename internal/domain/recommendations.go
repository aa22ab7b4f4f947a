package domain

import "time"

// FicData хранит параллельные массивы: внешний ID, внутренний ID и число совпадений.
// До ответа сервиса MatchCounts пуст.
type FicData struct {
	Fics        []int
	SourceFics  []int
	MatchCounts []int
}

// Len возвращает количество записей с оценками.
func (d FicData) Len() int {
	return len(d.MatchCounts)
}

// RecommendationList описывает запрос на построение списка рекомендаций и его результат.
type RecommendationList struct {
	Name                 string
	MinimumMatch         int
	MaxUnmatchedPerMatch int
	AlwaysPickAt         int
	IsAutomatic          bool
	UseWeighting         bool
	UseMoodAdjustment    bool
	AssignLikedToSources bool
	IgnoreBreakdowns     bool
	UserFFNID            int
	UserToken            string
	IgnoredFandoms       []int
	FicData              FicData
	// Sources — внешние ID исходных фиков (избранное), их нельзя показывать в выдаче.
	Sources map[int]struct{}
	// SimilarTo не равен нулю для списка похожих фиков.
	SimilarTo int
}

// ScoreByFic возвращает число совпадений по внешнему ID без учёта исходных фиков.
func (l *RecommendationList) ScoreByFic() map[int]int {
	scores := make(map[int]int, len(l.FicData.MatchCounts))
	for i, count := range l.FicData.MatchCounts {
		if i >= len(l.FicData.Fics) {
			break
		}
		id := l.FicData.Fics[i]
		if _, isSource := l.Sources[id]; isSource {
			continue
		}
		scores[id] = count
	}
	return scores
}

// Identity связывает внешний и внутренний идентификаторы фика.
type Identity struct {
	FFNID      int
	InternalID int
}

// Fic — метаданные фика для выдачи.
type Fic struct {
	ID         int
	InternalID int
	Title      string
	Author     string
	AuthorID   int
	Summary    string
	Fandoms    []string
	FandomIDs  []int
	WordCount  int
	Complete   bool
	Published  time.Time
	Updated    time.Time
	MatchCount int
}

// StoryFilter описывает запрос страницы выдачи к сервису фиков.
type StoryFilter struct {
	UserToken        string
	Page             int
	PageSize         int
	Random           bool
	ScoreCutoff      int
	RecsHash         map[int]int
	FandomFilter     []FandomToken
	IgnoredFandoms   []FandomToken
	IgnoredFics      []int
	Wordcount        WordcountFilter
	LikedAuthorsOnly bool
	SortFreshFirst   bool
	StrictFreshSort  bool
	CompleteOnly     bool
	DeadFicDaysRange int
}

// CacheMode управляет использованием кэша страниц избранного.
type CacheMode int

const (
	// CacheUseOnly берёт избранное из кэша и ходит в сеть только при промахе.
	CacheUseOnly CacheMode = iota
	// CacheBypass всегда загружает свежую версию.
	CacheBypass
)

// FavouritesResult — результат загрузки избранного пользователя.
type FavouritesResult struct {
	Links             []string
	HasFavourites     bool
	RequiresFullParse bool
	Errors            []string
}
