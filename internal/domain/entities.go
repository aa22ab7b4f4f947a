package domain

import (
	"strconv"
	"time"
)

// InvalidID помечает идентификатор, который не удалось разрешить.
const InvalidID = -1

// NoFFNID означает, что пользователь ещё не указал профиль fanfiction.net.
const NoFFNID = "-1"

// MaxFandomFilterSize ограничивает количество фандомов в фильтре: основной и кроссовер.
const MaxFandomFilterSize = 2

// MessageRef указывает на сообщение в чате.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// IsZero сообщает, что ссылка не указывает на сообщение.
func (r MessageRef) IsZero() bool {
	return r.MessageID == ""
}

// Server описывает сервер (гильдию или чат) с собственным префиксом команд.
type Server struct {
	ID        string
	Prefix    string
	CreatedAt time.Time
}

// FandomToken хранит фандом в фильтре вместе с режимом кроссоверов.
type FandomToken struct {
	ID                int
	IncludeCrossovers bool
}

// FandomFilter хранит упорядоченный по времени добавления набор фандомов.
type FandomFilter struct {
	Tokens []FandomToken
}

// Contains сообщает, есть ли фандом в фильтре.
func (f FandomFilter) Contains(id int) bool {
	for _, t := range f.Tokens {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Len возвращает количество фандомов.
func (f FandomFilter) Len() int {
	return len(f.Tokens)
}

// IDs возвращает идентификаторы фандомов в порядке добавления.
func (f FandomFilter) IDs() []int {
	ids := make([]int, 0, len(f.Tokens))
	for _, t := range f.Tokens {
		ids = append(ids, t.ID)
	}
	return ids
}

// Add добавляет фандом; повторное добавление обновляет режим кроссоверов.
func (f *FandomFilter) Add(token FandomToken) {
	for i := range f.Tokens {
		if f.Tokens[i].ID == token.ID {
			f.Tokens[i].IncludeCrossovers = token.IncludeCrossovers
			return
		}
	}
	f.Tokens = append(f.Tokens, token)
}

// AddLimited добавляет фандом, вытесняя самый старый при достижении limit.
// Возвращает вытесненный токен и признак вытеснения.
func (f *FandomFilter) AddLimited(token FandomToken, limit int) (FandomToken, bool) {
	if f.Contains(token.ID) || limit <= 0 || len(f.Tokens) < limit {
		f.Add(token)
		return FandomToken{}, false
	}
	oldest := f.Tokens[0]
	f.Tokens = append(append([]FandomToken(nil), f.Tokens[1:]...), token)
	return oldest, true
}

// Remove убирает фандом из фильтра.
func (f *FandomFilter) Remove(id int) {
	kept := f.Tokens[:0]
	for _, t := range f.Tokens {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	f.Tokens = kept
}

// Reset очищает фильтр.
func (f *FandomFilter) Reset() {
	f.Tokens = nil
}

// WordcountFilter ограничивает объём фиков в словах. Нули означают отсутствие фильтра.
type WordcountFilter struct {
	Min int
	Max int
}

// IsSet сообщает, задан ли фильтр.
func (w WordcountFilter) IsSet() bool {
	return w.Min != 0 || w.Max != 0
}

// FilterFlags объединяет переключаемые фильтры пользователя.
type FilterFlags struct {
	LikedAuthorsOnly bool
	SortFreshFirst   bool
	StrictFreshSort  bool
	CompleteOnly     bool
	HideDead         bool
	DeadFicDaysRange int
}

// DefaultDeadFicDays задаёт порог «мёртвых» фиков по умолчанию.
const DefaultDeadFicDays = 365

// ListParams хранит параметры построения списка, заданные пользователем.
// Нулевые значения означают автоматический подбор.
type ListParams struct {
	MinimumMatch         int
	MaxUnmatchedPerMatch int
	AlwaysPickAt         int
}

// IsAutomatic сообщает, что пользователь не фиксировал параметры.
func (p ListParams) IsAutomatic() bool {
	return p.MinimumMatch == 0 && p.MaxUnmatchedPerMatch == 0
}

// User описывает сессию пользователя бота.
type User struct {
	ID     string
	Name   string
	FFNID  string
	Token  string
	Banned bool

	CurrentPage     int
	CurrentHelpPage int
	LastUsedRoll    string
	PerfectCutoff   int
	GoodCutoff      int
	SimilarFicsID   int
	LastPageType    CommandType
	LastPageMessage MessageRef

	FandomFilter   FandomFilter
	IgnoredFandoms FandomFilter
	IgnoredFics    map[int]struct{}
	Wordcount      WordcountFilter
	Filters        FilterFlags
	List           ListParams

	LastEasyQuery time.Time
	LastRecsQuery time.Time

	// ActiveSet заполняется после успешного построения рекомендаций и живёт только в памяти.
	ActiveSet *RecommendationList
	// PositionToID связывает позиции на текущей странице с идентификаторами фиков.
	PositionToID map[int]int
}

// NewUser создаёт сессию с настройками по умолчанию.
func NewUser(id, name, token string) *User {
	return &User{
		ID:           id,
		Name:         name,
		FFNID:        NoFFNID,
		Token:        token,
		LastPageType: CommandDisplayPage,
		IgnoredFics:  make(map[int]struct{}),
		PositionToID: make(map[int]int),
		Filters:      FilterFlags{DeadFicDaysRange: DefaultDeadFicDays},
	}
}

// HasFFNID сообщает, привязан ли профиль fanfiction.net.
func (u *User) HasFFNID() bool {
	return u.FFNID != "" && u.FFNID != NoFFNID
}

// HasActiveSet сообщает, построен ли список рекомендаций в текущем процессе.
func (u *User) HasActiveSet() bool {
	return u.ActiveSet != nil && len(u.ActiveSet.FicData.MatchCounts) > 0
}

// SecsSinceLastEasyQuery возвращает число секунд с последней принятой команды.
func (u *User) SecsSinceLastEasyQuery(now time.Time) int {
	return secondsSince(u.LastEasyQuery, now)
}

// SecsSinceLastRecsQuery возвращает число секунд с последнего построения рекомендаций.
func (u *User) SecsSinceLastRecsQuery(now time.Time) int {
	return secondsSince(u.LastRecsQuery, now)
}

// InitNewEasyQuery отмечает принятую команду.
func (u *User) InitNewEasyQuery(now time.Time) {
	u.LastEasyQuery = now
}

// InitNewRecsQuery отмечает построение рекомендаций.
func (u *User) InitNewRecsQuery(now time.Time) {
	u.LastRecsQuery = now
}

// IgnoresFic сообщает, скрыт ли фик пользователем.
func (u *User) IgnoresFic(id int) bool {
	_, ok := u.IgnoredFics[id]
	return ok
}

// ToggleIgnoredFic переключает скрытие фика и возвращает новое состояние.
func (u *User) ToggleIgnoredFic(id int) bool {
	if u.IgnoredFics == nil {
		u.IgnoredFics = make(map[int]struct{})
	}
	if _, ok := u.IgnoredFics[id]; ok {
		delete(u.IgnoredFics, id)
		return false
	}
	u.IgnoredFics[id] = struct{}{}
	return true
}

// ResetFilters сбрасывает фильтры выдачи, не трогая игнор-листы.
func (u *User) ResetFilters() {
	u.FandomFilter.Reset()
	u.Wordcount = WordcountFilter{}
	u.Filters = FilterFlags{DeadFicDaysRange: DefaultDeadFicDays}
}

const neverQueried = 1 << 30

func secondsSince(t, now time.Time) int {
	if t.IsZero() {
		return neverQueried
	}
	return int(now.Sub(t) / time.Second)
}

// FFNIDNumber возвращает числовой идентификатор профиля или InvalidID.
func (u *User) FFNIDNumber() int {
	id, err := strconv.Atoi(u.FFNID)
	if err != nil {
		return InvalidID
	}
	return id
}
