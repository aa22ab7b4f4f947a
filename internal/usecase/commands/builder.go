package commands

import (
	"fmt"
	"strings"
	"time"

	"fic-recs-bot/internal/domain"
)

// Input — всё, из чего строится цепочка. User передаётся снимком и не изменяется построителями.
type Input struct {
	User         domain.User
	Server       domain.Server
	Message      domain.InboundMessage
	Args         []string
	Role         domain.Role
	Now          time.Time
	RecsCooldown time.Duration
}

// UserPatch — изменения сессии, которые роутер применяет после построения цепочки.
type UserPatch struct {
	SimilarFicsID *int
}

// Apply применяет изменения к сессии.
func (p UserPatch) Apply(u *domain.User) {
	if p.SimilarFicsID != nil {
		u.SimilarFicsID = *p.SimilarFicsID
	}
}

func setSimilarFics(id int) UserPatch {
	return UserPatch{SimilarFicsID: &id}
}

// Output — результат построителя.
type Output struct {
	Chain domain.CommandChain
	Patch UserPatch
}

// Processor распознаёт команду по слову и строит для неё цепочку.
type Processor interface {
	Name() string
	IsThisCommand(word string) bool
	ProcessInput(in Input) Output
}

type processor struct {
	name  string
	words []string
	build func(in Input) Output
}

func (p processor) Name() string {
	return p.name
}

func (p processor) IsThisCommand(word string) bool {
	word = strings.ToLower(word)
	for _, w := range p.words {
		if w == word {
			return true
		}
	}
	return false
}

func (p processor) ProcessInput(in Input) Output {
	return p.build(in)
}

// chainBuilder накапливает цепочку и помнит, восстанавливает ли текущая операция активный список.
type chainBuilder struct {
	chain             domain.CommandChain
	patch             UserPatch
	restoresActiveSet bool
}

func (b *chainBuilder) push(t domain.CommandType, params domain.CommandParams) {
	b.chain.Push(domain.NewCommand(t, params))
}

func (b *chainBuilder) pushWithText(t domain.CommandType, params domain.CommandParams, text string) {
	cmd := domain.NewCommand(t, params)
	cmd.PreExecutionText = text
	b.chain.Push(cmd)
}

// addFilter ставит фильтр перед восстановлением активного списка, иначе в конец.
func (b *chainBuilder) addFilter(t domain.CommandType, params domain.CommandParams) {
	cmd := domain.NewCommand(t, params)
	if b.restoresActiveSet {
		b.chain.PushFront(cmd)
		b.restoresActiveSet = false
		return
	}
	b.chain.Push(cmd)
}

// fail заменяет цепочку единственной пустой командой с причиной отказа.
func (b *chainBuilder) fail(reason string) {
	b.chain = domain.CommandChain{StopExecution: true}
	b.push(domain.CommandNull, domain.NullParams{Reason: reason})
}

func (b *chainBuilder) output() Output {
	return Output{Chain: b.chain, Patch: b.patch}
}

// ensureActiveSet добавляет восстановление списка, если он не построен в этом процессе.
// Возвращает false, если восстанавливать не из чего.
func (b *chainBuilder) ensureActiveSet(user domain.User) bool {
	if user.HasActiveSet() {
		return true
	}
	if user.SimilarFicsID != 0 {
		b.restoresActiveSet = true
		b.pushWithText(domain.CommandCreateSimilarFicsList, domain.SimilarParams{FicID: user.SimilarFicsID},
			fmt.Sprintf("Restoring fics similar to %d into an active set, please wait a bit", user.SimilarFicsID))
		b.chain.HasParseCommand = true
		return true
	}
	if !user.HasFFNID() {
		b.chain = domain.CommandChain{StopExecution: true}
		b.push(domain.CommandNoUserFFN, domain.NoParams{})
		return false
	}
	b.restoresActiveSet = true
	b.pushWithText(domain.CommandFillRecommendations, domain.FillParams{FFNID: user.FFNID},
		fmt.Sprintf("Restoring recommendations for user %s into an active set, please wait a bit", user.FFNID))
	b.chain.HasParseCommand = true
	return true
}

// displayLastPage повторяет показ последнего вида выдачи после смены фильтра.
func (b *chainBuilder) displayLastPage(user domain.User) {
	if user.LastPageType == domain.CommandDisplayRng {
		b.push(domain.CommandDisplayRng, domain.RngParams{Quality: user.LastUsedRoll})
		return
	}
	b.push(domain.CommandDisplayPage, domain.PageParams{Page: 0, RefreshPrevious: true})
}

// requiresActiveSet оборачивает построитель команд, работающих с активным списком.
func requiresActiveSet(build func(in Input, b *chainBuilder)) func(in Input) Output {
	return func(in Input) Output {
		b := &chainBuilder{}
		if !b.ensureActiveSet(in.User) {
			return b.output()
		}
		build(in, b)
		return b.output()
	}
}

// args разбирает аргументы на флаги вида >flag и позиционные значения.
type args struct {
	flags      map[string]bool
	positional []string
}

func parseArgs(raw []string) args {
	a := args{flags: make(map[string]bool)}
	for _, token := range raw {
		if strings.HasPrefix(token, ">") && len(token) > 1 {
			a.flags[strings.ToLower(token[1:])] = true
			continue
		}
		a.positional = append(a.positional, token)
	}
	return a
}

func (a args) first() string {
	if len(a.positional) == 0 {
		return ""
	}
	return a.positional[0]
}

func (a args) rest() string {
	return strings.TrimSpace(strings.Join(a.positional, " "))
}
