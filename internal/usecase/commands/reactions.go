package commands

import (
	"time"

	"fic-recs-bot/internal/domain"
)

// CreateChangeRecommendationsPageCommand строит смену страницы по реакции. Листание назад с нулевой страницы ничего не делает.
func CreateChangeRecommendationsPageCommand(user domain.User, target domain.MessageRef, forward bool) domain.CommandChain {
	page := user.CurrentPage + 1
	if !forward {
		if user.CurrentPage == 0 {
			return domain.CommandChain{}
		}
		page = user.CurrentPage - 1
	}
	b := &chainBuilder{}
	if !b.ensureActiveSet(user) {
		return b.chain
	}
	cmd := domain.NewCommand(domain.CommandDisplayPage, domain.PageParams{Page: page})
	cmd.Target = target
	b.chain.Push(cmd)
	return b.chain
}

// CreateRollCommand повторяет случайную выборку с последним качеством.
func CreateRollCommand(user domain.User, target domain.MessageRef) domain.CommandChain {
	b := &chainBuilder{}
	if !b.ensureActiveSet(user) {
		return b.chain
	}
	cmd := domain.NewCommand(domain.CommandDisplayRng, domain.RngParams{Quality: user.LastUsedRoll})
	cmd.Target = target
	b.chain.Push(cmd)
	return b.chain
}

// CreateChangeHelpPageCommand листает справку по кругу.
func CreateChangeHelpPageCommand(user domain.User, target domain.MessageRef, forward bool) domain.CommandChain {
	count := HelpPageCount()
	page := (user.CurrentHelpPage + 1) % count
	if !forward {
		page = (user.CurrentHelpPage - 1 + count) % count
	}
	cmd := domain.NewCommand(domain.CommandDisplayHelp, domain.HelpParams{Page: page})
	cmd.Target = target
	var chain domain.CommandChain
	chain.Push(cmd)
	return chain
}

// ReactionChain выбирает построитель по виду сообщения и реакции.
func ReactionChain(kind domain.CommandType, emoji string, user domain.User, target domain.MessageRef) domain.CommandChain {
	switch {
	case kind == domain.CommandDisplayPage && (emoji == domain.ReactionNext || emoji == domain.ReactionPrevious):
		return CreateChangeRecommendationsPageCommand(user, target, emoji == domain.ReactionNext)
	case kind == domain.CommandDisplayHelp && (emoji == domain.ReactionNext || emoji == domain.ReactionPrevious):
		return CreateChangeHelpPageCommand(user, target, emoji == domain.ReactionNext)
	case kind == domain.CommandDisplayRng && emoji == domain.ReactionReroll:
		return CreateRollCommand(user, target)
	default:
		return domain.CommandChain{}
	}
}

// ContinuationChain строит вторую фазу построения большого списка.
func ContinuationChain(job domain.ContinuationJob) domain.CommandChain {
	chain := domain.CommandChain{HasParseCommand: true, HasFullParseCommand: true}
	chain.Push(domain.NewCommand(domain.CommandFillRecommendations, domain.FillParams{FFNID: job.FFNID, Refresh: true, FullParse: true}))
	chain.Push(domain.NewCommand(domain.CommandDisplayPage, domain.PageParams{Page: job.Page}))
	return chain
}

// ContinuationJobFor собирает задачу из отложенной цепочки. ok=false, если в цепочке нет построения списка.
func ContinuationJobFor(chain domain.CommandChain, id string, now time.Time) (domain.ContinuationJob, bool) {
	job := domain.ContinuationJob{ID: id, RequestedAt: now}
	found := false
	for _, cmd := range chain.Commands {
		switch p := cmd.Params.(type) {
		case domain.FillParams:
			job.FFNID = p.FFNID
			found = true
			if cmd.User != nil {
				job.UserID = cmd.User.ID
			}
			if cmd.Server != nil {
				job.ServerID = cmd.Server.ID
			}
			job.ChannelID = cmd.Origin.ChannelID
			job.MessageID = cmd.Origin.MessageID
		case domain.PageParams:
			job.Page = p.Page
		}
	}
	return job, found
}

// BindContinuation строит вторую фазу и привязывает её к пользователю и исходному сообщению.
func BindContinuation(job domain.ContinuationJob, user *domain.User, server *domain.Server) domain.CommandChain {
	chain := ContinuationChain(job)
	attach(&chain, user, server, job.Origin())
	return chain
}
