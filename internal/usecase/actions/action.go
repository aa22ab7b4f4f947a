package actions

import (
	"context"
	"time"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
)

const (
	unavailableText = "The recommendation server is not available right now. Please try again later."
	storageText     = "Could not save your settings right now. Please try again later."
	noProfileText   = "Could not load your profile, please try again later."
)

// Action исполняет одну команду. Набор действий закрыт: реализации есть только в этом пакете.
type Action interface {
	executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage)
}

// GetAction возвращает действие для вида команды.
func GetAction(t domain.CommandType) Action {
	switch t {
	case domain.CommandTimeoutActive:
		return timeoutAction{}
	case domain.CommandNoUserFFN:
		return noUserFFNAction{}
	case domain.CommandFillRecommendations:
		return fillRecommendationsAction{}
	case domain.CommandDisplayPage:
		return displayPageAction{}
	case domain.CommandDisplayRng:
		return displayRngAction{}
	case domain.CommandDisplayHelp:
		return displayHelpAction{}
	case domain.CommandSetFandoms:
		return setFandomAction{}
	case domain.CommandIgnoreFandoms:
		return ignoreFandomAction{}
	case domain.CommandIgnoreFics:
		return ignoreFicAction{}
	case domain.CommandSetWordcountLimit:
		return wordcountAction{}
	case domain.CommandFilterLikedAuthors:
		return toggleFlagAction{toggle: toggleLikedAuthors}
	case domain.CommandFilterFresh:
		return toggleFlagAction{toggle: toggleFresh}
	case domain.CommandFilterComplete:
		return toggleFlagAction{toggle: toggleComplete}
	case domain.CommandFilterOutDead:
		return toggleFlagAction{toggle: toggleDead}
	case domain.CommandResetFilters:
		return resetFiltersAction{}
	case domain.CommandForceListParams:
		return forceListParamsAction{}
	case domain.CommandCreateSimilarFicsList:
		return similarFicsAction{}
	case domain.CommandChangeServerPrefix:
		return changePrefixAction{}
	case domain.CommandInsufficientPermissions:
		return insufficientPermissionsAction{}
	case domain.CommandPurge:
		return purgeAction{}
	default:
		return nullAction{}
	}
}

// needsUser сообщает, что действию нужна сессия пользователя.
func needsUser(t domain.CommandType) bool {
	switch t {
	case domain.CommandNull, domain.CommandTimeoutActive, domain.CommandInsufficientPermissions, domain.CommandChangeServerPrefix:
		return false
	}
	return true
}

// Execute исполняет команду и всегда возвращает результат: ошибки выражаются через StopChain и текст.
func Execute(ctx context.Context, env *Environment, cmd domain.Command) domain.OutgoingMessage {
	start := time.Now()
	out := domain.OutgoingMessage{
		SourceType: cmd.Type,
		User:       cmd.User,
		Origin:     cmd.Origin,
		Target:     cmd.Target,
	}
	if cmd.User == nil && needsUser(cmd.Type) {
		out.Fail(noProfileText)
		metrics.ObserveAction(cmd.Type.String(), start, true)
		return out
	}
	// Кулдаун построения списка отсчитывается с начала попытки, а не с успеха.
	if p, ok := cmd.Params.(domain.FillParams); ok && p.Refresh && !p.FullParse {
		cmd.User.InitNewRecsQuery(env.now())
	}

	GetAction(cmd.Type).executeImpl(ctx, env, cmd, &out)
	metrics.ObserveAction(cmd.Type.String(), start, out.StopChain)
	return out
}

// persisted сообщает об ошибке записи пользователю и останавливает цепочку.
func persisted(env *Environment, cmd domain.Command, out *domain.OutgoingMessage, err error) bool {
	if err == nil {
		return true
	}
	env.Log.Error().Err(err).Str("command", cmd.Type.String()).Str("user", cmd.User.ID).Msg("actions: не удалось сохранить изменения")
	out.Fail(storageText)
	return false
}
