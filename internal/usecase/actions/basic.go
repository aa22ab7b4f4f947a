package actions

import (
	"context"
	"fmt"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/usecase/commands"
)

type nullAction struct{}

func (nullAction) executeImpl(_ context.Context, _ *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	out.StopChain = true
	if p, ok := cmd.Params.(domain.NullParams); ok && p.Reason != "" {
		out.Text = p.Reason
		return
	}
	out.Empty = true
}

type timeoutAction struct{}

func (timeoutAction) executeImpl(_ context.Context, _ *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.TimeoutParams)
	out.Fail(p.Reason)
}

type noUserFFNAction struct{}

func (noUserFFNAction) executeImpl(_ context.Context, _ *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	out.Fail(fmt.Sprintf("You need to create recommendations first. Use `%srecs YOUR_FFN_ID`.", prefixOf(cmd)))
}

type insufficientPermissionsAction struct{}

func (insufficientPermissionsAction) executeImpl(_ context.Context, _ *Environment, _ domain.Command, out *domain.OutgoingMessage) {
	out.Fail("You need to be an administrator of this server to use this command.")
}

type displayHelpAction struct{}

func (displayHelpAction) executeImpl(_ context.Context, _ *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.HelpParams)
	title, body := commands.RenderHelpPage(p.Page, prefixOf(cmd))
	cmd.User.CurrentHelpPage = p.Page
	out.Embed = &domain.Embed{
		Title:       title,
		Description: body,
		Footer:      fmt.Sprintf("Help page %d of %d", p.Page+1, commands.HelpPageCount()),
	}
	out.Reactions = []string{domain.ReactionPrevious, domain.ReactionNext}
}

type changePrefixAction struct{}

func (changePrefixAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	p, _ := cmd.Params.(domain.PrefixParams)
	if cmd.Server == nil {
		out.Fail("Prefix can only be changed on a server.")
		return
	}
	if err := env.Servers.SetPrefix(ctx, cmd.Server.ID, p.Prefix); err != nil {
		env.Log.Error().Err(err).Str("server", cmd.Server.ID).Msg("actions: не удалось сменить префикс")
		out.Fail(storageText)
		return
	}
	out.Text = fmt.Sprintf("Prefix for this server is now: %s", p.Prefix)
}

type purgeAction struct{}

func (purgeAction) executeImpl(ctx context.Context, env *Environment, cmd domain.Command, out *domain.OutgoingMessage) {
	user := cmd.User
	if err := env.Fics.ClearUserData(ctx, user.Token); err != nil {
		env.Log.Warn().Err(err).Str("user", user.ID).Msg("actions: сервис не очистил данные пользователя")
	}
	if err := env.Users.CompletelyRemoveUser(ctx, user.ID); err != nil {
		env.Log.Error().Err(err).Str("user", user.ID).Msg("actions: не удалось удалить пользователя")
		out.Fail("Could not remove your data right now. Please try again later.")
		return
	}
	if env.Sessions != nil {
		env.Sessions.Remove(user.ID)
	}
	out.Text = "All your data has been removed."
}

func prefixOf(cmd domain.Command) string {
	if cmd.Server == nil || cmd.Server.Prefix == "" {
		return "!"
	}
	return cmd.Server.Prefix
}
