package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"fic-recs-bot/internal/domain"
)

func TestInboundMessageSkipsBots(t *testing.T) {
	_, ok := inboundMessage(&discordgo.Message{Author: &discordgo.User{ID: "1", Bot: true}, Content: "!recs"}, false)
	if ok {
		t.Fatalf("сообщения ботов не обрабатываются")
	}
	if _, ok := inboundMessage(&discordgo.Message{Content: "!recs"}, false); ok {
		t.Fatalf("сообщение без автора не обрабатывается")
	}
}

func TestInboundMessageMapsFields(t *testing.T) {
	msg, ok := inboundMessage(&discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   "!recs 12345",
		Author:    &discordgo.User{ID: "u1", Username: "reader"},
	}, true)
	if !ok {
		t.Fatalf("ожидали обработку сообщения")
	}
	want := domain.InboundMessage{
		Ref:           domain.MessageRef{ChannelID: "c1", MessageID: "m1"},
		ServerID:      "g1",
		AuthorID:      "u1",
		AuthorName:    "reader",
		AuthorIsAdmin: true,
		Content:       "!recs 12345",
	}
	if msg != want {
		t.Fatalf("неожиданное сообщение: %+v", msg)
	}
}

func TestDirectMessagesGetChannelServer(t *testing.T) {
	r := inboundReaction(&discordgo.MessageReaction{
		UserID:    "u1",
		MessageID: "m1",
		ChannelID: "c9",
		Emoji:     discordgo.Emoji{Name: domain.ReactionNext},
	})
	if r.ServerID != "dm:c9" || r.Emoji != domain.ReactionNext {
		t.Fatalf("неожиданная реакция: %+v", r)
	}
}

func TestToEmbedCarriesFooter(t *testing.T) {
	e := toEmbed(&domain.Embed{Title: "Recs", Description: "body", Footer: "Page: 1 of 3"})
	if e.Footer == nil || e.Footer.Text != "Page: 1 of 3" || e.Title != "Recs" {
		t.Fatalf("неожиданный эмбед: %+v", e)
	}
	if toEmbed(&domain.Embed{Title: "x"}).Footer != nil {
		t.Fatalf("пустая подпись не передаётся")
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	if got := truncate("привет", 3); got != "при" {
		t.Fatalf("неожиданная обрезка: %q", got)
	}
}
