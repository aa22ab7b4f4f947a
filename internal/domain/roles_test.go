package domain

import "testing"

func TestResolveRole(t *testing.T) {
	tests := []struct {
		name    string
		author  string
		owner   string
		isAdmin bool
		want    Role
	}{
		{name: "plain member", author: "1", owner: "9", want: RoleMember},
		{name: "server admin", author: "1", owner: "9", isAdmin: true, want: RoleAdmin},
		{name: "bot owner", author: "9", owner: "9", want: RoleOwner},
		{name: "owner beats admin", author: "9", owner: "9", isAdmin: true, want: RoleOwner},
		{name: "empty owner never matches", author: "", owner: "", want: RoleMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveRole(tt.author, tt.owner, tt.isAdmin); got != tt.want {
				t.Fatalf("ResolveRole(%q, %q, %v) = %v, want %v", tt.author, tt.owner, tt.isAdmin, got, tt.want)
			}
		})
	}
}

func TestRolePermissions(t *testing.T) {
	if RoleMember.CanChangePrefix() {
		t.Fatalf("участник не должен менять префикс")
	}
	if !RoleAdmin.CanChangePrefix() || !RoleOwner.CanChangePrefix() {
		t.Fatalf("админ и владелец должны менять префикс")
	}
	if RoleAdmin.BypassesRecsCooldown() {
		t.Fatalf("кулдаун обходит только владелец")
	}
	if !RoleOwner.BypassesRecsCooldown() {
		t.Fatalf("владелец должен обходить кулдаун")
	}
}

func TestFandomFilterReplacesOldest(t *testing.T) {
	var f FandomFilter
	f.AddLimited(FandomToken{ID: 1}, MaxFandomFilterSize)
	f.AddLimited(FandomToken{ID: 2}, MaxFandomFilterSize)
	replaced, ok := f.AddLimited(FandomToken{ID: 3}, MaxFandomFilterSize)
	if !ok || replaced.ID != 1 {
		t.Fatalf("ожидали вытеснение фандома 1, получили %+v (%v)", replaced, ok)
	}
	if got := f.IDs(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("неожиданный состав фильтра: %v", got)
	}
	if f.Len() > MaxFandomFilterSize {
		t.Fatalf("фильтр превысил предел: %d", f.Len())
	}
}

func TestChainOrdering(t *testing.T) {
	var c CommandChain
	c.Push(NewCommand(CommandFillRecommendations, FillParams{}))
	c.Push(NewCommand(CommandDisplayPage, PageParams{}))
	c.PushFront(NewCommand(CommandSetFandoms, FandomParams{Fandom: "Naruto"}))

	want := []CommandType{CommandSetFandoms, CommandFillRecommendations, CommandDisplayPage}
	for i, typ := range want {
		cmd, ok := c.Pop()
		if !ok || cmd.Type != typ {
			t.Fatalf("позиция %d: ожидали %v, получили %v", i, typ, cmd.Type)
		}
	}
	if _, ok := c.Pop(); ok {
		t.Fatalf("цепочка должна быть пуста")
	}
}

func TestChainAppendMergesFlags(t *testing.T) {
	a := CommandChain{HasParseCommand: true}
	b := CommandChain{StopExecution: true}
	b.Push(NewCommand(CommandNull, NullParams{Reason: "x"}))
	a.Append(b)
	if !a.StopExecution || !a.HasParseCommand || a.Len() != 1 {
		t.Fatalf("неожиданный результат объединения: %+v", a)
	}
}

func singleCommandChain() CommandChain {
	var c CommandChain
	c.Push(NewCommand(CommandDisplayHelp, HelpParams{}))
	return c
}

func TestChainLenOnReturnedValue(t *testing.T) {
	if got := singleCommandChain().Len(); got != 1 {
		t.Fatalf("ожидали одну команду, получили %d", got)
	}
	if got := (CommandChain{}).Len(); got != 0 {
		t.Fatalf("пустая цепочка должна иметь длину 0, получили %d", got)
	}
}
