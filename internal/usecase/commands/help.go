package commands

import "strings"

// HelpPage — страница справки. {prefix} заменяется префиксом сервера.
type HelpPage struct {
	Topics []string
	Title  string
	Body   string
}

var helpPages = []HelpPage{
	{
		Topics: []string{"", "help"},
		Title:  "Fic recommendations bot",
		Body: "`{prefix}recs FFN_ID` to create recommendations from your favourites.\n" +
			"`{prefix}next`, `{prefix}prev`, `{prefix}page N` to navigate.\n" +
			"`{prefix}roll best|good|all` for random picks.\n" +
			"`{prefix}fandom`, `{prefix}xfandom`, `{prefix}nfic` to filter.\n" +
			"`{prefix}help command` for details on a command.",
	},
	{
		Topics: []string{"recs"},
		Title:  "Creating recommendations",
		Body: "`{prefix}recs FFN_ID` or `{prefix}recs https://www.fanfiction.net/u/ID` builds a list from your favourites.\n" +
			"`{prefix}recs` without an ID refreshes your existing list.\n" +
			"`{prefix}recs >refresh FFN_ID` drops saved list parameters and lets the bot pick them again.\n" +
			"Lists can be regenerated once a minute.",
	},
	{
		Topics: []string{"next", "prev", "page"},
		Title:  "Navigation",
		Body: "`{prefix}next` and `{prefix}prev` move between pages, `{prefix}page N` jumps to page N.\n" +
			"You can also react with 👈 and 👉 on the page message.",
	},
	{
		Topics: []string{"fandom", "xfandom"},
		Title:  "Fandom filters",
		Body: "`{prefix}fandom NAME` shows only fics from that fandom; up to two fandoms can be combined for crossovers.\n" +
			"`{prefix}fandom >pure NAME` excludes crossovers. `{prefix}fandom >reset` clears the filter.\n" +
			"`{prefix}xfandom NAME` hides a fandom, `>full` also hides its crossovers, `>reset` clears ignores.\n" +
			"Repeating a fandom removes it.",
	},
	{
		Topics: []string{"nfic"},
		Title:  "Hiding fics",
		Body: "`{prefix}nfic 1 2 3` hides fics by their position on the current page, repeating it unhides them.\n" +
			"`{prefix}nfic >all` hides the whole page. Add `>silent` to skip redisplaying the page.",
	},
	{
		Topics: []string{"roll"},
		Title:  "Random picks",
		Body: "`{prefix}roll best` picks from the top 5% of your matches, `good` from the top 15%, `all` from everything.\n" +
			"React with 🔁 to roll again.",
	},
	{
		Topics: []string{"words", "liked", "fresh", "complete", "dead", "resetfilters", "reset"},
		Title:  "Other filters",
		Body: "`{prefix}words less N`, `more N`, `between A B` limit length, `{prefix}words` alone resets it.\n" +
			"`{prefix}liked` shows only authors you liked, `{prefix}fresh >strict` sorts by updates.\n" +
			"`{prefix}complete` hides incomplete fics, `{prefix}dead DAYS` hides fics not updated for that long.\n" +
			"`{prefix}resetfilters` clears all of the above. Every toggle switches off when repeated.",
	},
	{
		Topics: []string{"similar"},
		Title:  "Similar fics",
		Body: "`{prefix}similar FIC_ID` lists fics liked by the same readers.\n" +
			"`{prefix}similar` alone goes back to your own recommendations.",
	},
	{
		Topics: []string{"prefix", "purge"},
		Title:  "Server and data",
		Body: "`{prefix}prefix NEW` changes the command prefix, server admins only.\n" +
			"`{prefix}purge` deletes everything the bot stores about you.",
	},
}

// HelpPageCount возвращает число страниц справки.
func HelpPageCount() int {
	return len(helpPages)
}

// HelpPageForTopic возвращает страницу справки для команды; неизвестные ведут на общую.
func HelpPageForTopic(topic string) int {
	topic = strings.ToLower(strings.TrimSpace(topic))
	for i, page := range helpPages {
		for _, t := range page.Topics {
			if t == topic {
				return i
			}
		}
	}
	return 0
}

// RenderHelpPage возвращает заголовок и текст страницы с подставленным префиксом.
func RenderHelpPage(page int, prefix string) (title, body string) {
	if page < 0 || page >= len(helpPages) {
		page = 0
	}
	p := helpPages[page]
	return p.Title, strings.ReplaceAll(p.Body, "{prefix}", prefix)
}
