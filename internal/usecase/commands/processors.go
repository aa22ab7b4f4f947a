package commands

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/usecase/recs"
)

const (
	maxDeadDays     = 36500
	maxPrefixLength = 5
)

var profileURLRe = regexp.MustCompile(`fanfiction\.net/u/(\d+)`)

// DefaultProcessors возвращает все построители в порядке проверки.
func DefaultProcessors() []Processor {
	return []Processor{
		processor{name: "recs", words: []string{"recs"}, build: buildRecs},
		processor{name: "next", words: []string{"next"}, build: requiresActiveSet(buildNextPage)},
		processor{name: "prev", words: []string{"prev"}, build: requiresActiveSet(buildPreviousPage)},
		processor{name: "page", words: []string{"page"}, build: requiresActiveSet(buildPageChange)},
		processor{name: "fandom", words: []string{"fandom"}, build: requiresActiveSet(buildSetFandom)},
		processor{name: "xfandom", words: []string{"xfandom"}, build: requiresActiveSet(buildIgnoreFandom)},
		processor{name: "nfic", words: []string{"nfic"}, build: requiresActiveSet(buildIgnoreFic)},
		processor{name: "words", words: []string{"words"}, build: requiresActiveSet(buildWordcount)},
		processor{name: "liked", words: []string{"liked"}, build: requiresActiveSet(buildLikedAuthors)},
		processor{name: "fresh", words: []string{"fresh"}, build: requiresActiveSet(buildFresh)},
		processor{name: "complete", words: []string{"complete"}, build: requiresActiveSet(buildComplete)},
		processor{name: "dead", words: []string{"dead"}, build: requiresActiveSet(buildHideDead)},
		processor{name: "resetfilters", words: []string{"resetfilters", "reset"}, build: requiresActiveSet(buildResetFilters)},
		processor{name: "roll", words: []string{"roll"}, build: requiresActiveSet(buildRoll)},
		processor{name: "similar", words: []string{"similar"}, build: buildSimilarFics},
		processor{name: "help", words: []string{"help"}, build: buildHelp},
		processor{name: "prefix", words: []string{"prefix"}, build: buildChangePrefix},
		processor{name: "purge", words: []string{"purge"}, build: buildPurge},
	}
}

func cooldownSeconds(d time.Duration) int {
	return int(d / time.Second)
}

func buildRecs(in Input) Output {
	b := &chainBuilder{}
	if !in.Role.BypassesRecsCooldown() {
		cooldown := cooldownSeconds(in.RecsCooldown)
		if secs := in.User.SecsSinceLastRecsQuery(in.Now); secs < cooldown {
			remaining := cooldown - secs
			b.chain.StopExecution = true
			b.push(domain.CommandTimeoutActive, domain.TimeoutParams{
				RemainingSeconds: remaining,
				Reason:           fmt.Sprintf("Recommendations can only be regenerated once on %d seconds. Please wait %d more seconds.", cooldown, remaining),
			})
			return b.output()
		}
	}

	a := parseArgs(in.Args)
	raw := a.first()
	if raw == "" {
		if !in.User.HasFFNID() {
			b.fail("Not a valid ID or user url.")
			return b.output()
		}
		b.pushWithText(domain.CommandFillRecommendations, domain.FillParams{FFNID: in.User.FFNID, Refresh: true},
			fmt.Sprintf("Refreshing recommendations for ffn user %s. Please wait, depending on your list size, it might take a while.", in.User.FFNID))
		b.push(domain.CommandDisplayPage, domain.PageParams{Page: in.User.CurrentPage})
		b.chain.HasParseCommand = true
		b.patch = setSimilarFics(0)
		return b.output()
	}

	ffnID, url, ok := parseProfile(raw)
	if !ok {
		b.fail("Not a valid ID or user url.")
		return b.output()
	}
	if a.flags["refresh"] {
		b.push(domain.CommandForceListParams, domain.ListParamsOverride{})
	}
	b.pushWithText(domain.CommandFillRecommendations, domain.FillParams{FFNID: ffnID, URL: url, Refresh: true},
		fmt.Sprintf("Creating recommendations for ffn user %s. Please wait, depending on your list size, it might take a while.", ffnID))
	b.push(domain.CommandDisplayPage, domain.PageParams{Page: 0})
	b.chain.HasParseCommand = true
	b.patch = setSimilarFics(0)
	return b.output()
}

// parseProfile принимает числовой ID или ссылку на профиль fanfiction.net.
func parseProfile(raw string) (ffnID, url string, ok bool) {
	if id, err := strconv.Atoi(raw); err == nil && id > 0 {
		return raw, "", true
	}
	if m := profileURLRe.FindStringSubmatch(raw); m != nil {
		return m[1], raw, true
	}
	return "", "", false
}

func buildNextPage(in Input, b *chainBuilder) {
	b.push(domain.CommandDisplayPage, domain.PageParams{Page: in.User.CurrentPage + 1})
}

func buildPreviousPage(in Input, b *chainBuilder) {
	b.push(domain.CommandDisplayPage, domain.PageParams{Page: max(0, in.User.CurrentPage-1)})
}

func buildPageChange(in Input, b *chainBuilder) {
	page := in.User.CurrentPage
	if raw := parseArgs(in.Args).first(); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			b.fail("Page number must be a non-negative number.")
			return
		}
		page = n
	}
	b.push(domain.CommandDisplayPage, domain.PageParams{Page: page})
}

func buildSetFandom(in Input, b *chainBuilder) {
	a := parseArgs(in.Args)
	name := a.rest()
	reset := a.flags["reset"]
	if name == "" && !reset {
		b.fail(fmt.Sprintf("Fandom name is required, e.g. `%sfandom Harry Potter`.", in.Server.Prefix))
		return
	}
	b.addFilter(domain.CommandSetFandoms, domain.FandomParams{Fandom: name, Crossovers: !a.flags["pure"], Reset: reset})
	b.displayLastPage(in.User)
}

func buildIgnoreFandom(in Input, b *chainBuilder) {
	a := parseArgs(in.Args)
	name := a.rest()
	reset := a.flags["reset"]
	if name == "" && !reset {
		b.fail(fmt.Sprintf("Fandom name is required, e.g. `%sxfandom Naruto`.", in.Server.Prefix))
		return
	}
	b.addFilter(domain.CommandIgnoreFandoms, domain.FandomParams{Fandom: name, Crossovers: a.flags["full"], Reset: reset})
	b.displayLastPage(in.User)
}

func buildIgnoreFic(in Input, b *chainBuilder) {
	a := parseArgs(in.Args)
	params := domain.IgnoreFicsParams{Everything: a.flags["all"]}
	for _, raw := range a.positional {
		n, err := strconv.Atoi(raw)
		if err != nil {
			b.fail("Fic positions must be numbers from the current page.")
			return
		}
		if n > 0 {
			params.Positions = append(params.Positions, n)
		}
	}
	if !params.Everything && len(params.Positions) == 0 {
		b.fail("Specify fic positions from the current page or `>all`.")
		return
	}
	b.addFilter(domain.CommandIgnoreFics, params)
	if !a.flags["silent"] {
		b.displayLastPage(in.User)
	}
}

func buildWordcount(in Input, b *chainBuilder) {
	a := parseArgs(in.Args)
	numbers := make([]int, 0, 2)
	for _, raw := range a.positional[min(1, len(a.positional)):] {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			b.fail("Wordcount must be a non-negative number.")
			return
		}
		numbers = append(numbers, n)
	}

	var params domain.WordcountParams
	switch strings.ToLower(a.first()) {
	case "", "reset":
	case "less":
		if len(numbers) < 1 {
			b.fail("`less` and `more` commands require a desired wordcount after them.")
			return
		}
		params = domain.WordcountParams{Min: 0, Max: numbers[0]}
	case "more":
		if len(numbers) < 1 {
			b.fail("`less` and `more` commands require a desired wordcount after them.")
			return
		}
		params = domain.WordcountParams{Min: numbers[0], Max: math.MaxInt32}
	case "between":
		if len(numbers) < 2 {
			b.fail("`between` command requires both the beginning and the end of the desired wordcount range.")
			return
		}
		lo, hi := numbers[0], numbers[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		params = domain.WordcountParams{Min: lo, Max: hi}
	default:
		b.fail("Unknown wordcount filter, use `less`, `more`, `between` or `reset`.")
		return
	}
	b.addFilter(domain.CommandSetWordcountLimit, params)
	b.push(domain.CommandDisplayPage, domain.PageParams{Page: 0, RefreshPrevious: true})
}

func buildLikedAuthors(in Input, b *chainBuilder) {
	b.addFilter(domain.CommandFilterLikedAuthors, domain.NoParams{})
	b.displayLastPage(in.User)
}

func buildFresh(in Input, b *chainBuilder) {
	b.addFilter(domain.CommandFilterFresh, domain.FreshParams{Strict: parseArgs(in.Args).flags["strict"]})
	b.push(domain.CommandDisplayPage, domain.PageParams{Page: 0, RefreshPrevious: true})
}

func buildComplete(in Input, b *chainBuilder) {
	b.addFilter(domain.CommandFilterComplete, domain.NoParams{})
	b.displayLastPage(in.User)
}

func buildHideDead(in Input, b *chainBuilder) {
	days := 0
	if raw := parseArgs(in.Args).first(); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			b.fail("Number of days must be a number.")
			return
		}
		if n <= 0 {
			b.fail("Number of days must be greater than 0")
			return
		}
		days = min(n, maxDeadDays)
	}
	b.addFilter(domain.CommandFilterOutDead, domain.DeadParams{Days: days})
	b.displayLastPage(in.User)
}

func buildResetFilters(in Input, b *chainBuilder) {
	b.addFilter(domain.CommandResetFilters, domain.NoParams{})
	b.displayLastPage(in.User)
}

func buildRoll(in Input, b *chainBuilder) {
	quality := strings.ToLower(parseArgs(in.Args).first())
	switch quality {
	case recs.QualityBest, recs.QualityGood, recs.QualityAll:
	default:
		quality = recs.QualityAll
	}
	b.push(domain.CommandDisplayRng, domain.RngParams{Quality: quality})
	b.patch = setSimilarFics(0)
}

func buildSimilarFics(in Input) Output {
	b := &chainBuilder{}
	raw := parseArgs(in.Args).first()
	if raw == "" {
		if in.User.SimilarFicsID == 0 {
			b.fail(fmt.Sprintf("Specify a fic ID or url, e.g. `%ssimilar 12345`.", in.Server.Prefix))
			return b.output()
		}
		b.patch = setSimilarFics(0)
		if !in.User.HasFFNID() {
			b.chain.StopExecution = true
			b.push(domain.CommandNoUserFFN, domain.NoParams{})
			return b.output()
		}
		b.pushWithText(domain.CommandFillRecommendations, domain.FillParams{FFNID: in.User.FFNID},
			fmt.Sprintf("Restoring recommendations for user %s into an active set, please wait a bit", in.User.FFNID))
		b.push(domain.CommandDisplayPage, domain.PageParams{Page: 0})
		b.chain.HasParseCommand = true
		return b.output()
	}

	ficID := recs.ParseFicID(raw)
	if ficID == domain.InvalidID {
		b.fail("Not a valid fic ID or url.")
		return b.output()
	}
	b.patch = setSimilarFics(ficID)
	b.pushWithText(domain.CommandCreateSimilarFicsList, domain.SimilarParams{FicID: ficID},
		fmt.Sprintf("Searching for fics similar to %d, please wait a bit", ficID))
	b.push(domain.CommandDisplayPage, domain.PageParams{Page: 0})
	b.chain.HasParseCommand = true
	return b.output()
}

func buildHelp(in Input) Output {
	b := &chainBuilder{}
	topic := strings.TrimPrefix(parseArgs(in.Args).first(), in.Server.Prefix)
	b.push(domain.CommandDisplayHelp, domain.HelpParams{Page: HelpPageForTopic(topic)})
	return b.output()
}

func buildChangePrefix(in Input) Output {
	b := &chainBuilder{}
	if !in.Role.CanChangePrefix() {
		b.chain.StopExecution = true
		b.push(domain.CommandInsufficientPermissions, domain.NoParams{})
		return b.output()
	}
	prefix := parseArgs(in.Args).rest()
	if prefix == "" {
		b.fail("Prefix cannot be empty.")
		return b.output()
	}
	if len([]rune(prefix)) > maxPrefixLength || strings.ContainsAny(prefix, " \t\n") {
		b.fail(fmt.Sprintf("Prefix must be a single word of at most %d characters.", maxPrefixLength))
		return b.output()
	}
	b.pushWithText(domain.CommandChangeServerPrefix, domain.PrefixParams{Prefix: prefix},
		fmt.Sprintf("Changing prefix for this server to: %s", prefix))
	return b.output()
}

func buildPurge(Input) Output {
	b := &chainBuilder{}
	b.push(domain.CommandPurge, domain.NoParams{})
	return b.output()
}
