package recs

import (
	"fmt"
	"strings"
	"time"

	"fic-recs-bot/internal/domain"
)

const ficURL = "https://www.fanfiction.net/s/%d"

// PageView — всё, что нужно для отрисовки страницы выдачи.
type PageView struct {
	Fics       []domain.Fic
	Page       int
	TotalPages int
	SimilarTo  int
	Now        time.Time
}

// FormatPage формирует embed страницы рекомендаций.
func FormatPage(user *domain.User, view PageView) *domain.Embed {
	title := fmt.Sprintf("Recommendations for ffn user %s", user.FFNID)
	if view.SimilarTo != 0 {
		title = fmt.Sprintf("Fics similar to %d", view.SimilarTo)
	}

	var b strings.Builder
	if filters := describeFilters(user); filters != "" {
		b.WriteString(filters)
		b.WriteString("\n\n")
	}
	if len(view.Fics) == 0 {
		b.WriteString("Nothing matches your current filters on this page.")
	}
	for i, fic := range view.Fics {
		b.WriteString(formatFic(i+1, fic, view.Now))
		b.WriteString("\n")
	}

	return &domain.Embed{
		Title:       title,
		Description: strings.TrimSpace(b.String()),
		Footer:      fmt.Sprintf("Page: %d of %d", view.Page, max(view.TotalPages-1, 0)),
	}
}

// FormatRoll формирует embed случайной выборки.
func FormatRoll(user *domain.User, quality string, fics []domain.Fic, now time.Time) *domain.Embed {
	if quality == "" {
		quality = QualityAll
	}
	var b strings.Builder
	if len(fics) == 0 {
		b.WriteString("Could not find anything for this roll.")
	}
	for i, fic := range fics {
		b.WriteString(formatFic(i+1, fic, now))
		b.WriteString("\n")
	}
	return &domain.Embed{
		Title:       fmt.Sprintf("Rolling from %s recommendations for ffn user %s", quality, user.FFNID),
		Description: strings.TrimSpace(b.String()),
		Footer:      "React with " + domain.ReactionReroll + " to roll again",
	}
}

func formatFic(position int, fic domain.Fic, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "`ID#%d` [%s](%s)", position, escapeMarkdown(fic.Title), fmt.Sprintf(ficURL, fic.ID))
	if fic.Author != "" {
		fmt.Fprintf(&b, " by %s", escapeMarkdown(fic.Author))
	}
	b.WriteString("\n")
	if len(fic.Fandoms) > 0 {
		fmt.Fprintf(&b, "Fandom: `%s`", strings.Join(fic.Fandoms, " & "))
	}
	status := "incomplete"
	if fic.Complete {
		status = "complete"
	}
	fmt.Fprintf(&b, " Length: `%s` Status: `%s` Score: `%d`", humanWords(fic.WordCount), status, fic.MatchCount)
	if !fic.Updated.IsZero() && !now.IsZero() {
		days := int(now.Sub(fic.Updated).Hours() / 24)
		fmt.Fprintf(&b, " Updated: `%d days ago`", days)
	}
	return b.String()
}

func describeFilters(user *domain.User) string {
	var parts []string
	if user.FandomFilter.Len() > 0 {
		parts = append(parts, "fandom filter active")
	}
	if user.IgnoredFandoms.Len() > 0 {
		parts = append(parts, fmt.Sprintf("%d fandoms ignored", user.IgnoredFandoms.Len()))
	}
	if user.Wordcount.IsSet() {
		parts = append(parts, describeWordcount(user.Wordcount))
	}
	if user.Filters.LikedAuthorsOnly {
		parts = append(parts, "liked authors only")
	}
	if user.Filters.SortFreshFirst {
		if user.Filters.StrictFreshSort {
			parts = append(parts, "fresh first (strict)")
		} else {
			parts = append(parts, "fresh first")
		}
	}
	if user.Filters.CompleteOnly {
		parts = append(parts, "complete only")
	}
	if user.Filters.HideDead {
		parts = append(parts, fmt.Sprintf("hiding fics dead for %d days", user.Filters.DeadFicDaysRange))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Active filters: " + strings.Join(parts, ", ")
}

func describeWordcount(w domain.WordcountFilter) string {
	switch {
	case w.Min == 0:
		return fmt.Sprintf("less than %s words", humanWords(w.Max))
	case w.Max == 0 || w.Max == maxWordcount:
		return fmt.Sprintf("more than %s words", humanWords(w.Min))
	default:
		return fmt.Sprintf("between %s and %s words", humanWords(w.Min), humanWords(w.Max))
	}
}

const maxWordcount = 1<<31 - 1

func humanWords(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1000:
		return fmt.Sprintf("%dk", n/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

var markdownEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~", "[", "\\[", "]", "\\]")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
