package recs

import (
	"sort"

	"fic-recs-bot/internal/domain"
)

const (
	perfectPercentile  = 0.05
	goodPercentile     = 0.15
	fallbackGoodCutoff = 2
)

// Качество случайной выборки.
const (
	QualityBest = "best"
	QualityGood = "good"
	QualityAll  = "all"
)

// BuildHistogram группирует фики по числу совпадений. Учитываются только совпадения больше одного.
func BuildHistogram(data domain.FicData) map[int][]int {
	hist := make(map[int][]int)
	for i, count := range data.MatchCounts {
		if count <= 1 || i >= len(data.Fics) {
			continue
		}
		hist[count] = append(hist[count], data.Fics[i])
	}
	return hist
}

// CutoffsFromHistogram вычисляет пороги «лучших» (верхние 5%) и «хороших» (верхние 15%) фиков.
// Обход останавливается на пороге «хороших»; perfect остаётся 0, если его не нашли до остановки.
func CutoffsFromHistogram(hist map[int][]int) (perfect, good int) {
	keys := make([]int, 0, len(hist))
	count := 0
	for k, fics := range hist {
		keys = append(keys, k)
		count += len(fics)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	perfectRange := int(float64(count) * perfectPercentile)
	goodRange := int(float64(count) * goodPercentile)

	currentFront := 0
	for _, k := range keys {
		currentFront += len(hist[k])
		if perfect == 0 && currentFront > perfectRange {
			perfect = k
		}
		if currentFront > goodRange {
			good = k
			break
		}
	}
	if good == 0 {
		good = fallbackGoodCutoff
	}
	return perfect, good
}

// CutoffForQuality возвращает минимальное число совпадений для качества выборки.
func CutoffForQuality(user *domain.User, quality string) int {
	switch quality {
	case QualityBest:
		if user.PerfectCutoff > 0 {
			return user.PerfectCutoff
		}
		return user.GoodCutoff
	case QualityGood:
		return user.GoodCutoff
	default:
		return 1
	}
}
