package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveNetworkRequestLabelsStatus(t *testing.T) {
	ObserveNetworkRequest("postgres", "load_user", "bot_users", time.Now(), nil)
	ObserveNetworkRequest("postgres", "load_user", "bot_users", time.Now(), errors.New("boom"))

	if got := testutil.ToFloat64(NetworkRequestTotal.WithLabelValues("postgres", "load_user", "bot_users", "success")); got != 1 {
		t.Fatalf("ожидали 1 успешный запрос, получили %v", got)
	}
	if got := testutil.ToFloat64(NetworkRequestTotal.WithLabelValues("postgres", "load_user", "bot_users", "error")); got != 1 {
		t.Fatalf("ожидали 1 ошибку, получили %v", got)
	}
}

func TestObserveActionCountsAborts(t *testing.T) {
	ObserveAction("fill_recommendations", time.Now(), true)
	ObserveAction("fill_recommendations", time.Now(), false)
	if got := testutil.ToFloat64(ChainsAborted.WithLabelValues("fill_recommendations")); got != 1 {
		t.Fatalf("ожидали одно прерывание, получили %v", got)
	}
}

func TestMustRegister(t *testing.T) {
	MustRegister(prometheus.NewRegistry())
}
