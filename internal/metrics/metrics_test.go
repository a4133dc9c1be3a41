package metrics

import (
	"testing"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderUpdatesCollectors(t *testing.T) {
	var r Recorder

	before := testutil.ToFloat64(ExchangesTotal.WithLabelValues("timeout"))
	r.ExchangeSettled(domain.OutcomeTimeout, 10*time.Second)
	assert.InDelta(t, before+1, testutil.ToFloat64(ExchangesTotal.WithLabelValues("timeout")), 1e-9)

	dropped := testutil.ToFloat64(SubmitsDropped)
	r.SubmitDropped()
	assert.InDelta(t, dropped+1, testutil.ToFloat64(SubmitsDropped), 1e-9)

	r.SessionsActive(3)
	assert.InDelta(t, 3, testutil.ToFloat64(ActiveSessions), 1e-9)

	pos := testutil.ToFloat64(FeedbackTotal.WithLabelValues("positive"))
	r.FeedbackSent(domain.FeedbackPositive)
	assert.InDelta(t, pos+1, testutil.ToFloat64(FeedbackTotal.WithLabelValues("positive")), 1e-9)
}
