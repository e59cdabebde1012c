package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLoginDecisionsCounter(t *testing.T) {
	before := testutil.ToFloat64(LoginDecisions.WithLabelValues("blocked", "ip"))
	LoginDecisions.WithLabelValues("blocked", "ip").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(LoginDecisions.WithLabelValues("blocked", "ip")))
}

func TestStoreErrorsCounter(t *testing.T) {
	before := testutil.ToFloat64(StoreErrors.WithLabelValues("insert"))
	StoreErrors.WithLabelValues("insert").Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(StoreErrors.WithLabelValues("insert")))
}
