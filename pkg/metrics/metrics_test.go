package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSolve(t *testing.T) {
	before := testutil.ToFloat64(solvedObjects.WithLabelValues("absent"))
	ObserveSolve(time.Millisecond, 4, 2)
	if got := testutil.ToFloat64(solvedObjects.WithLabelValues("absent")) - before; got != 2 {
		t.Errorf("absent delta = %v, want 2", got)
	}
}

func TestSnapQuery(t *testing.T) {
	before := testutil.ToFloat64(snapQueries.WithLabelValues("point"))
	SnapQuery("point")
	SnapQuery("point")
	if got := testutil.ToFloat64(snapQueries.WithLabelValues("point")) - before; got != 2 {
		t.Errorf("point delta = %v, want 2", got)
	}
}

func TestSessions(t *testing.T) {
	SessionOpened()
	SessionOpened()
	SessionClosed()
	if got := testutil.ToFloat64(sessions); got != 1 {
		t.Errorf("sessions = %v, want 1", got)
	}
	SessionClosed()
}

func TestObserveRebuild(t *testing.T) {
	ObserveRebuild(time.Microsecond, 17)
	if got := testutil.ToFloat64(spatialCells); got != 17 {
		t.Errorf("cells = %v, want 17", got)
	}
}

func TestRejectedEdit(t *testing.T) {
	before := testutil.ToFloat64(rejectedEdits.WithLabelValues("not_movable"))
	RejectedEdit("not_movable")
	if got := testutil.ToFloat64(rejectedEdits.WithLabelValues("not_movable")) - before; got != 1 {
		t.Errorf("not_movable delta = %v, want 1", got)
	}
}
