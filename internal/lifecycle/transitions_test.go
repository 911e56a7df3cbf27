package lifecycle

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/zoek1/web-1/internal/model"
)

func TestTransitionTableGolden(t *testing.T) {
	var buf bytes.Buffer
	for _, tr := range Transitions() {
		fmt.Fprintf(&buf, "%s: %s + %s -> %s\n", tr.ProjectType, tr.From, tr.Event, tr.To)
	}
	g := goldie.New(t)
	g.Assert(t, "transitions", buf.Bytes())
}

func TestNextIsExhaustive(t *testing.T) {
	expected := map[string]string{
		"traditional/open/accept_worker":          model.StateWorkStarted,
		"traditional/open/cancel_bounty":          model.StateCancelled,
		"traditional/work_started/submit_work":    model.StateWorkSubmitted,
		"traditional/work_started/stop_work":      model.StateOpen,
		"traditional/work_started/cancel_bounty":  model.StateCancelled,
		"traditional/work_submitted/cancel_bounty": model.StateCancelled,
		"traditional/work_submitted/payout_bounty": model.StateDone,
		"cooperative/open/accept_worker":          model.StateWorkStarted,
		"cooperative/open/cancel_bounty":          model.StateCancelled,
		"cooperative/work_started/submit_work":    model.StateWorkSubmitted,
		"cooperative/work_started/stop_work":      model.StateOpen,
		"cooperative/work_started/cancel_bounty":  model.StateCancelled,
		"cooperative/work_submitted/cancel_bounty": model.StateCancelled,
		"cooperative/work_submitted/close_bounty":  model.StateDone,
		"contest/open/payout_bounty":              model.StateDone,
		"contest/open/cancel_bounty":              model.StateCancelled,
	}

	for _, pt := range ProjectTypes {
		for _, st := range States {
			for _, ev := range EventTypes {
				key := pt + "/" + st + "/" + ev
				to, ok := Next(pt, st, ev)
				want, defined := expected[key]
				assert.Equal(t, defined, ok, key)
				assert.Equal(t, want, to, key)
			}
		}
	}
	assert.Len(t, Transitions(), len(expected))
}

func TestNextUnknownProjectType(t *testing.T) {
	_, ok := Next("bounty_hunt", model.StateOpen, model.EventAcceptWorker)
	assert.False(t, ok)
}

func TestEventForActivity(t *testing.T) {
	ev, ok := EventForActivity(model.ActivityWorkerApplied)
	assert.True(t, ok)
	assert.Equal(t, model.EventExpressInterest, ev)

	ev, ok = EventForActivity(model.ActionBountyRemovedSlashedByStaff)
	assert.True(t, ok)
	assert.Equal(t, model.EventStopWork, ev)

	_, ok = EventForActivity(model.ActivityNewBounty)
	assert.False(t, ok)
}
