package lifecycle

import (
	"sort"
	"strings"

	"github.com/zoek1/web-1/internal/model"
)

type edge struct {
	from  string
	event string
}

// 传统项目与合作项目共享的流转
var sharedEdges = map[edge]string{
	{model.StateOpen, model.EventAcceptWorker}:          model.StateWorkStarted,
	{model.StateOpen, model.EventCancelBounty}:          model.StateCancelled,
	{model.StateWorkStarted, model.EventSubmitWork}:     model.StateWorkSubmitted,
	{model.StateWorkStarted, model.EventStopWork}:       model.StateOpen,
	{model.StateWorkStarted, model.EventCancelBounty}:   model.StateCancelled,
	{model.StateWorkSubmitted, model.EventCancelBounty}: model.StateCancelled,
}

var transitions = map[string]map[edge]string{
	model.ProjectTypeTraditional: with(sharedEdges, map[edge]string{
		{model.StateWorkSubmitted, model.EventPayoutBounty}: model.StateDone,
	}),
	model.ProjectTypeCooperative: with(sharedEdges, map[edge]string{
		{model.StateWorkSubmitted, model.EventCloseBounty}: model.StateDone,
	}),
	model.ProjectTypeContest: {
		{model.StateOpen, model.EventPayoutBounty}: model.StateDone,
		{model.StateOpen, model.EventCancelBounty}: model.StateCancelled,
	},
}

func with(base, extra map[edge]string) map[edge]string {
	out := make(map[edge]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Next 查找流转，未定义的 (项目类型, 状态, 事件) 返回 false
func Next(projectType, state, event string) (string, bool) {
	table, ok := transitions[projectType]
	if !ok {
		return "", false
	}
	to, ok := table[edge{state, event}]
	return to, ok
}

// Transition 一条状态流转
type Transition struct {
	ProjectType string
	From        string
	Event       string
	To          string
}

// Transitions 按项目类型、状态、事件排序的全部流转
func Transitions() []Transition {
	var out []Transition
	for pt, table := range transitions {
		for e, to := range table {
			out = append(out, Transition{ProjectType: pt, From: e.from, Event: e.event, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		return strings.Join([]string{a.ProjectType, a.From, a.Event}, "/") <
			strings.Join([]string{b.ProjectType, b.From, b.Event}, "/")
	})
	return out
}

// ProjectTypes 支持的项目类型
var ProjectTypes = []string{model.ProjectTypeTraditional, model.ProjectTypeContest, model.ProjectTypeCooperative}

// States 生命周期状态
var States = []string{
	model.StateOpen, model.StateWorkStarted, model.StateWorkSubmitted,
	model.StateDone, model.StateCancelled, model.StateExpired,
}

// EventTypes 事件类型
var EventTypes = []string{
	model.EventAcceptWorker, model.EventCancelBounty, model.EventSubmitWork,
	model.EventStopWork, model.EventExpressInterest, model.EventPayoutBounty,
	model.EventExpireBounty, model.EventExtendExpiration, model.EventCloseBounty,
}

// activityEvents 动态到事件的映射，new_bounty 不产生事件
var activityEvents = map[string]string{
	model.ActivityStartWork:        model.EventAcceptWorker,
	model.ActivityWorkerApproved:   model.EventAcceptWorker,
	model.ActivityWorkerApplied:    model.EventExpressInterest,
	model.ActivityStopWork:         model.EventStopWork,
	model.ActivityWorkSubmitted:    model.EventSubmitWork,
	model.ActivityWorkDone:         model.EventPayoutBounty,
	model.ActivityKilledBounty:     model.EventCancelBounty,
	model.ActivityExtendExpiration: model.EventExtendExpiration,
}

// EventForActivity 动态对应的事件
func EventForActivity(activityType string) (string, bool) {
	if strings.HasPrefix(activityType, "bounty_removed_") {
		return model.EventStopWork, true
	}
	e, ok := activityEvents[activityType]
	return e, ok
}
