// Package tracing follows requests through simulated components. Components
// report the start, the steps and the end of a task through their hooks, and
// tracers attached with CollectTrace turn them into statistics or records.
package tracing

import (
	"log"
	"reflect"

	"github.com/sarchlab/hyperbus/sim/hooking"
	"github.com/sarchlab/hyperbus/sim/modeling"
	"github.com/sarchlab/hyperbus/sim/naming"
)

// NamedHookable is a named element that tasks can be reported on.
type NamedHookable interface {
	naming.Named
	hooking.Hookable
	InvokeHook(hooking.HookCtx)
}

// Hook positions of task reports. The hook item is a Task.
var (
	HookPosTaskStart = &hooking.HookPos{Name: "TaskStart"}
	HookPosTaskStep  = &hooking.HookPos{Name: "TaskStep"}
	HookPosTaskEnd   = &hooking.HookPos{Name: "TaskEnd"}
)

// Task kinds reported for messages.
const (
	KindReqOut = "req_out"
	KindReqIn  = "req_in"
)

func report(domain NamedHookable, pos *hooking.HookPos, task Task) {
	domain.InvokeHook(hooking.HookCtx{Domain: domain, Pos: pos, Item: task})
}

// StartTask reports a new task located at the domain. It does nothing when
// the domain has no hooks.
func StartTask(
	id, parentID string,
	domain NamedHookable,
	kind, what string,
	detail any,
) {
	if domain == nil {
		log.Panic("task domain must not be nil")
	}

	if domain.NumHooks() == 0 {
		return
	}

	task := Task{
		ID:       id,
		ParentID: parentID,
		Kind:     kind,
		What:     what,
		Location: domain.Name(),
		Detail:   detail,
	}
	taskMustBeComplete(task)

	report(domain, HookPosTaskStart, task)
}

func taskMustBeComplete(t Task) {
	switch {
	case t.ID == "":
		log.Panic("task ID must not be empty")
	case t.Kind == "":
		log.Panicf("task %s has no kind", t.ID)
	case t.What == "":
		log.Panicf("task %s has no description", t.ID)
	case t.Location == "":
		log.Panicf("task %s is located at an unnamed domain", t.ID)
	}
}

// AddTaskStep reports that a task reached a milestone.
func AddTaskStep(id string, domain NamedHookable, what string) {
	if domain.NumHooks() == 0 {
		return
	}

	report(domain, HookPosTaskStep,
		Task{ID: id, Steps: []TaskStep{{What: what}}})
}

// EndTask reports the end of a task.
func EndTask(id string, domain NamedHookable) {
	if domain.NumHooks() == 0 {
		return
	}

	report(domain, HookPosTaskEnd, Task{ID: id})
}

// MsgIDAtReceiver is the ID of the task that handles msg at domain.
func MsgIDAtReceiver(msg modeling.Msg, domain NamedHookable) string {
	return msg.Meta().ID + "@" + domain.Name()
}

func msgIDAtSender(msg modeling.Msg) string {
	return msg.Meta().ID + "_" + KindReqOut
}

func msgTypeName(msg modeling.Msg) string {
	return reflect.TypeOf(msg).String()
}

// TraceReqInitiate starts the task of a request at its sender. It ends with
// TraceReqFinalize when the response comes back.
func TraceReqInitiate(
	msg modeling.Msg,
	domain NamedHookable,
	parentID string,
) {
	StartTask(msgIDAtSender(msg), parentID, domain,
		KindReqOut, msgTypeName(msg), msg)
}

// TraceReqReceive starts the task of a request at its receiver. The task is a
// child of the sender task.
func TraceReqReceive(msg modeling.Msg, domain NamedHookable) {
	StartTask(MsgIDAtReceiver(msg, domain), msgIDAtSender(msg), domain,
		KindReqIn, msgTypeName(msg), msg)
}

// TraceReqStep adds a step to the task of a received request.
func TraceReqStep(msg modeling.Msg, domain NamedHookable, what string) {
	AddTaskStep(MsgIDAtReceiver(msg, domain), domain, what)
}

// TraceReqComplete ends the task of a received request.
func TraceReqComplete(msg modeling.Msg, domain NamedHookable) {
	EndTask(MsgIDAtReceiver(msg, domain), domain)
}

// TraceReqFinalize ends the task of a request at its sender.
func TraceReqFinalize(msg modeling.Msg, domain NamedHookable) {
	EndTask(msgIDAtSender(msg), domain)
}
