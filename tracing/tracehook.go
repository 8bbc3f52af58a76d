package tracing

import (
	"log"

	"github.com/sarchlab/hyperbus/sim/hooking"
)

// tracerHook forwards the task reports of one domain to a tracer.
type tracerHook struct {
	tracer Tracer
}

func (h *tracerHook) Func(ctx hooking.HookCtx) {
	task, ok := ctx.Item.(Task)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosTaskStart:
		h.tracer.StartTask(task)
	case HookPosTaskStep:
		h.tracer.StepTask(task)
	case HookPosTaskEnd:
		h.tracer.EndTask(task)
	}
}

// CollectTrace attaches a tracer to a domain. A tracer can be attached to
// several domains, but only once to each.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, h := range domain.Hooks() {
		if th, ok := h.(*tracerHook); ok && th.tracer == tracer {
			log.Panicf("%T already traces %s", tracer, domain.Name())
		}
	}

	domain.AcceptHook(&tracerHook{tracer: tracer})
}
