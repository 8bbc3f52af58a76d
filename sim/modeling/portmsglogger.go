package modeling

import (
	"fmt"
	"log"
	"reflect"

	"github.com/sarchlab/hyperbus/sim/hooking"
	"github.com/sarchlab/hyperbus/sim/timing"
)

// PortMsgLogger is a port hook that prints one line per message movement:
// time, port, movement, message type, route, size and ID. Responses also
// name the request they answer.
type PortMsgLogger struct {
	logger *log.Logger
	clock  timing.TimeTeller
}

// NewPortMsgLogger creates a PortMsgLogger that writes into logger.
func NewPortMsgLogger(
	logger *log.Logger,
	clock timing.TimeTeller,
) *PortMsgLogger {
	return &PortMsgLogger{logger: logger, clock: clock}
}

// Func prints the message of the hook context.
func (h *PortMsgLogger) Func(ctx hooking.HookCtx) {
	msg, ok := ctx.Item.(Msg)
	if !ok {
		return
	}

	port, ok := ctx.Domain.(Port)
	if !ok {
		return
	}

	kind := reflect.TypeOf(msg)
	if kind.Kind() == reflect.Pointer {
		kind = kind.Elem()
	}

	meta := msg.Meta()
	line := fmt.Sprintf("%.10f %s %-7s %s %s->%s %dB %s",
		h.clock.Now(), port.Name(), ctx.Pos.Name, kind.Name(),
		meta.Src, meta.Dst, meta.TrafficBytes, meta.ID)

	if rsp, ok := msg.(Rsp); ok {
		line += " rsp-to " + rsp.GetRspTo()
	}

	h.logger.Print(line)
}
