package google

import (
	"strconv"
	"time"
)

// callIDKey is the reserved argument key that carries a caller-assigned tool
// call id through functionCall.args. The API has no field for it on
// outgoing calls, so the id travels inside the arguments and is stripped
// again before anything is exposed to callers. Only this file touches it.
const callIDKey = "__step_call_id"

// attachCallID returns a copy of args with the call id stored under the
// reserved key. args is not modified.
func attachCallID(args map[string]any, callID string) map[string]any {
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	if callID != "" {
		out[callIDKey] = callID
	}
	return out
}

// stripCallID returns a copy of args without the reserved key, and the id it
// carried, if any.
func stripCallID(args map[string]any) (map[string]any, string) {
	out := make(map[string]any, len(args))
	var id string
	for k, v := range args {
		if k == callIDKey {
			if s, ok := v.(string); ok {
				id = s
			}
			continue
		}
		out[k] = v
	}
	return out, id
}

// callIDResolver assigns ids to incoming function calls. One resolver lives
// for exactly one stream; its counter is never shared.
type callIDResolver struct {
	counter int
	now     func() time.Time
}

func newCallIDResolver() *callIDResolver {
	return &callIDResolver{now: time.Now}
}

// resolve returns the call id and the marker-free arguments of fc.
// Precedence: id carried in args, then the server id, then a synthesized
// "<name>_<unixMillis>_<counter>".
func (r *callIDResolver) resolve(fc FunctionCall) (string, map[string]any) {
	args, id := stripCallID(fc.Args)
	if id != "" {
		return id, args
	}
	if fc.ID != "" {
		return fc.ID, args
	}
	r.counter++
	return fc.Name + "_" + strconv.FormatInt(r.now().UnixMilli(), 10) + "_" + strconv.Itoa(r.counter), args
}
