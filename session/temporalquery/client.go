// Package temporalquery implements session.Querier and the C7 signal/cancel
// dispatch primitives against a real Temporal cluster, grounded on the
// teacher's use of go.temporal.io/sdk as its durable workflow engine
// (runtime/agent/engine, runtime/agent/interrupt). Sessions whose engine is
// "external-workflow" are represented here as open Temporal workflow
// executions; RunID on a Meta is not modeled (spec.md's SessionMeta has no
// run-id field), so a session-id maps 1:1 to a Temporal WorkflowID.
package temporalquery

import (
	"context"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"github.com/mcp-agent-inspector/inspector/session"
)

// Querier implements session.Querier against a Temporal namespace.
type Querier struct {
	Client    client.Client
	Namespace string
}

// Query lists currently-open workflow executions in Namespace and maps each
// to a session.Meta with Engine set to EngineExternalWorkflow.
func (q *Querier) Query(ctx context.Context) ([]session.Meta, error) {
	var out []session.Meta
	var nextPageToken []byte
	for {
		resp, err := q.Client.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
			Namespace:     q.Namespace,
			PageSize:      100,
			NextPageToken: nextPageToken,
			Query:         "ExecutionStatus = 'Running'",
		})
		if err != nil {
			return nil, err
		}
		for _, ex := range resp.Executions {
			info := ex.GetExecution()
			if info == nil {
				continue
			}
			m := session.Meta{
				ID:        info.GetWorkflowId(),
				Engine:    session.EngineExternalWorkflow,
				Status:    statusFromTemporal(ex.GetStatus()),
				StartedAt: timeFromProto(ex.GetStartTime()),
			}
			if wt := ex.GetType(); wt != nil {
				m.Title = wt.GetName()
			}
			out = append(out, m)
		}
		nextPageToken = resp.GetNextPageToken()
		if len(nextPageToken) == 0 {
			break
		}
	}
	return out, nil
}

func statusFromTemporal(s enums.WorkflowExecutionStatus) session.Status {
	switch s {
	case enums.WORKFLOW_EXECUTION_STATUS_RUNNING, enums.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return session.StatusRunning
	case enums.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return session.StatusCompleted
	case enums.WORKFLOW_EXECUTION_STATUS_FAILED, enums.WORKFLOW_EXECUTION_STATUS_TIMED_OUT, enums.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return session.StatusFailed
	default:
		return session.StatusRunning
	}
}

func timeFromProto(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// Dispatcher sends signal and cancellation requests to a Temporal workflow
// identified by session-id, for the gateway's /signal and /cancel routes
// (grounded on runtime/agent/interrupt's SignalPause/SignalResume/
// SignalProvideClarification names).
type Dispatcher struct {
	Client client.Client
}

// SignalNames mirror runtime/agent/interrupt's workflow signal names.
const (
	SignalPause              = "goaai.runtime.pause"
	SignalResume             = "goaai.runtime.resume"
	SignalProvideHumanAnswer = "goaai.runtime.provide.clarification"
)

// Signal delivers a gateway-level signal name (human_input_answer, pause,
// resume, per spec.md §6's POST /signal/{id} body) to the workflow
// identified by sessionID, translating it to the underlying Temporal
// signal channel name.
func (d *Dispatcher) Signal(ctx context.Context, sessionID, signalName string, payload any) error {
	return d.Client.SignalWorkflow(ctx, sessionID, "", temporalSignalName(signalName), payload)
}

func temporalSignalName(gatewaySignal string) string {
	switch gatewaySignal {
	case "pause":
		return SignalPause
	case "resume":
		return SignalResume
	case "human_input_answer":
		return SignalProvideHumanAnswer
	default:
		return gatewaySignal
	}
}

// Cancel requests cancellation of the workflow identified by sessionID.
func (d *Dispatcher) Cancel(ctx context.Context, sessionID string) error {
	return d.Client.CancelWorkflow(ctx, sessionID, "")
}
