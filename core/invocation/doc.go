// Package invocation owns the client-side lifecycle of one logical request
// against the cluster: where it is sent, how its asynchronous completion is
// delivered, and whether a failed attempt is retried.
//
// # Architecture
//
// An [Invocation] binds a [Message] to a routing hint ([Binding]) fixed at
// construction. [Invocation.Invoke] assigns a correlation id from the
// injected [Sequence], resolves the binding through the [Router] and
// returns a [Future]. The response dispatcher later calls
// [Invocation.Notify] or [Invocation.NotifyError] for the invocation's
// correlation id.
//
// # Retry decision
//
// NotifyError walks a fixed decision tree:
//
//  1. Client no longer running: terminal, failure wrapped in
//     [ClientNotActiveError].
//  2. Bound to a single connection and the failure is transport class:
//     terminal. Connection affinity cannot be honored elsewhere.
//  3. Deadline (construction time + timeout) exceeded: terminal.
//  4. Retry-safe failure, redo-operation mode, or target disconnected with
//     a retryable message: one retry is scheduled after the retry wait.
//     A rejected scheduling attempt is terminal and surfaces the original
//     failure.
//  5. Anything else: terminal.
//
// The deadline is never extended by retries, bounding end-to-end latency.
//
// # Admission control
//
// A saturated correlation-id budget fails Invoke synchronously with the
// sequence's overload error; it is never queued or retried.
// [Invocation.InvokeUrgent] takes the sequence's renew fast path so control
// traffic is not starved by that budget.
//
// # Completion
//
// The [Future] transitions exactly once. A Notify or NotifyError arriving
// after the future is terminal (a very late reply racing a local timeout)
// is silently dropped.
package invocation
