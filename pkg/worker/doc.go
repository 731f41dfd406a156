/*
Package worker hosts qworker's TCP worker server.

A Server binds one TCP listener, starts a fixed pool of queue consumers
(pkg/queue), and accepts one request per connection: read until the
client half-closes, decode, dispatch, write one reply, half-close, close.

Registration with the registry (pkg/registry) and discovery
(pkg/discovery) collaborators brackets the accept loop: both happen
before Accept is first called and are undone before the listener closes,
so a worker is never reachable by name before it can actually serve and
is never left registered after it stops.

	Client ---TCP--> Server.handleConn ---> dispatch
	                                           |
	                         +-----------------+------------------+
	                         |                                    |
	                  enqueueOrReject                       runImmediate
	                  (pkg/queue.Queue)                 (pkg/queue.ImmediateRunner)
*/
package worker
