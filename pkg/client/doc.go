/*
Package client is the dispatch half of qworker: turn a handler id plus
arguments into a wire request, send it to a chosen worker, and decode
the reply.

	Client.Run(handlerID, args...)
	    -> SelectWorker()        (registry.Client.List, round-robin)
	    -> buildRequest()        (internal/codec.Request)
	    -> roundTrip()           (dial, write, half-close, read-to-EOF)
	    -> decodeReply()         (internal/codec.Reply -> value or *RemoteError)

No retries across workers happen here; a connect or decode failure is
returned to the caller as a plain error, and a handler-side failure
round-trips as a *RemoteError rather than a transport error.
*/
package client
