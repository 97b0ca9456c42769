// Package query implements the stateless retrieval-augmented answer path:
// vector search, best-effort graph augmentation, reference emission and
// streamed generation over a frame-based wire protocol. References are always
// delivered fully before the first generated token, and the protocol is
// uniform whether the provider streams or the response is re-chunked.
package query
