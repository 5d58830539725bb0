package retrieval

import "fmt"

// UpstreamError reports a failed call to an external collaborator (embedding
// service, reranker, or language model). It carries enough detail for the
// caller to retry manually; the engine itself never retries.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
