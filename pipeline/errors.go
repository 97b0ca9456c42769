package pipeline

import "errors"

var (
	// ErrNoPages indicates the document parsed successfully but contains
	// no pages to process.
	ErrNoPages = errors.New("document has no pages")

	// ErrTrackerRequired, ErrRepositoryRequired and friends guard the
	// stage constructors against missing collaborators.
	ErrTrackerRequired    = errors.New("status tracker is required")
	ErrRepositoryRequired = errors.New("job repository is required")
	ErrDispatcherRequired = errors.New("dispatcher is required")
	ErrFetcherRequired    = errors.New("fetcher is required")
	ErrConverterRequired  = errors.New("converter is required")
	ErrSplitterRequired   = errors.New("splitter is required")
	ErrProviderRequired   = errors.New("ai provider is required")
)
