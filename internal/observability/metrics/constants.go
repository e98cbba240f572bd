// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation label values.
const (
	// OpFetchPage is the legacy header query of one page.
	OpFetchPage = "fetch_page"
	// OpFetchSecondary is the fan-out of the secondary queries of one page.
	OpFetchSecondary = "fetch_secondary"
	// OpResolve covers the reference-data lookups of one page.
	OpResolve = "resolve"
	// OpTransform is the conversion of one row.
	OpTransform = "transform"
	// OpPage is one full page of the migration loop.
	OpPage = "page"
	// OpExistingLookup is the search index resumability lookup.
	OpExistingLookup = "existing_lookup"
	// OpStoredLookup is the document store lookup of already stored ids.
	OpStoredLookup = "stored_lookup"
	// OpLegacyQuery is a single statement against the legacy store.
	OpLegacyQuery = "legacy_query"
	// OpReferenceRequest is one HTTP request of the reference lookups.
	OpReferenceRequest = "reference_request"
)

// Label value constants used for metric labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"

	SinkPersistence = "persistence"
	SinkSearchIndex = "search-index"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms.
	BucketStart10ms = 0.01

	// BucketFactor2 is the common exponential growth factor.
	BucketFactor2 = 2

	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)

// ShutdownTimeout bounds the graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second
