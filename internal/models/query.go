package models

import "time"

// MinCleanContextItems is the floor on curated retrieval context items.
// Saving fewer than this many items is rejected.
const MinCleanContextItems = 3

// Query is a user question together with its expansion artifacts and the
// curated retrieval context. The order of CleanRetrievalContext is
// significant (it controls prompt inclusion order) and is never re-sorted
// after creation.
type Query struct {
	ID                    string    `json:"id" db:"id"`
	OriginalQuery         string    `json:"original_query" db:"original_query"`
	ExpandedQueries       []string  `json:"expanded_queries" db:"expanded_queries"`
	HydeAnswer            string    `json:"hyde_answer,omitempty" db:"hyde_answer"`
	Intent                string    `json:"intent,omitempty" db:"intent"`
	Entities              []string  `json:"entities" db:"entities"`
	CleanRetrievalContext []string  `json:"clean_retrieval_context" db:"clean_retrieval_context"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// Result is one recorded language-model response for a query. Results are
// append-only; multiple results per query are retained as history.
type Result struct {
	ID           string    `json:"id" db:"id"`
	QueryID      string    `json:"query_id" db:"query_id"`
	ResponseText string    `json:"response_text" db:"response_text"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
