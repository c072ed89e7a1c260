package storage

// Timestamps are stored as unix milliseconds and event metadata as a JSON
// object in a TEXT column so both dialects share one schema shape. Queries
// use ? placeholders and are rebound for PostgreSQL.
