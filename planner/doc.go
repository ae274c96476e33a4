// Package planner defines the records the specialist tools read and write
// (calendar events, study logs and deadlines) together with the Store
// interface that persists them and a few pure aggregations over them.
//
// Two stores ship with the module: MemoryStore for tests and ephemeral
// runs, and planner/sqlite for a durable single-file database.
package planner
