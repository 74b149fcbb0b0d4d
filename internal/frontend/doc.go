// Package frontend is the embedded engine: typed requests in, typed
// responses or typed errors out.
//
// A Frontend owns the system catalog, the segment cache and, when persisted,
// the snapshot store and the lock on the persist directory. Request types are
// built with their New* constructors, which validate every field and fail
// with ErrValidation.
package frontend
