// Package chromaffi is the safe core of the chroma C library.
//
// A Client owns an embedded engine and a single executor goroutine that runs
// every engine call. Operations take plain Go values, translate them into
// validated engine requests and return either a result or an *Error that
// carries the status code of the C ABI:
//
//	client, err := chromaffi.NewClient(ctx, chromaffi.Settings{})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	coll, err := client.CreateCollection(ctx, chromaffi.CreateCollectionParams{Name: "docs"})
//	if err != nil {
//		return err
//	}
//
//	err = client.Add(ctx, coll, chromaffi.Records{
//		IDs:        []string{"a", "b"},
//		Embeddings: [][]float32{{1, 0, 0}, {0, 1, 0}},
//	})
//
//	rows, err := client.Query(ctx, coll, chromaffi.QueryParams{
//		Embedding: []float32{1, 0, 0},
//		Dimension: 3,
//		NResults:  1,
//		Include:   chromaffi.Include{Distances: true},
//	})
//
// Results are flattened into Rows: parallel slices that are nil when a field
// was not requested or holds no rows. The cgo shim in cmd/libchroma copies
// them into C memory.
//
// # Error codes
//
// ErrorCode reports the Code of any error returned by this package.
// Argument problems are InvalidArgument, rejected input is ValidationError,
// a malformed collection id is InvalidUUID, lookup misses are NotFound and
// everything else is InternalError.
package chromaffi
