// Package testutil holds small helpers shared by arbor's tests.
//
// Helpers take a *testing.T and fail the test on error, so call sites stay
// free of setup error handling.
package testutil
