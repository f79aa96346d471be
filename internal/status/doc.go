// Package status answers "is this channel live right now?" with bounded
// retries.
//
// A Checker keeps no per-channel state between calls. Each Check makes up to
// retries+1 probe attempts, waiting base*2^(k-1) before retry k, and folds
// the outcome into a Result. Exhausted retries produce a failure Result,
// never a panic or a fatal error; callers treat it as "unknown this cycle".
package status
