// Package pipeline runs a crawl as a sequence of steps over one run report.
//
// A run collects documents from a source, exports the filtered result and
// then, whatever happened before, records the run in the ledger and prints a
// summary. The first group are regular steps and stop at the first failure;
// the second group are finalizers that always run.
package pipeline
