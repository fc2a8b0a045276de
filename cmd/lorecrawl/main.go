// Package main provides the entry point for the lorecrawl CLI.
//
// lorecrawl walks the DNF Universe story catalog, caches every article
// document locally and exports the collection as one Markdown or text file.
//
// Usage:
//
//	lorecrawl crawl --use-local=false   # fetch over the network
//	lorecrawl crawl                     # rebuild the export from the cache
//	lorecrawl history
//
// See --help for all available options.
package main

// main is the entry point for lorecrawl.
func main() {
	Execute()
}
