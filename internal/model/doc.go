// Package model defines the data structures shared across lorecrawl.
//
// This package contains the following main types:
//   - CategoryNode: one entry of the catalog tree (category or article leaf)
//   - Article: a fetched story record with its language-keyed texts
//   - Attachments: the attachment groups of an article, in either payload shape
//   - RunReport: the outcome of one crawl-and-export run
//
// The types carry JSON tags matching the catalog wire schema so the schema
// package can decode straight into them.
package model
