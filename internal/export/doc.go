// Package export turns a run's collected lists into the final artifacts.
//
// Two files are written under <cache-root>/final: category_names.txt with
// one category name per line, and all_articles.md (or .txt) holding every
// article body. Articles that belong to an excluded category and excluded
// category names are dropped. Names are compared after Unicode NFC
// normalization so that composed and decomposed Hangul match.
//
// The output is a pure function of the inputs; writing twice yields
// byte-identical files.
package export
