// Package schema decodes catalog wire documents into model types.
//
// Two document shapes exist: the catalog root (a list of category nodes) and
// an article document (one story record). Both are wrapped in a
// {code, message, data} envelope. Decoding is strict about the primary
// language: every mapping the export step consumes must carry it, and its
// absence is reported as a decode failure rather than skipped.
package schema
