// Package feed parses identifier/fingerprint feeds.
//
// A feed is UTF-8 text with one record per line:
//
//	IDENTIFIER<TAB>FINGERPRINT
//
// Lines starting with '#' and blank lines are comments. Any other line that
// does not split into exactly two tab-separated fields is malformed: it is
// reported at warn level and skipped, and parsing continues.
//
// A Reader yields records lazily with Next, in file order, and returns io.EOF
// when the feed is exhausted. Every Open starts a fresh pass over the file.
package feed
