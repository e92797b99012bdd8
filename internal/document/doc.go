// Package document provides the in-memory text document the REPL bridge
// edits: byte-offset regions, a multi-region selection, line lookup and
// a configurable line ending used for inserted text.
//
// Offsets are byte offsets into the UTF-8 content. A Region's A end is the
// anchor and B the caret, so a selection made right-to-left has A > B.
package document
