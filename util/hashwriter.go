package util

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
)

// An HashWriter wraps an io.Writer and also calculates the MD5 hash of the
// bytes written. Uploaded entity lists carry this hash so the server can
// detect a damaged body.
type HashWriter struct {
	io.Writer // our io.MultiWriter
	md5       hash.Hash
}

// NewMD5Writer returns a HashWriter wrapping w.
func NewMD5Writer(w io.Writer) *HashWriter {
	hw := &HashWriter{
		md5: md5.New(),
	}
	hw.Writer = io.MultiWriter(w, hw.md5)
	return hw
}

// NewHashWriterPlain return a HashWriter that does not wrap an output stream.
// It will just compute the checksum of the data written to it.
func NewHashWriterPlain() *HashWriter {
	hw := &HashWriter{
		md5: md5.New(),
	}
	hw.Writer = hw.md5
	return hw
}

// CheckMD5 returns the MD5 hash for this writer, and compares it for equality
// with the goal hash passed in. Returns true if goal matches the MD5 hash,
// false otherwise. If the goal is empty then it is treated as matching, and
// true is returned.
func (hw *HashWriter) CheckMD5(goal []byte) ([]byte, bool) {
	computed := hw.md5.Sum(nil)
	ok := len(goal) == 0 || bytes.Equal(goal, computed)
	return computed, ok
}

// HexMD5 returns the MD5 hash of everything written so far as a lowercase
// hex string.
func (hw *HashWriter) HexMD5() string {
	return hex.EncodeToString(hw.md5.Sum(nil))
}

// VerifyStreamMD5 checksums the given io.Reader and compares the checksum
// against the provided hex encoded md5. An empty goal always matches. The
// reader is not closed when finished.
func VerifyStreamMD5(r io.Reader, goal string) (bool, error) {
	want, err := hex.DecodeString(goal)
	if err != nil {
		return false, err
	}
	hw := NewHashWriterPlain()
	_, err = io.Copy(hw, r)
	_, ok := hw.CheckMD5(want)
	return ok, err
}
