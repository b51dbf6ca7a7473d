package tagscan

import (
	"bytes"
	"io"
)

// ByteReader is the sole interface every format parser consumes. In this
// package it is implemented by fileByteReader (any io.ReadSeeker plus a
// known size) and bytesByteReader (an in-memory source).
type ByteReader interface {
	io.Reader
	io.Seeker
	Size() int64
}

// fileByteReader adapts any io.ReadSeeker plus a known size to ByteReader.
type fileByteReader struct {
	io.ReadSeeker
	size int64
}

func (f *fileByteReader) Size() int64 { return f.size }

// newByteReaderFromReadSeeker wraps rs, determining size via Seek(0, io.SeekEnd)
// and restoring the original position.
func newByteReaderFromReadSeeker(rs io.ReadSeeker) (ByteReader, error) {
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}

	if _, err := rs.Seek(pos, io.SeekStart); err != nil {
		return nil, err
	}

	return &fileByteReader{ReadSeeker: rs, size: size}, nil
}

// bytesByteReader wraps an in-memory buffer.
type bytesByteReader struct {
	*bytes.Reader
}

func (b *bytesByteReader) Size() int64 { return int64(b.Len()) + b.currentOffset() }

func (b *bytesByteReader) currentOffset() int64 {
	pos, _ := b.Seek(0, io.SeekCurrent)

	return pos
}

// newByteReaderFromBytes wraps buf as a ByteReader.
func newByteReaderFromBytes(buf []byte) ByteReader {
	return &bytesByteReader{Reader: bytes.NewReader(buf)}
}

// readExact reads exactly n bytes from r, returning a short-read error
// wrapped as a structural ParseError by the caller's format name.
func readExact(r ByteReader, n int) ([]byte, error) {
	if n < 0 {
		return nil, io.ErrUnexpectedEOF
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

func tell(r ByteReader) int64 {
	pos, _ := r.Seek(0, io.SeekCurrent)

	return pos
}
