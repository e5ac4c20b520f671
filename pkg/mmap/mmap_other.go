//go:build !unix

package mmap

import "os"

func mapFile(f *os.File, size int64) ([]byte, error) {
	return nil, errUnsupported
}

func unmapFile(data []byte) error {
	return nil
}
