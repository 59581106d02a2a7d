package archive

import "os"

// TempFile is an *os.File removed from disk when closed. Backup and restore
// use it to stage payloads between transforms and the network; the stores
// need a seekable body, so staging cannot happen in a plain pipe.
type TempFile struct {
	*os.File
}

func NewTempFile(pattern string) (*TempFile, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, err
	}
	return &TempFile{File: f}, nil
}

// Rewind seeks back to the start so the staged payload can be re-read.
func (t *TempFile) Rewind() error {
	_, err := t.Seek(0, 0)
	return err
}

func (t *TempFile) Close() error {
	err := t.File.Close()
	if rmErr := os.Remove(t.Name()); err == nil {
		err = rmErr
	}
	return err
}
