package snapvault

import (
	"os"
)

func canstat(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func mkdir(dir string, mode os.FileMode) (err error) {
	if _, err = os.Stat(dir); os.IsNotExist(err) {
		err = os.MkdirAll(dir, mode)
		if err != nil {
			return
		}
	}
	return nil
}

// readCapped reads a whole file, refusing to read more than max bytes.
// The size check happens before the read so an oversize file never
// lands in memory; ok is false when the cap was exceeded.
func readCapped(path string, max int64) (buf []byte, ok bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, err
	}
	if info.Size() > max {
		return nil, false, nil
	}
	buf, err = os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	return buf, true, nil
}
