//go:build linux

package filelist

import (
	"fmt"
	"os"
	"syscall"
)

func hardLinkCount(path string) (int32, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return 0, err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("filelist: no syscall.Stat_t for %s", path)
	}
	return int32(st.Nlink), nil
}
