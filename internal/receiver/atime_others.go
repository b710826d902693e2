//go:build !linux

package receiver

import (
	"os"
	"time"
)

func accessTime(fi os.FileInfo) time.Time {
	return fi.ModTime()
}
