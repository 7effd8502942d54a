//go:build !linux

package status

import (
	"errors"
	"runtime"
)

func diskUsage(string) (usage, error) {
	return usage{}, errors.New("disk usage is only supported on linux")
}

func systemName() string {
	return runtime.GOOS
}
