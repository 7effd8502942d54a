//go:build linux

package status

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func diskUsage(path string) (usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return usage{}, fmt.Errorf("failed to stat filesystem %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	used := (st.Blocks - st.Bfree) * bsize
	return newUsage(used, total), nil
}

// systemName is the kernel name and release, e.g. "Linux 6.1.0".
func systemName() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "Unknown"
	}
	return unix.ByteSliceToString(u.Sysname[:]) + " " + unix.ByteSliceToString(u.Release[:])
}
