//go:build unix

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var hints = [...]int{
	HintNormal:     unix.MADV_NORMAL,
	HintSequential: unix.MADV_SEQUENTIAL,
	HintRandom:     unix.MADV_RANDOM,
	HintWillNeed:   unix.MADV_WILLNEED,
	HintDontNeed:   unix.MADV_DONTNEED,
}

func sysMapFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
}

func sysMapAnon(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func sysUnmap(data []byte, _ bool) error {
	return unix.Munmap(data)
}

func sysAdvise(data []byte, h Hint) error {
	advice := unix.MADV_NORMAL
	if int(h) >= 0 && int(h) < len(hints) {
		advice = hints[h]
	}
	// EINVAL means the range is not page aligned; the hint is optional.
	if err := unix.Madvise(data, advice); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
