// Package shm opens or creates a file-backed shared memory mapping for
// the FF and IPC backends. The creator uses O_CREAT|O_EXCL; if that
// fails because a peer got there first, this side joins instead,
// without truncating or zeroing what the creator already laid out.
package shm

import (
	"os"

	"golang.org/x/sys/unix"
)

// Role describes which side of the mapping this process ended up as.
type Role int

const (
	RoleCreator Role = iota
	RoleJoiner
)

// Mapping is a shared memory region backed by a named file.
type Mapping struct {
	Bytes []byte
	Role  Role
	path  string
}

// Open creates or joins a shared mapping of exactly size bytes at path.
// The creator sizes the file before mapping it and, if zero is true,
// zeroes it through the mapping; the joiner never truncates or zeroes.
func Open(path string, size int, zero bool) (*Mapping, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0600)
	role := RoleCreator
	if err != nil {
		if err != unix.EEXIST {
			return nil, err
		}
		role = RoleJoiner
		fd, err = unix.Open(path, unix.O_RDWR, 0600)
		if err != nil {
			return nil, err
		}
	}

	if role == RoleCreator {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			unix.Close(fd)
			os.Remove(path)
			return nil, err
		}
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		if role == RoleCreator {
			os.Remove(path)
		}
		return nil, err
	}

	// The fd is no longer needed once mapped; unwind it but keep the
	// mapping (and, for the creator, the backing file) alive.
	if err := unix.Close(fd); err != nil {
		unix.Munmap(data)
		if role == RoleCreator {
			os.Remove(path)
		}
		return nil, err
	}

	if role == RoleCreator && zero {
		for i := range data {
			data[i] = 0
		}
	}

	return &Mapping{Bytes: data, Role: role, path: path}, nil
}

// Close unmaps the region. The creator also removes the backing file.
func (m *Mapping) Close() error {
	err := unix.Munmap(m.Bytes)
	if m.Role == RoleCreator {
		os.Remove(m.path)
	}
	return err
}
