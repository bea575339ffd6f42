//go:build linux

package xpersist

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// This file is Linux-specific: memfd_create (the unlinked-backing-file
// primitive) and the raw MAP_FIXED mmap(2) call below have no portable
// equivalent on other Unix variants. xpersist targets linux/amd64 and
// linux/arm64.

// backingFile creates a unique, unlinked temporary file of exactly n
// bytes and returns its descriptor. It is the substrate both the
// master and working mappings of a Region are laid over.
//
// memfd_create gives us the same "anonymous but fd-addressable" file a
// classic mkstemp+unlink pair would, without the round trip through a
// filesystem path — the modern equivalent of unlinking a temporary
// file right after creating it.
func backingFile(n int) (int, error) {
	fd, err := unix.MemfdCreate(fmt.Sprintf("xpersist-%d", n), unix.MFD_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("xpersist: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(n)); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("xpersist: ftruncate: %w", err)
	}
	return fd, nil
}

// mmapAny maps length bytes of fd at offset, letting the kernel choose
// the address, and returns the mapped slice.
func mmapAny(fd int, offset int64, length int, prot int, flags int) ([]byte, error) {
	b, err := unix.Mmap(fd, offset, length, prot, flags)
	if err != nil {
		return nil, fmt.Errorf("xpersist: mmap: %w", err)
	}
	return b, nil
}

// mmapFixed maps length bytes of fd at offset onto the exact address
// addr, clobbering whatever was mapped there before. golang.org/x/sys/unix
// has no wrapper that accepts an explicit address (its Mmap always
// lets the kernel pick one and tracks the result for Munmap), so this
// calls the mmap(2) syscall directly — the same trick the dual-mapping
// overlay of a globals region needs to overlay an address the caller
// already owns.
func mmapFixed(addr uintptr, fd int, offset int64, length int, prot int, flags int) ([]byte, error) {
	r1, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(length),
		uintptr(prot),
		uintptr(flags|unix.MAP_FIXED),
		uintptr(fd),
		uintptr(offset),
	)
	if errno != 0 {
		return nil, fmt.Errorf("xpersist: mmap(MAP_FIXED) at %#x: %w", addr, errno)
	}
	if r1 != uintptr(addr) {
		// Should not happen with MAP_FIXED, but a silently wrong
		// address would violate every invariant downstream.
		unix.Syscall6(unix.SYS_MUNMAP, r1, uintptr(length), 0, 0, 0, 0)
		return nil, fmt.Errorf("xpersist: mmap(MAP_FIXED) returned %#x, want %#x", r1, addr)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(r1)), length), nil
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
