//go:build windows

package geoipdb

import (
	"errors"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	handleLock sync.Mutex
	handleMap  = map[uintptr]windows.Handle{}
)

func mmap(f *os.File, length int) ([]byte, error) {
	handle, err := windows.CreateFileMapping(
		windows.Handle(f.Fd()),
		nil,
		windows.PAGE_READONLY,
		0,
		uint32(length),
		nil,
	)
	if err != nil {
		return nil, os.NewSyscallError("CreateFileMapping", err)
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_READ, 0, 0, uintptr(length))
	if err != nil {
		_ = windows.CloseHandle(handle)
		return nil, os.NewSyscallError("MapViewOfFile", err)
	}

	handleLock.Lock()
	handleMap[addr] = handle
	handleLock.Unlock()

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length), nil
}

func munmap(b []byte) error {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))

	if err := windows.UnmapViewOfFile(addr); err != nil {
		return os.NewSyscallError("UnmapViewOfFile", err)
	}

	handleLock.Lock()
	defer handleLock.Unlock()
	handle, ok := handleMap[addr]
	if !ok {
		return errors.New("unknown base address")
	}
	delete(handleMap, addr)

	if err := windows.CloseHandle(handle); err != nil {
		return os.NewSyscallError("CloseHandle", err)
	}
	return nil
}
