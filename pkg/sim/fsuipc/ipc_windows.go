//go:build windows

package fsuipc

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"trafficviewer/pkg/sim"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procFindWindowExW       = user32.NewProc("FindWindowExW")
	procRegisterWindowMsgW  = user32.NewProc("RegisterWindowMessageW")
	procSendMessageTimeoutW = user32.NewProc("SendMessageTimeoutW")
	procGlobalAddAtomW      = kernel32.NewProc("GlobalAddAtomW")
	procGlobalDeleteAtom    = kernel32.NewProc("GlobalDeleteAtom")
)

const (
	ipcMessageName = "FsasmLib:IPC"
	messageSuccess = 1
	smtoBlock      = 0x0001
	sendTimeoutMS  = 2000
	sendAttempts   = 10
)

// Server window classes, newest first.
var serverWindows = []string{"UIPCMAIN", "FS98MAIN"}

var mappingSeq atomic.Uint32

// NewClient returns a Client bound to the local FSUIPC server.
func NewClient(opts Options) (*Client, error) {
	if err := user32.Load(); err != nil {
		return nil, fmt.Errorf("load user32: %w", err)
	}
	return newClient(&sharedMemory{}, opts), nil
}

// sharedMemory exchanges batches through a named file mapping announced
// to the server window by a registered message.
type sharedMemory struct {
	hwnd    uintptr
	msg     uintptr
	atom    uintptr
	mapping windows.Handle
	view    uintptr
	mem     []byte
}

func (s *sharedMemory) open() error {
	for _, class := range serverWindows {
		name, _ := windows.UTF16PtrFromString(class)
		hwnd, _, _ := procFindWindowExW.Call(0, 0, uintptr(unsafe.Pointer(name)), 0)
		if hwnd != 0 {
			s.hwnd = hwnd
			break
		}
	}
	if s.hwnd == 0 {
		return &sim.LinkError{Code: sim.CodeNoSimConnection}
	}

	msgName, _ := windows.UTF16PtrFromString(ipcMessageName)
	s.msg, _, _ = procRegisterWindowMsgW.Call(uintptr(unsafe.Pointer(msgName)))
	if s.msg == 0 {
		return s.fail(sim.CodeRegisterMessage)
	}

	mapName := fmt.Sprintf("%s:%X:%X", ipcMessageName, windows.GetCurrentProcessId(), mappingSeq.Add(1))
	mapPtr, _ := windows.UTF16PtrFromString(mapName)
	s.atom, _, _ = procGlobalAddAtomW.Call(uintptr(unsafe.Pointer(mapPtr)))
	if s.atom == 0 {
		return s.fail(sim.CodeAtom)
	}

	size := uint32(maxBatchSize + 256)
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, size, mapPtr)
	if err != nil && !errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		return s.fail(sim.CodeMap)
	}
	s.mapping = h

	view, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, 0)
	if err != nil || view == 0 {
		return s.fail(sim.CodeView)
	}
	s.view = view
	// mem aliases the mapped view; close unmaps it and drops mem together.
	s.mem = unsafe.Slice((*byte)(unsafe.Pointer(view)), size)
	return nil
}

func (s *sharedMemory) exchange(req []byte) ([]byte, error) {
	if s.mem == nil {
		return nil, &sim.LinkError{Code: sim.CodeNotOpen}
	}
	copy(s.mem, req)

	var result uintptr
	for attempt := 1; ; attempt++ {
		ok, _, callErr := procSendMessageTimeoutW.Call(
			s.hwnd, s.msg, s.atom, 0, smtoBlock, sendTimeoutMS,
			uintptr(unsafe.Pointer(&result)),
		)
		if ok != 0 {
			break
		}
		if attempt == sendAttempts {
			if errors.Is(callErr, windows.ERROR_TIMEOUT) {
				return nil, &sim.LinkError{Code: sim.CodeTimedOut}
			}
			return nil, &sim.LinkError{Code: sim.CodeSendMessage}
		}
		time.Sleep(100 * time.Millisecond)
	}
	if result != messageSuccess {
		return nil, &sim.LinkError{Code: sim.CodeBadData}
	}

	resp := make([]byte, len(req))
	copy(resp, s.mem)
	return resp, nil
}

func (s *sharedMemory) close() error {
	var errs []error
	if s.view != 0 {
		errs = append(errs, windows.UnmapViewOfFile(s.view))
		s.view = 0
		s.mem = nil
	}
	if s.mapping != 0 {
		errs = append(errs, windows.CloseHandle(s.mapping))
		s.mapping = 0
	}
	if s.atom != 0 {
		procGlobalDeleteAtom.Call(s.atom)
		s.atom = 0
	}
	s.hwnd = 0
	return errors.Join(errs...)
}

func (s *sharedMemory) fail(code uint32) error {
	_ = s.close()
	return &sim.LinkError{Code: code}
}
