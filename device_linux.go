//go:build linux

package btpad

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux input event types. Only key and absolute-axis events are
// interesting; SYN/MSC framing chatter is filtered at this layer.
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03
)

// inputEvent mirrors struct input_event on 64-bit kernels:
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// Device reads raw events from a Linux evdev character device
// (/dev/input/eventN). It implements Source. ReadEvent blocks in the
// kernel until the controller reports something, so the producer loop
// never spins.
type Device struct {
	f    *os.File
	name string

	// Reusable read buffer and reader, reset per event.
	buf []byte
	rdr *bytes.Reader
}

// OpenDevice opens an evdev device node. The kernel-reported device name
// is read best-effort for logging and search.
func OpenDevice(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input device: %w", err)
	}
	d := newDevice(f)
	d.name, _ = deviceName(f) // nonfatal; name stays empty on error
	return d, nil
}

func newDevice(f *os.File) *Device {
	buf := make([]byte, binary.Size(inputEvent{}))
	return &Device{f: f, buf: buf, rdr: bytes.NewReader(buf)}
}

// Name returns the kernel-reported device name (e.g. "Wii U Pro
// Controller"), or "" if it could not be read.
func (d *Device) Name() string { return d.name }

// Path returns the device node path.
func (d *Device) Path() string { return d.f.Name() }

// ReadEvent blocks until the next key or axis event arrives. Framing
// events (EV_SYN and friends) are skipped; ordering of the remaining
// stream is exactly the kernel's.
func (d *Device) ReadEvent() (RawEvent, error) {
	for {
		if _, err := io.ReadFull(d.f, d.buf); err != nil {
			if errors.Is(err, os.ErrClosed) {
				return RawEvent{}, ErrSourceClosed
			}
			return RawEvent{}, fmt.Errorf("read %s: %w", d.f.Name(), err)
		}

		d.rdr.Reset(d.buf)
		var ev inputEvent
		if err := binary.Read(d.rdr, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			continue
		}

		if ev.Type != evKey && ev.Type != evAbs {
			continue
		}
		return RawEvent{Type: ev.Type, Code: ev.Code, Value: ev.Value}, nil
	}
}

// Close closes the device node, unblocking any in-progress ReadEvent.
func (d *Device) Close() error {
	return d.f.Close()
}

// ============================================================================
// Device discovery
// ============================================================================

// ErrDeviceNotFound is returned by FindDevice when no input device matches
// the search term. WaitForDevice retries on it.
var ErrDeviceNotFound = errors.New("btpad: no matching input device")

// findRetryInterval is how long WaitForDevice sleeps between scans.
const findRetryInterval = 3 * time.Second

// FindDevice scans /dev/input/event* for a device whose kernel-reported
// name contains search, case-insensitively. Exactly one match is required:
// with two likely candidates (a pad often registers several event nodes)
// the caller must pass the explicit node path to OpenDevice instead.
func FindDevice(search string) (*Device, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("scan /dev/input: %w", err)
	}
	sort.Strings(paths)

	var matches []*Device
	for _, p := range paths {
		d, err := OpenDevice(p)
		if err != nil {
			// Nodes we cannot open (permissions, raced unplug) are not
			// candidates.
			continue
		}
		if strings.Contains(strings.ToLower(d.Name()), strings.ToLower(search)) {
			matches = append(matches, d)
			continue
		}
		_ = d.Close()
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: search term %q", ErrDeviceNotFound, search)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, d := range matches {
			names[i] = fmt.Sprintf("%s (%s)", d.Path(), d.Name())
			_ = d.Close()
		}
		return nil, fmt.Errorf("found %d devices matching %q, specify the event node explicitly: %s",
			len(matches), search, strings.Join(names, ", "))
	}
}

// WaitForDevice retries FindDevice until a matching device appears or ctx
// is done. A freshly paired pad can take a few seconds to show up as an
// event node, so not-found is retried; any other error (including an
// ambiguous match) is returned immediately.
func WaitForDevice(ctx context.Context, search string, logger *slog.Logger) (*Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		d, err := FindDevice(search)
		if err == nil {
			logger.Info("input device found", "path", d.Path(), "name", d.Name())
			return d, nil
		}
		if !errors.Is(err, ErrDeviceNotFound) {
			return nil, err
		}

		logger.Info("no matching input device yet, retrying",
			"search", search, "retry_in", findRetryInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(findRetryInterval):
		}
	}
}

// ============================================================================
// ioctl plumbing (Linux _IOC macro)
// ============================================================================

const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocRead = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

// evioCGName(len) = _IOC(_IOC_READ, 'E', 0x06, len)
func evioCGName(size uint32) uintptr {
	return ioc(iocRead, uint32('E'), 0x06, size)
}

// deviceName reads the kernel-reported device name via EVIOCGNAME.
func deviceName(f *os.File) (string, error) {
	var buf [256]byte
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(),
		evioCGName(uint32(len(buf))), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", errno
	}
	end := bytes.IndexByte(buf[:], 0)
	if end < 0 {
		end = len(buf)
	}
	return strings.TrimSpace(string(buf[:end])), nil
}
