// Package image encodes runtime snapshots as binary image files and keeps
// them in a SQLite snapshot store.
//
// An image is a 4-byte magic, a little-endian uint32 format version and the
// canonical CBOR encoding of a vm.Snapshot. Canonical encoding makes equal
// snapshots produce identical bytes, so Digest can be used to compare them.
package image

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/chazu/garnet/vm"
	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Image Format Constants
// ---------------------------------------------------------------------------

// Magic identifies a garnet image file.
var Magic = [4]byte{'G', 'R', 'N', 'T'}

// Version is the image format version.
// v1: platform, classes, symbols, globals
const Version uint32 = 1

// HeaderSize is magic(4) + version(4).
const HeaderSize = 8

var (
	// ErrBadMagic reports data that is not a garnet image.
	ErrBadMagic = errors.New("image: bad magic")
	// ErrVersion reports an image written by an unsupported format version.
	ErrVersion = errors.New("image: unsupported version")
)

var log = commonlog.GetLogger("garnet.image")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Marshal encodes a snapshot as an image.
func Marshal(snap *vm.Snapshot) ([]byte, error) {
	payload, err := encMode.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("image: marshal snapshot: %w", err)
	}
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(payload)))
	buf.Write(Magic[:])
	binary.Write(buf, binary.LittleEndian, Version)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Unmarshal decodes an image produced by Marshal.
func Unmarshal(data []byte) (*vm.Snapshot, error) {
	if len(data) < HeaderSize || !bytes.Equal(data[:4], Magic[:]) {
		return nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, v)
	}
	var snap vm.Snapshot
	if err := cbor.Unmarshal(data[HeaderSize:], &snap); err != nil {
		return nil, fmt.Errorf("image: unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Digest returns the SHA-256 of the snapshot's canonical encoding.
func Digest(snap *vm.Snapshot) ([32]byte, error) {
	payload, err := encMode.Marshal(snap)
	if err != nil {
		return [32]byte{}, fmt.Errorf("image: marshal snapshot: %w", err)
	}
	return sha256.Sum256(payload), nil
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

// Save writes the VM's current snapshot to path.
func Save(v *vm.VM, path string) error {
	return WriteFile(path, v.Describe())
}

// WriteFile writes snap to path as an image.
func WriteFile(path string, snap *vm.Snapshot) error {
	data, err := Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	log.Infof("wrote image %s (%d classes, %d bytes)", path, len(snap.Classes), len(data))
	return nil
}

// ReadFile reads an image from path.
func ReadFile(path string) (*vm.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: read %s: %w", path, err)
	}
	return Unmarshal(data)
}
