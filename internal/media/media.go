/*
 * axpbox-sub000 - Disk image backend.
 *
 * Copyright 2026, the axpbox-sub000 authors.
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package media is the image-file backend behind each emulated disk or
// CD-ROM: byte-addressed seek/read/write over an attached image, block
// geometry derivation, and the read-only/CD-ROM flags the controller and
// the SCSI target consult.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

var errNotAttached = errors.New("not attached")

// Backend is the contract the storage controller and SCSI target consume.
// One implementation exists (Image); tests substitute an in-memory fake.
type Backend interface {
	SeekByte(offset uint64) error
	ReadBytes(dest []byte) (int, error)
	WriteBytes(src []byte) (int, error)
	BlockSize() uint64
	ByteSize() uint64
	LBASize() uint64
	CHSSize() uint64
	Cylinders() uint64
	Heads() uint64
	Sectors() uint64
	ReadOnly() bool
	IsCDROM() bool
}

// Image is a file-backed disk or CD-ROM.
type Image struct {
	file      *os.File
	fileName  string
	byteSize  uint64
	blockSize uint64
	pos       uint64
	cylinders uint64
	heads     uint64
	sectors   uint64
	readOnly  bool
	cdrom     bool
}

// Open attaches an image file. CD-ROM images use 2048-byte blocks and are
// always read-only; disks use 512-byte blocks. The file is locked with an
// advisory flock so two emulator instances never share one image.
func Open(fileName string, cdrom bool, readOnly bool) (*Image, error) {
	img := &Image{
		fileName:  fileName,
		blockSize: 512,
		cdrom:     cdrom,
		readOnly:  readOnly || cdrom,
	}
	if cdrom {
		img.blockSize = 2048
	}

	flags := os.O_RDWR
	if img.readOnly {
		flags = os.O_RDONLY
	}
	file, err := os.OpenFile(fileName, flags, 0o644)
	if err != nil {
		return nil, err
	}
	if err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		return nil, fmt.Errorf("media: %s already in use: %w", fileName, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	img.file = file
	img.byteSize = uint64(info.Size())
	img.cylinders, img.heads, img.sectors = deriveGeometry(img.byteSize / img.blockSize)
	return img, nil
}

// Close releases the image and its lock.
func (img *Image) Close() error {
	if img.file == nil {
		return errNotAttached
	}
	err := img.file.Close()
	img.file = nil
	return err
}

// FileName reports the attached image path.
func (img *Image) FileName() string {
	return img.fileName
}

// SeekByte positions the image cursor at an absolute byte offset.
func (img *Image) SeekByte(offset uint64) error {
	if img.file == nil {
		return errNotAttached
	}
	if offset > img.byteSize {
		return fmt.Errorf("media: seek past end: %#x > %#x", offset, img.byteSize)
	}
	if _, err := img.file.Seek(int64(offset), io.SeekStart); err != nil {
		return err
	}
	img.pos = offset
	return nil
}

// ReadBytes fills dest from the current position and advances it.
func (img *Image) ReadBytes(dest []byte) (int, error) {
	if img.file == nil {
		return 0, errNotAttached
	}
	n, err := io.ReadFull(img.file, dest)
	img.pos += uint64(n)
	return n, err
}

// WriteBytes stores src at the current position and advances it.
func (img *Image) WriteBytes(src []byte) (int, error) {
	if img.file == nil {
		return 0, errNotAttached
	}
	if img.readOnly {
		return 0, fmt.Errorf("media: %s is read-only", img.fileName)
	}
	n, err := img.file.Write(src)
	img.pos += uint64(n)
	return n, err
}

func (img *Image) BlockSize() uint64 { return img.blockSize }
func (img *Image) ByteSize() uint64  { return img.byteSize }
func (img *Image) LBASize() uint64   { return img.byteSize / img.blockSize }
func (img *Image) CHSSize() uint64   { return img.cylinders * img.heads * img.sectors }
func (img *Image) Cylinders() uint64 { return img.cylinders }
func (img *Image) Heads() uint64     { return img.heads }
func (img *Image) Sectors() uint64   { return img.sectors }
func (img *Image) ReadOnly() bool    { return img.readOnly }
func (img *Image) IsCDROM() bool     { return img.cdrom }

// deriveGeometry picks a (cylinders, heads, sectors) triple for an
// LBA-sized image. Large images get the classic 16-head 63-sector layout
// with the cylinder count rounded up to cover every block; images smaller
// than one such cylinder shrink heads then sectors, smallest heads first,
// to minimize unused tail sectors. Cylinders never exceed 65535.
func deriveGeometry(blocks uint64) (cyl, heads, secs uint64) {
	heads, secs = 16, 63
	if blocks >= heads*secs {
		cyl = (blocks + heads*secs - 1) / (heads * secs)
		if cyl > 65535 {
			cyl = 65535
		}
		return cyl, heads, secs
	}
	bestWaste := ^uint64(0)
	cyl, heads, secs = 1, 1, 1
	for h := uint64(1); h <= 16; h++ {
		for s := uint64(1); s <= 63; s++ {
			used := h * s
			if used < blocks {
				continue
			}
			if waste := used - blocks; waste < bestWaste {
				bestWaste = waste
				heads, secs = h, s
			}
		}
	}
	return 1, heads, secs
}
