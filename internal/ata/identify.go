/*
 * axpbox-sub000 - IDENTIFY DEVICE block.
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

package ata

// putString stores s into words [start, start+n) in ATA byte order: the
// high byte of each word carries the earlier character, padded with
// spaces.
func putString(data []uint16, start, words int, s string) {
	padded := make([]byte, words*2)
	for i := range padded {
		padded[i] = ' '
	}
	copy(padded, s)
	for i := 0; i < words; i++ {
		data[start+i] = uint16(padded[2*i])<<8 | uint16(padded[2*i+1])
	}
}

// identifyDrive fills the channel buffer with the 256-word identify block
// (field layout per T13/1153D revision 18).
func (c *Controller) identifyDrive(ch *channel, d *drive, packet bool) {
	for i := 0; i < 256; i++ {
		ch.data[i] = 0
	}
	ch.dataPtr = 0
	ch.dataSize = 256

	if packet {
		// 15-14: 10=atapi; 12-8: packet set; 7: removable; 1-0: 12-byte
		// packet
		ch.data[0] = 0x8580
	} else if d.disk.IsCDROM() {
		ch.data[0] = 0x0080 // removable
	} else {
		ch.data[0] = 0x0040 // fixed
	}

	cylinders := d.disk.Cylinders()
	if cylinders > 16383 {
		cylinders = 16383
	}
	ch.data[1] = uint16(cylinders)
	ch.data[3] = uint16(d.disk.Heads())
	ch.data[6] = uint16(d.disk.Sectors())

	putString(ch.data[:], 10, 10, d.serial)
	putString(ch.data[:], 23, 4, d.rev)
	putString(ch.data[:], 27, 20, d.model)

	// read/write multiple: max sectors per burst
	ch.data[47] = 0x8000 | maxMultipleSectors

	// capabilities: LBA + DMA, packet devices also IORDY
	if packet {
		ch.data[49] = 0x0b00
	} else {
		ch.data[49] = 0x0300
	}
	ch.data[50] = 0x4000

	// PIO transfer mode number
	ch.data[51] = 0x0300

	// validity: bit 2 = word 88, bit 1 = 64-70, bit 0 = 54-58
	ch.data[53] = 7

	// current geometry
	ch.data[54] = uint16(d.disk.Cylinders())
	ch.data[55] = uint16(d.disk.Heads())
	ch.data[56] = uint16(d.disk.Sectors())
	ch.data[57] = uint16(d.disk.CHSSize())
	ch.data[58] = uint16(d.disk.CHSSize() >> 16)

	// multiple sector setting
	if d.multipleSize != 0 {
		ch.data[59] = 0x0100 | uint16(d.multipleSize)
	}

	// LBA capacity
	ch.data[60] = uint16(d.disk.LBASize())
	ch.data[61] = uint16(d.disk.LBASize() >> 16)

	// multiword DMA: mode 0 supported, selected mode from SET FEATURES
	ch.data[63] = uint16(ch.dmaMode)<<8 | 0x01

	// advanced PIO modes: mode 4 supported
	ch.data[64] = 0x0002

	// cycle times: mode 0 and PIO4
	ch.data[65] = 480
	ch.data[66] = 480
	ch.data[67] = 120
	ch.data[68] = 120
	if packet {
		ch.data[71] = 120 // packet to bus release
		ch.data[72] = 120 // service to bus release
	}

	ch.data[75] = 0 // no command queueing

	// ATA versions 1-4, ATA/ATAPI-4 T13 1153D revision 17
	ch.data[80] = 0x001e
	ch.data[81] = 0x0017

	// command sets: NOP, plus packet+removable on CD
	if d.disk.IsCDROM() {
		ch.data[82] = 0x4014
		ch.data[85] = 0x4014
	} else {
		ch.data[82] = 0x4000
		ch.data[85] = 0x4000
	}
	ch.data[83] = 0x4000
	ch.data[84] = 0x4000
	ch.data[86] = 0x4000
	ch.data[87] = 0x4000

	// no ultra DMA
	ch.data[88] = 0x0000
}
