/*
 * axpbox-sub000 - Emulator root: component registry and wiring.
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

// Package system is the emulator root: it owns every component and hands
// out non-owning references between them. Cross-component links are by
// stable index into this registry, never by back-pointer.
package system

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	config "github.com/lenticularis39/axpbox-sub000/config/configparser"
	"github.com/lenticularis39/axpbox-sub000/internal/ata"
	"github.com/lenticularis39/axpbox-sub000/internal/cpu"
	"github.com/lenticularis39/axpbox-sub000/internal/device"
	"github.com/lenticularis39/axpbox-sub000/internal/media"
	"github.com/lenticularis39/axpbox-sub000/internal/memory"
	"github.com/lenticularis39/axpbox-sub000/internal/pci"
	"github.com/lenticularis39/axpbox-sub000/internal/state"
)

// DiskConfig is one DISKn directive.
type DiskConfig struct {
	Path     string
	CDROM    bool
	ReadOnly bool
}

// Config collects the directives the config file may set.
type Config struct {
	Memory   uint64
	CPUs     int
	CPUHz    uint64
	PalBase  uint64
	ICache   bool
	IRQDelay int
	Disks    [4]DiskConfig
}

// DefaultConfig is the power-on configuration before any directive.
func DefaultConfig() Config {
	return Config{
		Memory:   128 << 20,
		CPUs:     1,
		CPUHz:    500_000_000,
		PalBase:  0x8000,
		ICache:   true,
		IRQDelay: 10,
	}
}

// pending is filled by the config-file directives and consumed by New.
var pending = DefaultConfig()

func init() {
	config.RegisterOption("MEMORY", func(_ uint16, value string, _ []config.Option) error {
		size, err := parseSize(value)
		if err != nil {
			return err
		}
		pending.Memory = size
		return nil
	})
	config.RegisterOption("CPU", func(_ uint16, value string, _ []config.Option) error {
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 4 {
			return device.Fatal("system", device.Configuration, "bad CPU count %q", value)
		}
		pending.CPUs = n
		return nil
	})
	config.RegisterOption("CPUHZ", func(_ uint16, value string, _ []config.Option) error {
		hz, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return device.Fatal("system", device.Configuration, "bad CPUHZ %q", value)
		}
		pending.CPUHz = hz
		return nil
	})
	config.RegisterOption("PALBASE", func(_ uint16, value string, _ []config.Option) error {
		base, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(value), "0X"), 16, 64)
		if err != nil {
			return device.Fatal("system", device.Configuration, "bad PALBASE %q", value)
		}
		pending.PalBase = base
		return nil
	})
	config.RegisterSwitch("NOICACHE", func(_ uint16, _ string, _ []config.Option) error {
		pending.ICache = false
		return nil
	})
	config.RegisterOption("IRQTIMEOUT", func(_ uint16, value string, _ []config.Option) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return device.Fatal("system", device.Configuration, "bad IRQTIMEOUT %q", value)
		}
		pending.IRQDelay = n
		return nil
	})
	// DISKn <port> FILE="image" [CDROM] [READONLY]: the address token is
	// the legacy port base and only documents intent; placement follows
	// the directive index (channel n/2, device n%2).
	for i := 0; i < 4; i++ {
		idx := i
		config.RegisterModel(fmt.Sprintf("DISK%d", i), config.TypeModel,
			func(_ uint16, _ string, opts []config.Option) error {
				var dc DiskConfig
				for _, o := range opts {
					switch strings.ToUpper(o.Name) {
					case "FILE":
						dc.Path = o.EqualOpt
					case "CDROM":
						dc.CDROM = true
					case "READONLY", "RO":
						dc.ReadOnly = true
					default:
						return device.Fatal("system", device.Configuration,
							"DISK%d: unknown option %q", idx, o.Name)
					}
				}
				if dc.Path == "" {
					return device.Fatal("system", device.Configuration,
						"DISK%d needs a FILE= option", idx)
				}
				pending.Disks[idx] = dc
				return nil
			})
	}
}

// PendingConfig returns the configuration accumulated from the loaded
// config file.
func PendingConfig() Config {
	return pending
}

func parseSize(s string) (uint64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	mult := uint64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1 << 10
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		mult = 1 << 20
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "G"):
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, device.Fatal("system", device.Configuration, "bad size %q", s)
	}
	return n * mult, nil
}

// irqRouter delivers controller interrupts to processor 0's external IRQ
// lines with the configured delay heuristic.
type irqRouter struct {
	cpu0  *cpu.Context
	delay int
}

func (r *irqRouter) Assert(channel int) {
	r.cpu0.AssertIRQDelayed(uint(2+channel), r.delay)
}

func (r *irqRouter) Deassert(channel int) {
	r.cpu0.DeassertIRQ(uint(2 + channel))
}

// System owns every component.
type System struct {
	Cfg Config
	Log *slog.Logger

	RAM     *memory.RAM
	CPUs    []*cpu.Context
	Workers []*cpu.Worker
	IDE     *ata.Controller
	IDEFn   *pci.Function
	IOMap   *pci.IOMap
	Disks   []*media.Image

	stopHealth chan struct{}
}

// New builds and wires the emulator from cfg. At most one IDE controller
// exists; the config cannot create a second.
func New(cfg Config, log *slog.Logger) (*System, error) {
	s := &System{Cfg: cfg, Log: log, stopHealth: make(chan struct{})}
	s.RAM = memory.NewRAM(cfg.Memory)

	for i := 0; i < cfg.CPUs; i++ {
		c := cpu.NewContext(i, s.RAM, cfg.CPUHz)
		c.IPR.PalBase = cfg.PalBase
		c.WaitForStart = i != 0
		c.IC.SetEnabled(cfg.ICache)
		s.CPUs = append(s.CPUs, c)
		s.Workers = append(s.Workers, cpu.NewWorker(c, log))
	}

	s.IOMap = &pci.IOMap{}
	router := &irqRouter{cpu0: s.CPUs[0], delay: cfg.IRQDelay}
	s.IDE = ata.NewController(s.RAM, router, log)
	if err := s.IDE.MapLegacy(s.IOMap); err != nil {
		return nil, err
	}
	s.IDEFn = newIDEFunction()

	for i, dc := range cfg.Disks {
		if dc.Path == "" {
			continue
		}
		img, err := media.Open(dc.Path, dc.CDROM, dc.ReadOnly)
		if err != nil {
			return nil, err
		}
		s.Disks = append(s.Disks, img)
		model := fmt.Sprintf("AXPBOX SUB000 %s %d", diskKind(dc.CDROM), i)
		serial := fmt.Sprintf("AXP%05d", i+1)
		s.IDE.RegisterDisk(i/2, i%2, img, model, serial, "V1.0")
	}
	return s, nil
}

func diskKind(cdrom bool) string {
	if cdrom {
		return "CD"
	}
	return "DISK"
}

// newIDEFunction seeds PCI function (0,13,1): ALI M1543C IDE, with
// writable-bit masks for command, BARs and the interrupt line.
func newIDEFunction() *pci.Function {
	var data, mask [64]uint32
	data[0] = 0x522910b9  // device/vendor
	data[2] = 0x0101fac1  // class / revision
	data[4] = 0x000001f1  // BAR0: primary command block
	data[5] = 0x000003f5  // BAR1: primary control block
	data[6] = 0x00000171  // BAR2: secondary command block
	data[7] = 0x00000375  // BAR3: secondary control block
	data[8] = 0x0000f001  // BAR4: busmaster
	mask[1] = 0x00000105  // command register: I/O enable, busmaster enable
	mask[4] = 0xfffffff8 | 1
	mask[5] = 0xfffffffc | 1
	mask[6] = 0xfffffff8 | 1
	mask[7] = 0xfffffffc | 1
	mask[8] = 0xfffffff0 | 1
	mask[15] = 0x000000ff // interrupt line
	return pci.NewFunction(0, 13, 1, data, mask)
}

// Start launches every worker and the driver's health check.
func (s *System) Start() {
	for _, w := range s.Workers {
		go w.Run()
	}
	s.IDE.StartWorkers()
	go s.healthCheck()
}

// ReleaseSecondaries lets the waiting secondary processors run.
func (s *System) ReleaseSecondaries() {
	for i, w := range s.Workers {
		if i != 0 {
			w.Release()
		}
	}
}

// Stop performs the cooperative shutdown: flag, wake, join.
func (s *System) Stop() {
	close(s.stopHealth)
	for _, w := range s.Workers {
		w.Stop()
	}
	s.IDE.StopWorkers()
	for _, d := range s.Disks {
		d.Close()
	}
}

// healthCheck is the driver's periodic probe for dead workers.
func (s *System) healthCheck() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-s.stopHealth:
			return
		case <-t.C:
			if err := s.IDE.CheckState(); err != nil {
				s.Log.Error("system: fatal", "err", err)
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			for _, w := range s.Workers {
				if dead, err := w.Dead(); dead {
					s.Log.Error("system: fatal", "cpu", w.Ctx.ID, "err", err)
					fmt.Fprintf(os.Stderr, "cpu %d worker died\n", w.Ctx.ID)
					os.Exit(1)
				}
			}
		}
	}
}

// SaveState writes the component sections in a fixed order: CPUs, the
// controller, the PCI configuration arrays. The disks' SCSI sub-state is
// not written.
func (s *System) SaveState(w io.Writer) error {
	for _, c := range s.CPUs {
		if err := c.SaveState(w); err != nil {
			return err
		}
	}
	if err := s.IDE.SaveState(w); err != nil {
		return err
	}
	data, mask := s.IDEFn.Raw()
	pciImage := struct {
		Data [64]uint32
		Mask [64]uint32
	}{data, mask}
	if err := state.WriteSection(w, state.PCIMagic1, state.PCIMagic2, &pciImage); err != nil {
		return err
	}
	return nil
}

// RestoreState reads the sections back in the same order, refusing a
// file whose framing disagrees.
func (s *System) RestoreState(r io.Reader) error {
	for _, c := range s.CPUs {
		if err := c.RestoreState(r); err != nil {
			return err
		}
	}
	if err := s.IDE.RestoreState(r); err != nil {
		return err
	}
	var pciImage struct {
		Data [64]uint32
		Mask [64]uint32
	}
	if err := state.ReadSection(r, state.PCIMagic1, state.PCIMagic2, &pciImage); err != nil {
		return err
	}
	s.IDEFn.SetRaw(pciImage.Data, pciImage.Mask)
	return nil
}
