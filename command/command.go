/*
 * axpbox-sub000 - Interactive console.
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

// Package command is the operator console: examine/deposit over guest
// memory, CPU register dumps, save/restore, and shutdown. Line editing
// and history come from liner.
package command

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"gopkg.in/yaml.v3"

	"github.com/lenticularis39/axpbox-sub000/internal/system"
)

var commandNames = []string{
	"examine", "deposit", "registers", "release", "save", "restore", "help", "quit",
}

// Run drives the console until quit or EOF. It returns when the user
// asks to shut the emulator down.
func Run(sys *system.System) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, name := range commandNames {
			if strings.HasPrefix(name, strings.ToLower(prefix)) {
				out = append(out, name)
			}
		}
		return out
	})

	for {
		input, err := line.Prompt("axpbox> ")
		if err != nil {
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		args := strings.Fields(input)
		switch strings.ToLower(args[0]) {
		case "quit", "exit":
			return
		case "help", "?":
			usage()
		case "examine", "e":
			examine(sys, args[1:])
		case "deposit", "d":
			deposit(sys, args[1:])
		case "registers", "r":
			registers(sys, args[1:])
		case "release":
			sys.ReleaseSecondaries()
			fmt.Println("secondary processors released")
		case "save":
			saveState(sys, args[1:])
		case "restore":
			restoreState(sys, args[1:])
		default:
			fmt.Printf("unknown command %q; try help\n", args[0])
		}
	}
}

func usage() {
	fmt.Print(`examine [-yaml] <addr> [count]   dump guest memory quadwords
deposit <addr> <value>           store one quadword
registers [cpu]                  dump a CPU's register file as YAML
release                          start waiting secondary processors
save <file>                      write a save/restore file
restore <file>                   load a save/restore file
quit                             shut down
`)
}

func parseNum(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	return strconv.ParseUint(s, 16, 64)
}

func examine(sys *system.System, args []string) {
	asYAML := false
	if len(args) > 0 && args[0] == "-yaml" {
		asYAML = true
		args = args[1:]
	}
	if len(args) < 1 {
		fmt.Println("examine: need an address")
		return
	}
	addr, err := parseNum(args[0])
	if err != nil {
		fmt.Printf("examine: bad address %q\n", args[0])
		return
	}
	count := uint64(1)
	if len(args) > 1 {
		if count, err = strconv.ParseUint(args[1], 10, 32); err != nil {
			fmt.Printf("examine: bad count %q\n", args[1])
			return
		}
	}

	type entry struct {
		Address string `yaml:"address"`
		Value   string `yaml:"value"`
	}
	var dump []entry
	for i := uint64(0); i < count; i++ {
		v, err := sys.RAM.Read(addr+8*i, 64)
		if err != nil {
			fmt.Printf("examine: %v\n", err)
			return
		}
		if asYAML {
			dump = append(dump, entry{
				Address: fmt.Sprintf("%#x", addr+8*i),
				Value:   fmt.Sprintf("%#016x", v),
			})
		} else {
			fmt.Printf("%016x: %016x\n", addr+8*i, v)
		}
	}
	if asYAML {
		out, _ := yaml.Marshal(dump)
		fmt.Print(string(out))
	}
}

func deposit(sys *system.System, args []string) {
	if len(args) < 2 {
		fmt.Println("deposit: need an address and a value")
		return
	}
	addr, err := parseNum(args[0])
	if err != nil {
		fmt.Printf("deposit: bad address %q\n", args[0])
		return
	}
	value, err := parseNum(args[1])
	if err != nil {
		fmt.Printf("deposit: bad value %q\n", args[1])
		return
	}
	if err := sys.RAM.Write(addr, 64, value); err != nil {
		fmt.Printf("deposit: %v\n", err)
	}
}

func registers(sys *system.System, args []string) {
	n := 0
	if len(args) > 0 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil || n < 0 || n >= len(sys.CPUs) {
			fmt.Printf("registers: no cpu %q\n", args[0])
			return
		}
	}
	c := sys.CPUs[n]
	dump := struct {
		CPU int      `yaml:"cpu"`
		PC  string   `yaml:"pc"`
		R   []string `yaml:"r"`
	}{CPU: n, PC: fmt.Sprintf("%#x", c.PC)}
	for i := 0; i < 32; i++ {
		dump.R = append(dump.R, fmt.Sprintf("r%02d=%016x", i, c.R[i]))
	}
	out, _ := yaml.Marshal(dump)
	fmt.Print(string(out))
}

func saveState(sys *system.System, args []string) {
	if len(args) < 1 {
		fmt.Println("save: need a file name")
		return
	}
	f, err := os.Create(args[0])
	if err != nil {
		fmt.Printf("save: %v\n", err)
		return
	}
	defer f.Close()
	if err := sys.SaveState(f); err != nil {
		fmt.Printf("save: %v\n", err)
		return
	}
	fmt.Printf("saved to %s\n", args[0])
}

func restoreState(sys *system.System, args []string) {
	if len(args) < 1 {
		fmt.Println("restore: need a file name")
		return
	}
	f, err := os.Open(args[0])
	if err != nil {
		fmt.Printf("restore: %v\n", err)
		return
	}
	defer f.Close()
	if err := sys.RestoreState(f); err != nil {
		fmt.Printf("restore: %v\n", err)
		return
	}
	fmt.Printf("restored from %s\n", args[0])
}
