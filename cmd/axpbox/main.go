/*
 * axpbox-sub000 - Main process.
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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"
	yaml "gopkg.in/yaml.v3"

	"github.com/lenticularis39/axpbox-sub000/command"
	config "github.com/lenticularis39/axpbox-sub000/config/configparser"
	"github.com/lenticularis39/axpbox-sub000/internal/system"
	"github.com/lenticularis39/axpbox-sub000/util/logger"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "axpbox.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optRestore := getopt.StringLong("restore", 'r', "", "State file to restore")
	optDump := getopt.BoolLong("dump-config", 'd', "Dump effective configuration as YAML and exit")
	optDebug := getopt.BoolLong("debug", 'g', "Enable debug logging")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	log := slog.New(logger.NewHandler(file,
		&slog.HandlerOptions{Level: programLevel, AddSource: false}, *optDebug))
	slog.SetDefault(log)

	log.Info("axpbox started")

	if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
		log.Error("configuration file not found", "path", *optConfig)
		os.Exit(1)
	}
	if err := config.LoadConfigFile(*optConfig); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
	cfg := system.PendingConfig()

	if *optDump {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
		fmt.Print(string(out))
		return
	}

	sys, err := system.New(cfg, log)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	if *optRestore != "" {
		f, err := os.Open(*optRestore)
		if err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
		if err := sys.RestoreState(f); err != nil {
			f.Close()
			log.Error(err.Error())
			os.Exit(1)
		}
		f.Close()
		log.Info("state restored", "path", *optRestore)
	}

	// Secondary processors stay parked on their wait-for-start flag
	// until the console's release command.
	sys.Start()

	// The console owns the foreground; SIGINT/SIGTERM also shut down.
	done := make(chan struct{})
	go func() {
		command.Run(sys)
		close(done)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-done:
	}

	log.Info("axpbox shutting down")
	sys.Stop()
}
