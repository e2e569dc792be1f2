//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for facility-match developer tooling.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target when mage runs without arguments.
var Default = Build

// projectDirs lists the working directories a local setup expects.
var projectDirs = []string{
	"data",
	"output",
	".secrets",
}

// Init creates the local working directories. .secrets is created
// owner-only since it holds DSNs and tokens.
func Init() error {
	for _, dir := range projectDirs {
		perm := os.FileMode(0o755)
		if strings.HasPrefix(dir, ".secrets") {
			perm = 0o700
		}
		if err := os.MkdirAll(dir, perm); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "facility-match"
	cmdPkg  = "./cmd/facility-match"
)

// Build compiles the CLI binary into bin/. The version is taken from
// VERSION when set.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	ldflags := "-X main.version=" + version
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", out, version)
	return nil
}

// Test runs the unit tests. go-sqlite3 needs cgo.
func Test() error {
	return sh.RunWithV(map[string]string{"CGO_ENABLED": "1"}, "go", "test", "./...")
}

// Check vets and tests the module.
func Check() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	mg.Deps(Test)
	return nil
}

// Serve builds the binary and starts the HTTP API.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "serve")
}

// Clean removes build output.
func Clean() error {
	return sh.Rm(binDir)
}

// Stats prints non-blank Go lines per package, split into production and
// test code, plus the word count of the Markdown docs at the root.
func Stats() error {
	prod := map[string]int{}
	test := map[string]int{}
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && (strings.HasPrefix(d.Name(), "_") || strings.HasPrefix(d.Name(), ".") || d.Name() == binDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return err
		}
		if strings.HasSuffix(path, "_test.go") {
			test[filepath.Dir(path)] += n
		} else {
			prod[filepath.Dir(path)] += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	pkgs := make([]string, 0, len(prod))
	for p := range prod {
		pkgs = append(pkgs, p)
	}
	sort.Strings(pkgs)

	var prodTotal, testTotal int
	fmt.Printf("%-32s %8s %8s\n", "Package", "Prod", "Test")
	for _, p := range pkgs {
		fmt.Printf("%-32s %8d %8d\n", p, prod[p], test[p])
		prodTotal += prod[p]
		testTotal += test[p]
	}
	fmt.Printf("%-32s %8d %8d\n", "total", prodTotal, testTotal)

	words, err := countDocWords(".")
	if err != nil {
		return err
	}
	fmt.Printf("Words (documentation): %d\n", words)
	return nil
}

// countLines returns the number of non-blank lines in path.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n, sc.Err()
}

// countDocWords counts words in the Markdown files directly under dir.
func countDocWords(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", m, err)
		}
		total += len(bytes.Fields(data))
	}
	return total, nil
}
