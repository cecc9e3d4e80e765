// coolc - outlines a COOL program: tokenizes it, builds the class table and
// reports lexical, syntax and semantic errors.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/cool/compiler"
	"github.com/chazu/cool/compiler/outline"
	"github.com/chazu/cool/compiler/semant"
	"github.com/chazu/cool/index"
	"github.com/chazu/cool/manifest"
	"github.com/chazu/cool/server"
)

var log = commonlog.GetLogger("coolc")

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// config is the merged result of cool.toml and the command line.
type config struct {
	file      string
	verbose   bool
	lsp       bool
	tokens    bool
	snapshot  string
	index     string
	maxErrors int
	manifest  *manifest.Manifest
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("coolc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Verbose output")
	lspMode := fs.Bool("lsp", false, "Start language server on stdio")
	tokens := fs.Bool("tokens", false, "Print the token stream")
	snapshot := fs.String("snapshot", "", "Write the class table as CBOR to this path")
	indexPath := fs.String("index", "", "Write the class table to a SQLite index at this path")
	keepGoing := fs.Bool("keep-going", false, "Report every error instead of stopping at the first")
	maxErrors := fs.Int("max-errors", 0, "With -keep-going, stop after this many errors (0 = no limit)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: coolc [options] FILE\n")
		fmt.Fprintf(stderr, "       coolc -lsp\n\n")
		fmt.Fprintf(stderr, "Tokenizes a COOL program and builds its class table.\n")
		fmt.Fprintf(stderr, "Settings are read from the nearest %s and overridden by flags.\n\n", manifest.FileName)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  coolc shapes.cl                      # Check shapes.cl\n")
		fmt.Fprintf(stderr, "  coolc -tokens shapes.cl              # Print tokens, then check\n")
		fmt.Fprintf(stderr, "  coolc -keep-going -index out.db a.cl # Report all errors, index on success\n")
		fmt.Fprintf(stderr, "  coolc -lsp                           # Language server for editors\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if *verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if fs.NArg() > 1 {
		fmt.Fprintf(stderr, "coolc: expected one file, got %d\n", fs.NArg())
		fs.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "coolc: %v\n", err)
		return exitError
	}
	cfg.verbose = *verbose
	cfg.lsp = *lspMode
	if set["tokens"] {
		cfg.tokens = *tokens
	}
	if set["snapshot"] {
		cfg.snapshot = *snapshot
	}
	if set["index"] {
		cfg.index = *indexPath
	}
	if set["keep-going"] || set["max-errors"] {
		cfg.maxErrors = 1
		if *keepGoing {
			cfg.maxErrors = *maxErrors
		}
	}

	if cfg.lsp {
		lsp := server.NewLSP(outline.Options{MaxErrors: cfg.maxErrors})
		if err := lsp.Run(); err != nil {
			fmt.Fprintf(stderr, "coolc: language server: %v\n", err)
			return exitError
		}
		return exitOK
	}

	if cfg.file == "" {
		fmt.Fprintf(stderr, "coolc: no input file\n")
		fs.Usage()
		return exitUsage
	}

	return check(cfg, stdout, stderr)
}

// loadConfig finds the manifest governing file (or the working directory)
// and applies its settings. A manifest [project] main stands in for a
// missing FILE argument.
func loadConfig(file string) (*config, error) {
	dir := "."
	if file != "" {
		dir = filepath.Dir(file)
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}

	cfg := &config{file: file, maxErrors: 1}
	if m == nil {
		return cfg, nil
	}
	log.Infof("using %s", filepath.Join(m.Dir, manifest.FileName))

	cfg.manifest = m
	cfg.tokens = m.Output.Tokens
	cfg.snapshot = m.SnapshotPath()
	cfg.index = m.IndexPath()
	cfg.maxErrors = m.MaxErrors()
	if cfg.file == "" {
		cfg.file = m.MainPath()
	}
	return cfg, nil
}

func check(cfg *config, stdout, stderr io.Writer) int {
	src, err := compiler.ReadSource(cfg.file)
	if err != nil {
		fmt.Fprintf(stderr, "coolc: %v\n", err)
		return exitError
	}

	if cfg.tokens {
		toks, _ := compiler.Tokenize(src)
		for _, tok := range toks {
			fmt.Fprintf(stdout, "%d %s\n", tok.Pos.Line, tok)
		}
	}

	env := semant.NewEnv()
	o := outline.New(src, env, outline.Options{MaxErrors: cfg.maxErrors})
	if err := o.Outline(); err != nil {
		for _, e := range o.Errors() {
			fmt.Fprintln(stderr, e)
		}
		if len(o.Errors()) == 0 {
			fmt.Fprintf(stderr, "coolc: %v\n", err)
		}
		return exitError
	}

	stats := o.Stats()
	if cfg.verbose {
		fmt.Fprintf(stdout, "%s: %d classes, %d members, %d methods\n",
			src.Name, stats.Classes, stats.Members, stats.Methods)
	}

	if err := writeOutputs(cfg, src.Name, env); err != nil {
		fmt.Fprintf(stderr, "coolc: %v\n", err)
		return exitError
	}
	return exitOK
}

func writeOutputs(cfg *config, name string, env *semant.Env) error {
	snap := env.Snapshot()

	if cfg.snapshot != "" {
		data, err := semant.EncodeSnapshot(snap)
		if err != nil {
			return fmt.Errorf("encoding class table: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.snapshot), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(cfg.snapshot, data, 0644); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		log.Infof("wrote %s (%d bytes)", cfg.snapshot, len(data))
	}

	if cfg.index != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.index), 0755); err != nil {
			return err
		}
		store, err := index.Open(cfg.index)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(name, snap); err != nil {
			return err
		}
	}

	if cfg.manifest != nil {
		return updateLock(cfg.manifest, name, env)
	}
	return nil
}

// updateLock records the class table fingerprint and notes when it moved.
func updateLock(m *manifest.Manifest, name string, env *semant.Env) error {
	sum, err := env.Fingerprint()
	if err != nil {
		return fmt.Errorf("fingerprinting class table: %w", err)
	}
	fingerprint := hex.EncodeToString(sum[:])

	path, err := filepath.Abs(name)
	if err != nil {
		return err
	}
	if rel, err := filepath.Rel(m.Dir, path); err == nil {
		path = filepath.ToSlash(rel)
	}

	lock, err := manifest.ReadLock(m.LockFilePath())
	if err != nil {
		return err
	}
	if lock == nil {
		lock = &manifest.LockFile{}
	}
	if prev := lock.Find(path); prev != nil {
		if prev.Fingerprint == fingerprint {
			return nil
		}
		log.Noticef("%s: class table changed since last run", path)
	}
	lock.Put(manifest.LockedProgram{
		Path:        path,
		Fingerprint: fingerprint,
		Classes:     len(env.Classes()),
	})
	return manifest.WriteLock(m.LockFilePath(), lock)
}
