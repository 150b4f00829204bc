// Command ivarray inspects and edits a value array on disk.
//
//	ivarray --dir ./data --name subject inspect
//	ivarray --dir ./data --name subject get 42
//	ivarray --dir ./data --name subject put 42 "hello"
//	ivarray --dir ./data --name subject delete 42
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hupe1980/ivarray"
	"github.com/hupe1980/ivarray/blockstore"
	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type config struct {
	dir      string
	name     string
	maxCache uint64
	create   bool
	verbose  bool

	// compression wraps the block store in a codec; arrays written with a
	// codec must be read with one.
	compression string
	blockSize   int
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cfg config

	flags := flag.NewFlagSet("ivarray", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&cfg.dir, "dir", "d", ".", "directory holding the array files")
	flags.StringVarP(&cfg.name, "name", "n", "", "array name")
	flags.Uint64Var(&cfg.maxCache, "max-cache", ivarray.DefaultMaxCacheBytes, "cache budget in bytes")
	flags.BoolVar(&cfg.create, "create", false, "build a new array if none exists (put only)")
	flags.StringVarP(&cfg.compression, "compression", "c", "", "value codec: none, lz4, zstd or snappy")
	flags.IntVar(&cfg.blockSize, "block-size", blockstore.DefaultBlockSize, "block size of a new values file")
	flags.BoolVarP(&cfg.verbose, "verbose", "v", false, "log operations to stderr")
	flags.SetInterspersed(false)
	flags.Usage = func() {
		fmt.Fprintln(stderr, "Usage: ivarray [flags] <inspect|get|put|delete> [args]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Flags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	rest := flags.Args()
	if cfg.name == "" || len(rest) == 0 {
		flags.Usage()
		return 2
	}

	if err := execute(ctx, cfg, rest[0], rest[1:], stdout); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, cfg config, cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "inspect", "get", "put", "delete":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	arr, err := open(cfg, cmd == "put" && cfg.create)
	if err != nil {
		return err
	}
	defer arr.Close() //nolint:errcheck

	switch cmd {
	case "inspect":
		s := arr.Stats()
		fmt.Fprintf(stdout, "index:     %s\n", ivarray.IndexFileName(cfg.dir, cfg.name))
		fmt.Fprintf(stdout, "capacity:  %d\n", s.Capacity)
		fmt.Fprintf(stdout, "keys:      %d\n", s.Keys)
		fmt.Fprintf(stdout, "max cache: %d\n", s.MaxCacheBytes)
		return nil

	case "get":
		key, err := parseKey(args, 1)
		if err != nil {
			return err
		}
		v, err := arr.Search(ctx, key)
		if err != nil {
			return err
		}
		_, err = stdout.Write(append(v[:len(v):len(v)], '\n'))
		return err

	case "put":
		key, err := parseKey(args, 2)
		if err != nil {
			return err
		}
		value := []byte(args[1])
		if arr.Contains(key) {
			err = arr.Modify(ctx, key, value)
		} else {
			err = arr.Insert(ctx, key, value)
		}
		if err != nil {
			return err
		}
		return arr.Save(ctx)

	default: // delete
		key, err := parseKey(args, 1)
		if err != nil {
			return err
		}
		if err := arr.Remove(ctx, key); err != nil {
			return err
		}
		return arr.Save(ctx)
	}
}

func open(cfg config, create bool) (*ivarray.ValueArray, error) {
	opts := []ivarray.Option{ivarray.WithMaxCacheBytes(cfg.maxCache)}
	if cfg.verbose {
		opts = append(opts, ivarray.WithLogger(ivarray.NewTextLogger(slog.LevelDebug)))
	}

	if create {
		if _, err := os.Stat(ivarray.IndexFileName(cfg.dir, cfg.name)); !errors.Is(err, os.ErrNotExist) {
			create = false
		}
	}

	var store blockstore.Store
	switch {
	case cfg.compression != "":
		codec, err := blockstore.ParseCompression(cfg.compression)
		if err != nil {
			return nil, err
		}
		fileStore, err := openStore(cfg, create)
		if err != nil {
			return nil, err
		}
		store = blockstore.NewCompressed(fileStore, codec)
	case create && cfg.blockSize != blockstore.DefaultBlockSize:
		fileStore, err := openStore(cfg, true)
		if err != nil {
			return nil, err
		}
		store = fileStore
	}
	if store != nil {
		opts = append(opts, ivarray.WithBlockStore(store))
	}

	var (
		arr *ivarray.ValueArray
		err error
	)
	if create {
		arr, err = ivarray.Build(cfg.dir, cfg.name, 0, opts...)
	} else {
		arr, err = ivarray.Open(cfg.dir, cfg.name, opts...)
	}
	if err != nil && store != nil {
		// The array only owns the store once it is built.
		_ = store.Close()
	}
	return arr, err
}

func openStore(cfg config, create bool) (*blockstore.FileStore, error) {
	base := filepath.Join(cfg.dir, cfg.name)
	if !create {
		return blockstore.OpenFileStore(base)
	}
	if err := os.MkdirAll(cfg.dir, 0o750); err != nil {
		return nil, err
	}
	return blockstore.CreateFileStore(base, func(o *blockstore.FileOptions) {
		o.BlockSize = cfg.blockSize
	})
}

func parseKey(args []string, want int) (uint32, error) {
	if len(args) != want {
		return 0, fmt.Errorf("expected %d argument(s), got %d", want, len(args))
	}
	key, err := strconv.ParseUint(strings.TrimSpace(args[0]), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", args[0], err)
	}
	return uint32(key), nil
}
