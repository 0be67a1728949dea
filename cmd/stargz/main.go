// Command stargz is the CLI driver for the stargz codec: it parses
// arguments, prints to stdout/stderr, and otherwise does nothing the
// core package doesn't already do.
package main

import (
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	digest "github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/bennyz/stargz"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(os.Args[2:])
	case "read":
		err = runRead(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "stargz:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: stargz convert <in.tar> <out.stargz>")
	fmt.Fprintln(os.Stderr, "       stargz read [-verify] <file.stargz>")
	fmt.Fprintln(os.Stderr, "       stargz inspect <file.stargz>")
}

func runConvert(args []string) error {
	if len(args) != 2 {
		return errors.New("convert: expected <in.tar> <out.stargz>")
	}
	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only handle, nothing to flush

	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck // close error surfaced by the explicit Close below

	w := stargz.NewWriter(out)
	if err := w.AppendTar(in); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return out.Close()
}

func runRead(args []string) error {
	fset := flag.NewFlagSet("read", flag.ContinueOnError)
	verify := fset.Bool("verify", false, "recompute and check every regular file's stored digest")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 1 {
		return errors.New("read: expected [-verify] <file.stargz>")
	}

	r, closeFn, err := openArchive(fset.Arg(0))
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck // read-only handle

	for _, e := range r.TOC() {
		fmt.Printf("%s\t%s\t%d\t%s\n", e.Type, e.Name, e.Size, e.ModTime)
	}

	if *verify {
		return verifyDigests(r)
	}
	return nil
}

// verifyDigests recomputes the sha256 digest of every regular file's
// full content and checks it against the TOC's stored value, one
// goroutine per file.
func verifyDigests(r *stargz.Reader) error {
	var g errgroup.Group
	for _, e := range r.TOC() {
		if e.Type != stargz.TypeReg {
			continue
		}
		e := e
		g.Go(func() error {
			f, err := r.OpenFile(e.Name)
			if err != nil {
				return fmt.Errorf("%s: %w", e.Name, err)
			}
			h := sha256.New()
			if _, err := io.Copy(h, io.NewSectionReader(f, 0, e.Size)); err != nil {
				return fmt.Errorf("%s: %w", e.Name, err)
			}
			got := digest.NewDigest(digest.SHA256, h)
			if got != e.Digest {
				return fmt.Errorf("%s: digest mismatch: want %s, got %s", e.Name, e.Digest, got)
			}
			return nil
		})
	}
	return g.Wait()
}

func runInspect(args []string) error {
	if len(args) != 1 {
		return errors.New("inspect: expected <file.stargz>")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // read-only handle

	src, err := stargz.NewFileSource(f)
	if err != nil {
		return err
	}
	desc, err := stargz.Descriptor(src, src.Size())
	if err != nil {
		return err
	}
	fmt.Printf("mediaType: %s\ndigest: %s\nsize: %d\n", desc.MediaType, desc.Digest, desc.Size)
	return nil
}

func openArchive(path string) (*stargz.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	src, err := stargz.NewFileSource(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	r, err := stargz.Open(src, src.Size())
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return r, f.Close, nil
}
