package pkgfs

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-vfs/errors"
	"github.com/wippyai/wasi-vfs/vfs"
)

// Compression identifies the outer compression of a package archive.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionGzip
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionGzip:
		return "gzip"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
	zipMagic  = []byte("PK\x03\x04")
	zipEmpty  = []byte("PK\x05\x06")
)

// DetectCompression sniffs the compression of raw archive bytes.
func DetectCompression(data []byte) Compression {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(data, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(data, lz4Magic):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

func decompress(data []byte, c Compression) ([]byte, error) {
	var r io.Reader
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	case CompressionGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case CompressionLZ4:
		r = lz4.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
	return io.ReadAll(r)
}

// Package is a loaded program package.
type Package struct {
	FS       *FS
	Manifest *Manifest
	// Digest is the hex blake3 digest of the raw archive bytes. It is empty
	// for packages built with FromFS.
	Digest      string
	Compression Compression
}

// Entrypoint returns the manifest entrypoint, or "".
func (p *Package) Entrypoint() string {
	if p.Manifest == nil {
		return ""
	}
	return p.Manifest.Entrypoint
}

// Annotation returns the WASI settings of the manifest.
func (p *Package) Annotation() WasiAnnotation {
	if p.Manifest == nil {
		return WasiAnnotation{}
	}
	return p.Manifest.Wasi
}

// ContentDigest returns the hex blake3 digest of the package content: every
// regular file except the manifest, in path order, as path, NUL, content.
func (p *Package) ContentDigest() string {
	return p.FS.contentDigest()
}

func (f *FS) contentDigest() string {
	h := blake3.New()
	for _, name := range f.Paths() {
		e := f.entries[name]
		if !e.mode.IsRegular() || name == vfs.Root+ManifestName {
			continue
		}
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(e.data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Load reads a package archive from r.
func Load(r io.Reader) (*Package, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Package("read package", err)
	}
	sum := blake3.Sum256(raw)

	compression := DetectCompression(raw)
	data, err := decompress(raw, compression)
	if err != nil {
		return nil, errors.Package(fmt.Sprintf("decompress %s package", compression), err)
	}

	var fsys *FS
	switch {
	case bytes.HasPrefix(data, zipMagic), bytes.HasPrefix(data, zipEmpty):
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, errors.Package("open zip package", err)
		}
		fsys, err = FromFS(zr)
		if err != nil {
			return nil, err
		}
	default:
		fsys, err = fromTar(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
	}

	pkg, err := NewPackage(fsys)
	if err != nil {
		return nil, err
	}
	pkg.Digest = hex.EncodeToString(sum[:])
	pkg.Compression = compression

	Logger().Debug("Loaded package",
		zap.String("name", pkg.Name()),
		zap.String("compression", compression.String()),
		zap.String("digest", pkg.Digest),
		zap.Int("entries", len(fsys.entries)),
	)

	return pkg, nil
}

// NewPackage reads the manifest of fsys, if any, and verifies its digest.
func NewPackage(fsys *FS) (*Package, error) {
	pkg := &Package{FS: fsys}

	data, err := vfs.ReadFile(fsys, vfs.Root+ManifestName)
	switch {
	case err == nil:
		m, err := ParseManifest(data)
		if err != nil {
			return nil, err
		}
		pkg.Manifest = m
	case !vfs.Exists(fsys, vfs.Root+ManifestName):
		return pkg, nil
	default:
		return nil, errors.Package("read manifest", err)
	}

	if want := pkg.Manifest.Digest; want != "" {
		if got := pkg.ContentDigest(); got != want {
			return nil, errors.Package(fmt.Sprintf("content digest mismatch: manifest %s, content %s", want, got), nil)
		}
	}
	return pkg, nil
}

// Name returns the manifest package name, or "".
func (p *Package) Name() string {
	if p.Manifest == nil {
		return ""
	}
	return p.Manifest.Name
}

// FromFS copies an io/fs tree into a package filesystem.
func FromFS(src fs.FS) (*FS, error) {
	f := newFS()
	err := fs.WalkDir(src, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mtim := info.ModTime().UnixNano()
		p := vfs.Absolute(name)

		switch mode := info.Mode(); {
		case mode.IsDir():
			f.addDir(p, mode, mtim)
		case mode&fs.ModeSymlink != 0:
			target, err := readLink(src, name)
			if err != nil {
				return err
			}
			f.addSymlink(p, target, mtim)
		case mode.IsRegular():
			data, err := fs.ReadFile(src, name)
			if err != nil {
				return err
			}
			f.addFile(p, data, mode, mtim)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Package("read package tree", err)
	}
	f.seal()
	return f, nil
}

func fromTar(r io.Reader) (*FS, error) {
	f := newFS()
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Package("read tar package", err)
		}

		p := path.Clean(vfs.Root + hdr.Name)
		mtim := hdr.ModTime.UnixNano()
		perm := fs.FileMode(hdr.Mode).Perm()

		switch hdr.Typeflag {
		case tar.TypeDir:
			f.addDir(p, perm, mtim)
		case tar.TypeSymlink:
			f.addSymlink(p, hdr.Linkname, mtim)
		case tar.TypeReg:
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, errors.Package("read tar entry "+hdr.Name, err)
			}
			f.addFile(p, data, perm, mtim)
		case tar.TypeLink:
			target, ok := f.entries[path.Clean(vfs.Root+hdr.Linkname)]
			if !ok || !target.mode.IsRegular() {
				return nil, errors.Package("hard link to a missing file "+hdr.Linkname, nil)
			}
			f.addFile(p, target.data, target.mode, mtim)
		}
	}
	f.seal()
	return f, nil
}

// readLink falls back to the entry content for trees that cannot read links,
// which is how zip archives store symlink targets.
func readLink(src fs.FS, name string) (string, error) {
	if target, err := fs.ReadLink(src, name); err == nil {
		return target, nil
	}
	data, err := fs.ReadFile(src, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
