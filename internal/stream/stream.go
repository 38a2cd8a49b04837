package stream

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/jmgilman/go/errors"
	"github.com/klauspost/compress/zstd"
)

// Ext: 以该后缀结尾的输出路径写出 zstd 压缩流。
const Ext = ".zst"

// magic: zstd 帧头。
var magic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Streams 聚合标准流与文件系统；零值字段使用进程默认值。
type Streams struct {
	FS     billy.Filesystem
	Stdin  io.Reader
	Stdout io.Writer
}

// Default 返回基于本地文件系统与进程标准流的 Streams。
func Default() *Streams {
	return &Streams{FS: osfs.New("/"), Stdin: os.Stdin, Stdout: os.Stdout}
}

func (s *Streams) fs() billy.Filesystem {
	if s.FS == nil {
		return osfs.New("/")
	}
	return s.FS
}

func abs(p string) (string, error) {
	a, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeInvalidInput, "resolve %s", p)
	}
	return filepath.ToSlash(a), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// OpenOutput 打开输出：空串或 "-" 为标准输出（Close 不关闭它），
// *.zst 为 zstd 压缩文件，其余为普通文件（自动创建父目录）。
func (s *Streams) OpenOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		out := s.Stdout
		if out == nil {
			out = os.Stdout
		}
		return nopWriteCloser{out}, nil
	}
	p, err := abs(path)
	if err != nil {
		return nil, err
	}
	fs := s.fs()
	if err := fs.MkdirAll(filepath.ToSlash(filepath.Dir(p)), 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "create output dir for %s", path)
	}
	f, err := fs.Create(p)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "create output %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), Ext) {
		return f, nil
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.CodeInternal, "zstd encoder")
	}
	return &zstdWriter{enc: enc, f: f}, nil
}

type zstdWriter struct {
	enc *zstd.Encoder
	f   io.Closer
}

func (z *zstdWriter) Write(p []byte) (int, error) { return z.enc.Write(p) }

// Close 先冲刷编码器再关闭文件。
func (z *zstdWriter) Close() error {
	eerr := z.enc.Close()
	ferr := z.f.Close()
	if eerr != nil {
		return errors.Wrap(eerr, errors.CodeInternal, "zstd flush")
	}
	return ferr
}

// OpenInput 打开输入："-" 为标准输入，否则为文件；
// 内容以 zstd 帧头开始时透明解压。
func (s *Streams) OpenInput(path string) (io.ReadCloser, error) {
	var src io.ReadCloser
	if path == "-" {
		in := s.Stdin
		if in == nil {
			in = os.Stdin
		}
		src = io.NopCloser(in)
	} else {
		p, err := abs(path)
		if err != nil {
			return nil, err
		}
		f, err := s.fs().Open(p)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInternal, "open input %s", path)
		}
		src = f
	}
	br := bufio.NewReader(src)
	head, _ := br.Peek(len(magic))
	if !bytes.Equal(head, magic) {
		return &readCloser{Reader: br, c: src}, nil
	}
	dec, err := zstd.NewReader(br)
	if err != nil {
		_ = src.Close()
		return nil, errors.Wrap(err, errors.CodeInternal, "zstd decoder")
	}
	return &readCloser{Reader: dec, c: src, dec: dec}, nil
}

type readCloser struct {
	io.Reader
	c   io.Closer
	dec *zstd.Decoder
}

func (r *readCloser) Close() error {
	if r.dec != nil {
		r.dec.Close()
	}
	return r.c.Close()
}
