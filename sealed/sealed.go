// FILE: lixenwraith/linelog/sealed/sealed.go
// Package sealed provides an encrypting io.WriteCloser for log sinks and the
// matching reader.
//
// A sealed stream is a sequence of segments. Each segment starts with a header
// ("LLS1" followed by a random 16 byte salt) and holds frames of
//
//	uint32 big endian length | 24 byte nonce | XChaCha20-Poly1305 ciphertext
//
// The frame key is derived from the secret and the segment salt with HKDF-SHA256.
// Appending to an existing file starts a new segment, so a file reopened many
// times still decrypts as one stream.
package sealed

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/lixenwraith/linelog"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	magic    = "LLS1"
	saltSize = 16
	keyInfo  = "linelog-sink-v1"

	// MinSecretSize is the shortest accepted secret in bytes
	MinSecretSize = 16
	// MaxChunkSize is the largest plaintext sealed into a single frame
	MaxChunkSize = 64 * 1024

	lengthSize   = 4
	maxFrameSize = chacha20poly1305.NonceSizeX + MaxChunkSize + chacha20poly1305.Overhead
)

var (
	ErrWeakSecret       = errors.New("sealed: secret too short")
	ErrMissingHeader    = errors.New("sealed: stream does not start with a header")
	ErrCorrupted        = errors.New("sealed: corrupted stream")
	ErrDecryptionFailed = errors.New("sealed: decryption failed")
)

// newAEAD derives the segment key for salt
func newAEAD(secret, salt []byte) (cipher.AEAD, error) {
	reader := hkdf.New(sha256.New, secret, salt, []byte(keyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("sealed: key derivation failed: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

func checkSecret(secret []byte) error {
	if len(secret) < MinSecretSize {
		return fmt.Errorf("%w: %d bytes, minimum %d required", ErrWeakSecret, len(secret), MinSecretSize)
	}
	return nil
}

// Writer seals every Write into one or more frames of the current segment
type Writer struct {
	w      io.WriteCloser
	aead   cipher.AEAD
	header []byte // pending until the first Write
	salt   []byte
	closed bool
}

// NewWriter starts a segment on w. The header is written with the first frame, so
// a writer that never writes leaves w untouched.
func NewWriter(w io.WriteCloser, secret []byte) (*Writer, error) {
	if err := checkSecret(secret); err != nil {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("sealed: failed to generate salt: %w", err)
	}
	aead, err := newAEAD(secret, salt)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 0, len(magic)+saltSize)
	header = append(header, magic...)
	header = append(header, salt...)

	return &Writer{
		w:      w,
		aead:   aead,
		header: header,
		salt:   salt,
	}, nil
}

// Write seals p. It reports len(p) on success: callers count plaintext bytes.
func (sw *Writer) Write(p []byte) (int, error) {
	if sw.closed {
		return 0, fmt.Errorf("sealed: write to closed writer")
	}
	if len(p) == 0 {
		return 0, nil
	}

	out := append([]byte(nil), sw.header...)
	for written := 0; written < len(p); {
		end := min(written+MaxChunkSize, len(p))
		frame, err := sw.seal(p[written:end])
		if err != nil {
			return 0, err
		}
		out = append(out, frame...)
		written = end
	}

	if _, err := sw.w.Write(out); err != nil {
		return 0, err
	}
	sw.header = nil
	return len(p), nil
}

func (sw *Writer) seal(chunk []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(chunk)+chacha20poly1305.Overhead)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("sealed: failed to generate nonce: %w", err)
	}
	sealed := sw.aead.Seal(nonce, nonce, chunk, sw.salt)

	frame := make([]byte, lengthSize, lengthSize+len(sealed))
	binary.BigEndian.PutUint32(frame, uint32(len(sealed)))
	return append(frame, sealed...), nil
}

// Close closes the underlying writer. Calling it twice is a no-op.
func (sw *Writer) Close() error {
	if sw.closed {
		return nil
	}
	sw.closed = true
	return sw.w.Close()
}

// Wrapper returns a writer wrapper for encrypted log sinks
func Wrapper(secret []byte) (linelog.WriterWrapper, error) {
	if err := checkSecret(secret); err != nil {
		return nil, err
	}
	key := append([]byte(nil), secret...)
	return func(w io.WriteCloser) (io.WriteCloser, error) {
		return NewWriter(w, key)
	}, nil
}

// Reader decrypts a sealed stream of one or more segments
type Reader struct {
	r       io.Reader
	secret  []byte
	aead    cipher.AEAD
	salt    []byte
	pending []byte
}

// NewReader creates a reader over r
func NewReader(r io.Reader, secret []byte) (*Reader, error) {
	if err := checkSecret(secret); err != nil {
		return nil, err
	}
	return &Reader{r: r, secret: secret}, nil
}

// Read returns decrypted plaintext. io.EOF is returned only at a frame boundary.
func (sr *Reader) Read(p []byte) (int, error) {
	for len(sr.pending) == 0 {
		if err := sr.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, sr.pending)
	sr.pending = sr.pending[n:]
	return n, nil
}

// next consumes one header or frame
func (sr *Reader) next() error {
	var prefix [lengthSize]byte
	if _, err := io.ReadFull(sr.r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("%w: truncated frame: %v", ErrCorrupted, err)
	}

	// A header can never be mistaken for a length: "LLS1" exceeds maxFrameSize
	if string(prefix[:]) == magic {
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(sr.r, salt); err != nil {
			return fmt.Errorf("%w: truncated header: %v", ErrCorrupted, err)
		}
		aead, err := newAEAD(sr.secret, salt)
		if err != nil {
			return err
		}
		sr.aead = aead
		sr.salt = salt
		return nil
	}

	if sr.aead == nil {
		return ErrMissingHeader
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead || size > maxFrameSize {
		return fmt.Errorf("%w: invalid frame size %d", ErrCorrupted, size)
	}
	frame := make([]byte, size)
	if _, err := io.ReadFull(sr.r, frame); err != nil {
		return fmt.Errorf("%w: truncated frame: %v", ErrCorrupted, err)
	}

	nonce := frame[:chacha20poly1305.NonceSizeX]
	plain, err := sr.aead.Open(nil, nonce, frame[chacha20poly1305.NonceSizeX:], sr.salt)
	if err != nil {
		return ErrDecryptionFailed
	}
	sr.pending = plain
	return nil
}
