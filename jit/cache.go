package jit

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ace-zkvm/ace/field"
	"github.com/bits-and-blooms/bitset"
	"github.com/blang/semver/v4"
	"github.com/consensys/compress/lzss"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

// cacheFormatVersion is bumped whenever the encoded effect format (package
// jit's Instr/Effect wire shape) changes incompatibly. A warm cache
// persisted under a different version is discarded rather than trusted,
// per spec §4.4's cache note generalized with a compatibility guard (spec
// §9 lists compatibility/versioning among the judgment calls left to the
// implementer).
var cacheFormatVersion = semver.MustParse("1.0.0")

// Cache is spec §4.4's "(identity_id, known_args) -> compiled effects"
// map: a concurrent map protects lookups; a miss compiles under a
// short-lived exclusive section (here, golang.org/x/sync/singleflight,
// which collapses concurrent misses for the same key into one compile)
// while other callers wait, exactly as spec describes.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group

	modulus        *field.Modulus
	modulusByteLen int
}

type cacheEntry struct {
	version semver.Version
	effects []Effect
}

// NewCache constructs an empty cache for the given field.
func NewCache(m *field.Modulus) *Cache {
	return &Cache{
		entries:        map[string]cacheEntry{},
		modulus:        m,
		modulusByteLen: (m.BitLen() + 7) / 8,
	}
}

// Key derives the cache key spec §4.4 names: a content hash of
// (identity_id, known_args, program_fingerprint). program_fingerprint
// distinguishes two otherwise-identical (identity, known-bits) pairs
// compiled against different analyzed programs (e.g. across test runs
// with regenerated column IDs).
func Key(identityID uint64, knownArgs *bitset.BitSet, programFingerprint []byte) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic("jit: blake2b.New256 with nil key never fails")
	}
	var idBuf [8]byte
	for i := 0; i < 8; i++ {
		idBuf[i] = byte(identityID >> (8 * i))
	}
	h.Write(idBuf[:])
	if knownArgs != nil {
		bytesOut, _ := knownArgs.MarshalBinary()
		h.Write(bytesOut)
	}
	h.Write(programFingerprint)
	return string(h.Sum(nil))
}

// GetOrCompile returns the cached effect stream for key, compiling it via
// gen exactly once even under concurrent callers (spec §4.4: "a missing
// entry triggers generation under a short-lived exclusive lock; other
// callers wait").
func (c *Cache) GetOrCompile(key string, gen func() ([]Effect, error)) ([]Effect, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && entry.version.EQ(cacheFormatVersion) {
		return entry.effects, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		entry, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && entry.version.EQ(cacheFormatVersion) {
			return entry.effects, nil
		}

		effects, err := gen()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{version: cacheFormatVersion, effects: effects}
		c.mu.Unlock()
		return effects, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Effect), nil
}

// Persist serializes every cache entry to a single compressed blob,
// suitable for a warm-start file between pipeline invocations. Entries
// are compressed with consensys/compress's LZSS implementation so a large
// cache of near-identical block-machine effect streams (many BlockMachine
// variants only differ in which few columns are known) stays small.
func (c *Cache) Persist() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var raw bytes.Buffer
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	if err := writeUvarint(&raw, uint64(len(keys))); err != nil {
		return nil, err
	}
	for _, k := range keys {
		entry := c.entries[k]
		encoded, err := EncodeEffects(entry.effects, c.modulusByteLen)
		if err != nil {
			return nil, fmt.Errorf("jit: persisting cache entry: %w", err)
		}
		if err := writeUvarint(&raw, uint64(len(k))); err != nil {
			return nil, err
		}
		raw.WriteString(k)
		if err := writeUvarint(&raw, uint64(len(encoded))); err != nil {
			return nil, err
		}
		raw.Write(encoded)
	}

	compressor, err := lzss.NewCompressor(nil)
	if err != nil {
		return nil, fmt.Errorf("jit: building compressor: %w", err)
	}
	compressed, err := compressor.Compress(raw.Bytes())
	if err != nil {
		return nil, fmt.Errorf("jit: compressing cache: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(cacheFormatVersion.String())
	out.WriteByte('\n')
	out.Write(compressed)
	return out.Bytes(), nil
}

// Load restores a cache previously produced by Persist, rejecting it
// outright if its version tag does not match cacheFormatVersion.
func (c *Cache) Load(data []byte) error {
	nl := bytes.IndexByte(data, '\n')
	if nl < 0 {
		return fmt.Errorf("jit: malformed cache blob, no version header")
	}
	versionStr := string(data[:nl])
	version, err := semver.Parse(versionStr)
	if err != nil {
		return fmt.Errorf("jit: malformed cache version %q: %w", versionStr, err)
	}
	if !version.EQ(cacheFormatVersion) {
		return fmt.Errorf("jit: cache format %s does not match current %s, discarding", version, cacheFormatVersion)
	}

	raw, err := lzss.Decompress(data[nl+1:], nil)
	if err != nil {
		return fmt.Errorf("jit: decompressing cache: %w", err)
	}

	r := bytes.NewReader(raw)
	count, err := readUvarint(r)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := uint64(0); i < count; i++ {
		keyLen, err := readUvarint(r)
		if err != nil {
			return err
		}
		keyBuf := make([]byte, keyLen)
		if _, err := r.Read(keyBuf); err != nil {
			return err
		}
		encLen, err := readUvarint(r)
		if err != nil {
			return err
		}
		encBuf := make([]byte, encLen)
		if _, err := r.Read(encBuf); err != nil {
			return err
		}
		effects, err := DecodeEffects(encBuf, c.modulusByteLen, c.modulus)
		if err != nil {
			return fmt.Errorf("jit: decoding cached effects: %w", err)
		}
		c.entries[string(keyBuf)] = cacheEntry{version: cacheFormatVersion, effects: effects}
	}
	return nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) error {
	var tmp [10]byte
	n := 0
	for v >= 0x80 {
		tmp[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	tmp[n] = byte(v)
	n++
	_, err := buf.Write(tmp[:n])
	return err
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return result, nil
		}
		shift += 7
	}
}
