package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrNotWAV = errors.New("not a RIFF/WAVE payload")

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// WAVFormat is the subset of the fmt chunk needed for playback.
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// DecodeWAV walks the RIFF chunks and returns the raw PCM data section
// together with its format. Chunks other than "fmt " and "data" are skipped.
func DecodeWAV(data []byte) ([]byte, WAVFormat, error) {
	if !IsWAV(data) {
		return nil, WAVFormat{}, ErrNotWAV
	}

	var format WAVFormat
	haveFormat := false
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if size < 0 || body+size > len(data) {
			// Streamed WAVs often carry a placeholder size on the data chunk.
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, WAVFormat{}, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			format = WAVFormat{
				AudioFormat:   binary.LittleEndian.Uint16(data[body : body+2]),
				Channels:      binary.LittleEndian.Uint16(data[body+2 : body+4]),
				SampleRate:    binary.LittleEndian.Uint32(data[body+4 : body+8]),
				BitsPerSample: binary.LittleEndian.Uint16(data[body+14 : body+16]),
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, WAVFormat{}, fmt.Errorf("data chunk before fmt chunk")
			}
			return data[body : body+size], format, nil
		}

		// chunks are word aligned
		offset = body + size + size%2
	}

	return nil, WAVFormat{}, fmt.Errorf("missing data chunk")
}

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// BlockAlign is the size of one frame across all channels.
func (f WAVFormat) BlockAlign() int {
	return int(f.Channels) * int(f.BitsPerSample) / 8
}

// EncodeWAV wraps raw PCM in a canonical 44 byte WAV header.
func EncodeWAV(pcm []byte, format WAVFormat) ([]byte, error) {
	if format.SampleRate == 0 || format.Channels == 0 || format.BitsPerSample == 0 {
		return nil, fmt.Errorf("incomplete wav format: %+v", format)
	}

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   format.AudioFormat,
		NumChannels:   format.Channels,
		SampleRate:    format.SampleRate,
		ByteRate:      format.SampleRate * uint32(format.BlockAlign()),
		BlockAlign:    uint16(format.BlockAlign()),
		BitsPerSample: format.BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// SplitWAV splits a WAV payload into chunks that are each a playable WAV of
// at most roughly size bytes of PCM, cut on frame boundaries. Payloads that
// are not WAV fall back to Split.
func SplitWAV(data []byte, size int) ([]Chunk, error) {
	if size <= 0 || !IsWAV(data) {
		return Split(data, size), nil
	}

	pcm, format, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	if frame := format.BlockAlign(); frame > 0 {
		size -= size % frame
		if size == 0 {
			size = frame
		}
	}
	if len(pcm) <= size {
		return []Chunk{{Index: 0, Data: data}}, nil
	}

	pieces := Split(pcm, size)
	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		encoded, err := EncodeWAV(piece.Data, format)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, Chunk{Index: piece.Index, Data: encoded})
	}
	return chunks, nil
}
