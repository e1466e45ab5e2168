package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Standard canonical header size
const wavHeaderSize = 44

// WAVFormat describes the PCM stream inside a WAV container.
type WAVFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
	DataSize      uint32
}

// BytesPerSecond is the PCM data rate.
func (f WAVFormat) BytesPerSecond() int {
	return int(f.SampleRate) * int(f.NumChannels) * int(f.BitsPerSample) / 8
}

var errNotWAV = errors.New("not a valid WAV file")

// ReadWAVHeader reads chunks up to the start of the data chunk and leaves r
// positioned at the first PCM byte. Only uncompressed PCM is accepted.
func ReadWAVHeader(r io.Reader) (WAVFormat, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return WAVFormat{}, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return WAVFormat{}, errNotWAV
	}

	var (
		f      WAVFormat
		gotFmt bool
		hdr    [8]byte
	)
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return WAVFormat{}, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return WAVFormat{}, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return WAVFormat{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			f.AudioFormat = binary.LittleEndian.Uint16(body[0:2])
			f.NumChannels = binary.LittleEndian.Uint16(body[2:4])
			f.SampleRate = binary.LittleEndian.Uint32(body[4:8])
			f.BitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			gotFmt = true
		case "data":
			if !gotFmt {
				return WAVFormat{}, errors.New("data chunk before fmt chunk")
			}
			if f.AudioFormat != 1 {
				return WAVFormat{}, fmt.Errorf("only PCM format supported, got %d", f.AudioFormat)
			}
			f.DataSize = size
			return f, nil
		default:
			// Chunks are word aligned.
			skip := int64(size) + int64(size%2)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return WAVFormat{}, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}

// EncodeWAV wraps 16-bit PCM in a canonical WAV header.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		channels = 1
	}

	const bitsPerSample = 16
	dataSize := uint32(len(pcm))
	blockAlign := uint16(channels * bitsPerSample / 8)

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVEfmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate)*uint32(blockAlign))
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	buf.Write(pcm)

	return buf.Bytes(), nil
}
