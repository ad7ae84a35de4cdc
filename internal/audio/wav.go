package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/zaf/g711"

	"pagemsg/internal/domain"
)

// WAVE format tags.
const (
	wavFormatPCM  = 1
	wavFormatALaw = 6
	wavFormatULaw = 7
)

// BytesPerSample is the width of captured samples (S16LE).
const BytesPerSample = 2

// Info describes a WAV container header.
type Info struct {
	Format     domain.AudioFormat
	SampleRate int
	Channels   int
	BitDepth   int
	DataBytes  int
}

// Seconds returns the playback length derived from the data chunk size.
func (i Info) Seconds() float64 {
	frameBytes := i.Channels * i.BitDepth / 8
	if i.SampleRate <= 0 || frameBytes <= 0 {
		return 0
	}
	return float64(i.DataBytes) / float64(i.SampleRate*frameBytes)
}

// Clip is decoded linear 16-bit PCM.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// PCMDuration returns the length of S16LE PCM rounded to two decimals.
func PCMDuration(byteCount int, sampleRate int, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return Round2(float64(byteCount) / float64(sampleRate*channels*BytesPerSample))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WriteWAV writes S16LE PCM into a 16-bit linear WAV container.
func WriteWAV(path string, pcm []byte, sampleRate int, channels int) error {
	samples := make([]int, len(pcm)/BytesPerSample)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return writeContainer(path, samples, sampleRate, channels, 16, wavFormatPCM)
}

// WriteCompandedWAV writes already encoded G.711 bytes into an 8-bit WAV container.
func WriteCompandedWAV(path string, encoded []byte, format domain.AudioFormat, sampleRate int, channels int) error {
	tag := wavFormatALaw
	if format == domain.AudioFormatULaw {
		tag = wavFormatULaw
	} else if format != domain.AudioFormatALaw {
		return fmt.Errorf("unsupported companded format %q", format)
	}

	samples := make([]int, len(encoded))
	for i, b := range encoded {
		samples[i] = int(b)
	}
	return writeContainer(path, samples, sampleRate, channels, 8, tag)
}

func writeContainer(path string, samples []int, sampleRate int, channels int, bitDepth int, tag int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, tag)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to finalize wav header: %w", err)
	}
	return f.Close()
}

// Probe reads the container header of path.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	dec, err := openData(f)
	if err != nil {
		return Info{}, err
	}
	info, err := infoFrom(dec)
	if err != nil {
		return Info{}, err
	}
	info.DataBytes = dec.PCMSize
	return info, nil
}

// ReadClip loads path as 16-bit linear PCM, expanding G.711 data.
func ReadClip(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()

	dec, err := openData(f)
	if err != nil {
		return Clip{}, err
	}
	info, err := infoFrom(dec)
	if err != nil {
		return Clip{}, err
	}

	data, err := io.ReadAll(dec.PCMChunk)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to read wav data: %w", err)
	}

	switch info.Format {
	case domain.AudioFormatALaw:
		data = g711.DecodeAlaw(data)
	case domain.AudioFormatULaw:
		data = g711.DecodeUlaw(data)
	default:
		if info.BitDepth != 16 {
			return Clip{}, fmt.Errorf("unsupported pcm bit depth %d", info.BitDepth)
		}
	}

	return Clip{PCM: data, SampleRate: info.SampleRate, Channels: info.Channels}, nil
}

func openData(r io.ReadSeeker) (*wav.Decoder, error) {
	dec := wav.NewDecoder(r)
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to locate wav data: %w", err)
	}
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wav header: %w", err)
	}
	if dec.PCMChunk == nil || dec.NumChans == 0 {
		return nil, errors.New("not a wav container")
	}
	return dec, nil
}

func infoFrom(dec *wav.Decoder) (Info, error) {
	info := Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	switch dec.WavAudioFormat {
	case wavFormatPCM:
		info.Format = domain.AudioFormatPCM
	case wavFormatALaw:
		info.Format = domain.AudioFormatALaw
	case wavFormatULaw:
		info.Format = domain.AudioFormatULaw
	default:
		return Info{}, fmt.Errorf("unsupported wav format tag %d", dec.WavAudioFormat)
	}
	return info, nil
}
