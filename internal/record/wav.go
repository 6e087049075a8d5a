package record

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps PCM samples in a RIFF/WAVE container with a 44-byte
// header: RIFF and fmt chunks, PCM format, 16 bits per sample, then the
// little-endian payload.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")

	// ChunkSize is patched once the full length is known.
	chunkSizePos := buf.Len()
	binary.Write(buf, binary.LittleEndian, uint32(0))

	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))                            // Subchunk1Size
	binary.Write(buf, binary.LittleEndian, uint16(1))                             // AudioFormat PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))                      // NumChannels
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))                    // SampleRate
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*2))         // ByteRate
	binary.Write(buf, binary.LittleEndian, uint16(channels*2))                    // BlockAlign
	binary.Write(buf, binary.LittleEndian, uint16(16))                            // BitsPerSample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(samples)*2)) // Subchunk2Size

	for _, sample := range samples {
		binary.Write(buf, binary.LittleEndian, sample)
	}

	wav := buf.Bytes()
	binary.LittleEndian.PutUint32(wav[chunkSizePos:chunkSizePos+4], uint32(len(wav)-8))

	return wav
}
