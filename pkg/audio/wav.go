package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Header describes the PCM format carried by a WAV file's fmt chunk.
type Header struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataOffset    int
}


func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)

	
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))           
	binary.Write(buf, binary.LittleEndian, uint16(1))            
	binary.Write(buf, binary.LittleEndian, uint16(1))            
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))   
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) 
	binary.Write(buf, binary.LittleEndian, uint16(2))            
	binary.Write(buf, binary.LittleEndian, uint16(16))           

	
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// ParseWavHeader reads the fmt and data chunk headers from a WAV byte
// stream, per the Synthesizer contract's requirement that the first chunk
// of a stream self-describe its audio format. DataOffset is the byte
// offset where raw PCM samples begin; everything from there on in buf (and
// every subsequent chunk from the stream) is raw PCM in this format.
func ParseWavHeader(buf []byte) (Header, error) {
	if len(buf) < 12 || string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WAVE" {
		return Header{}, fmt.Errorf("audio: not a RIFF/WAVE header")
	}

	var h Header
	offset := 12
	for offset+8 <= len(buf) {
		chunkID := string(buf[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(buf[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(buf) {
				return Header{}, fmt.Errorf("audio: truncated fmt chunk")
			}
			channels := binary.LittleEndian.Uint16(buf[body+2 : body+4])
			sampleRate := binary.LittleEndian.Uint32(buf[body+4 : body+8])
			bitsPerSample := binary.LittleEndian.Uint16(buf[body+14 : body+16])
			h.Channels = int(channels)
			h.SampleRate = int(sampleRate)
			h.BitsPerSample = int(bitsPerSample)
		case "data":
			h.DataOffset = body
			return h, nil
		}

		offset = body + chunkSize
	}

	return Header{}, fmt.Errorf("audio: no data chunk found")
}
