package audio

import "fmt"

type Codec string

const CodecPCM Codec = "pcm"

// Decode converts encoded audio bytes to float32 PCM samples normalized to
// [-1, 1]. Returns samples and the sample rate. Ingress μ-law is decoded
// separately by UlawToPCM16, which feeds STT directly as 16-bit PCM bytes;
// Decode serves the sink side, where audio is already linear PCM.
func Decode(data []byte, codec Codec, sampleRate int) ([]float32, int, error) {
	if codec == CodecPCM {
		return decodePCM(data), sampleRate, nil
	}

	return nil, 0, fmt.Errorf("unsupported codec: %s", codec)
}
