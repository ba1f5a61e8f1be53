package deepgram

import (
	"errors"
	"fmt"
	"slices"

	"github.com/koscakluka/ema-relay/core/audio"
)

var errUnsupportedEncoding = errors.New("unsupported encoding")

// Rates accepted by the listen endpoint for raw audio.
var supportedSampleRates = []int{8000, 16000, 24000, 32000, 48000}

// convertEncoding checks that Deepgram can decode raw audio in the given
// encoding. The format names already match Deepgram's query values.
func convertEncoding(encoding audio.EncodingInfo) (audio.EncodingInfo, error) {
	if !slices.Contains(supportedSampleRates, encoding.SampleRate) {
		return audio.EncodingInfo{}, fmt.Errorf("%w: sample rate %d", errUnsupportedEncoding, encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
	case audio.EncodingALaw, audio.EncodingMulaw:
		// Companded formats are telephony only.
		if encoding.SampleRate != 8000 {
			return audio.EncodingInfo{}, fmt.Errorf("%w: %s at %d Hz", errUnsupportedEncoding, encoding.Format.Name(), encoding.SampleRate)
		}
	default:
		return audio.EncodingInfo{}, fmt.Errorf("%w: %q", errUnsupportedEncoding, encoding.Format.Name())
	}

	return encoding, nil
}
