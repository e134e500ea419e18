// Package transport serves the session endpoint: one WebSocket connection
// per pipeline.Session, translating the wire protocol's JSON/binary frames
// to and from pipeline.Event/pipeline.Session.Write calls.
package transport

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
)

// inboundEnvelope sniffs a text frame's type before deciding which concrete
// struct to decode it into. Control frames are rare, so plain encoding/json
// is used here for its clearer error messages on malformed client input.
type inboundEnvelope struct {
	Type string `json:"type"`
}

// configFrame is the mandatory first frame of a session.
type configFrame struct {
	Type       string `json:"type"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// audioFrame is a base64-encoded PCM16 chunk sent as a text frame. Audio may
// also arrive as a raw binary frame, which Server.handleConn writes to the
// session as-is; both are
// accepted, matching the dual audio_b64/binary support required for TTS
// chunks going the other direction.
type audioFrame struct {
	Type        string `json:"type"`
	Seq         int    `json:"seq"`
	SampleRate  int    `json:"sample_rate"`
	PCM16Base64 string `json:"pcm16_base64"`
}

type stopFrame struct {
	Type string `json:"type"`
}

// decodeControlOrAudio sniffs the frame's type and decodes it into a
// configFrame, audioFrame, or stopFrame. The returned value's concrete type
// indicates which.
func decodeControlOrAudio(data []byte) (any, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("transport: malformed frame: %w", err)
	}
	switch env.Type {
	case "config":
		var f configFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("transport: malformed config frame: %w", err)
		}
		return f, nil
	case "audio":
		var f audioFrame
		if err := sonic.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("transport: malformed audio frame: %w", err)
		}
		return f, nil
	case "stop":
		return stopFrame{Type: "stop"}, nil
	default:
		return nil, fmt.Errorf("transport: unknown frame type %q", env.Type)
	}
}

// decodePCM16Base64 decodes an audioFrame's payload into raw PCM16 bytes.
func decodePCM16Base64(f audioFrame) ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.PCM16Base64)
}

// Outbound wire shapes, one per pipeline.EventType that a Session emits
// (EventStatus has none; encodeEvent renders an event type without a case
// as an "unknown event type" error frame). json tags match spec's
// wire schema exactly; fields are omitempty where the schema marks them
// optional for a given event type.
type outReady struct {
	Type string `json:"type"`
}

type outPartialTranscript struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outCommittedTranscript struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	SegmentID int64  `json:"segment_id"`
}

type outTranslationCommitted struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	SourceText string `json:"source"`
	SegmentID  int64  `json:"segment_id"`
}

type outTTSAudioChunk struct {
	Type       string `json:"type"`
	AudioB64   string `json:"audio_b64"`
	SegmentID  int64  `json:"segment_id"`
	SampleRate int    `json:"sample_rate"`
}

type outTTSEnd struct {
	Type      string `json:"type"`
	SegmentID int64  `json:"segment_id"`
}

type outStats struct {
	Type         string `json:"type"`
	SegmentID    int64  `json:"segment_id"`
	ASRMillis    int64  `json:"asr_ms"`
	MTMillis     int64  `json:"mt_ms"`
	TTSMillis    int64  `json:"tts_ms"`
	E2EMillis    int64  `json:"e2e_ms"`
	CommitsTotal int64  `json:"commits_total"`
	TTSQueueMS   int64  `json:"tts_queue_ms"`
}

type outError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	SegmentID int64  `json:"segment_id,omitempty"`
}

// encodeEvent marshals a pipeline.Event to its wire JSON form. Hot-path
// event types (partial_transcript, tts_audio_chunk) go through sonic;
// everything else uses encoding/json, matching the hot/cold split chosen
// for inbound frames above.
func encodeEvent(e pipeline.Event) ([]byte, error) {
	switch e.Type {
	case pipeline.EventReady:
		return json.Marshal(outReady{Type: "ready"})

	case pipeline.EventPartialTranscript:
		d := e.Data.(pipeline.PartialTranscriptData)
		return sonic.Marshal(outPartialTranscript{Type: "partial_transcript", Text: d.Text})

	case pipeline.EventCommittedTranscript:
		d := e.Data.(pipeline.CommittedTranscriptData)
		return json.Marshal(outCommittedTranscript{Type: "committed_transcript", Text: d.Text, SegmentID: d.SegmentID})

	case pipeline.EventTranslationCommitted:
		d := e.Data.(pipeline.TranslationCommittedData)
		return json.Marshal(outTranslationCommitted{
			Type:       "translation_committed",
			Text:       d.Text,
			SourceText: d.SourceText,
			SegmentID:  d.SegmentID,
		})

	case pipeline.EventTTSAudioChunk:
		d := e.Data.(pipeline.TTSAudioChunkData)
		return sonic.Marshal(outTTSAudioChunk{
			Type:       "tts_audio_chunk",
			AudioB64:   base64.StdEncoding.EncodeToString(d.Audio),
			SegmentID:  d.SegmentID,
			SampleRate: d.SampleRate,
		})

	case pipeline.EventTTSEnd:
		d := e.Data.(pipeline.TTSEndData)
		return json.Marshal(outTTSEnd{Type: "tts_end", SegmentID: d.SegmentID})

	case pipeline.EventStats:
		d := e.Data.(pipeline.StatsData)
		return json.Marshal(outStats{
			Type:         "stats",
			SegmentID:    d.SegmentID,
			ASRMillis:    d.ASRMillis,
			MTMillis:     d.MTMillis,
			TTSMillis:    d.TTSMillis,
			E2EMillis:    d.E2EMillis,
			CommitsTotal: d.CommitsTotal,
			TTSQueueMS:   d.TTSQueueMS,
		})

	case pipeline.EventError:
		d := e.Data.(pipeline.ErrorData)
		return json.Marshal(outError{Type: "error", Message: d.Message, SegmentID: d.SegmentID})

	default:
		return json.Marshal(outError{Type: "error", Message: "unknown event type"})
	}
}

// binaryAudioHeaderLen is the fixed header size (segment_id int64 big-endian
// + sample_rate uint32 big-endian) prefixed to binary tts_audio_chunk frames,
// the "small fixed header" framing the spec allows as an alternative to the
// audio_b64 JSON frame.
const binaryAudioHeaderLen = 12

func encodeBinaryAudioChunk(d pipeline.TTSAudioChunkData) []byte {
	buf := make([]byte, binaryAudioHeaderLen+len(d.Audio))
	binary.BigEndian.PutUint64(buf[0:8], uint64(d.SegmentID))
	binary.BigEndian.PutUint32(buf[8:12], uint32(d.SampleRate))
	copy(buf[binaryAudioHeaderLen:], d.Audio)
	return buf
}
